package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/decode"
	"github.com/marcoeg/crypto-tracer/filter"
	"github.com/marcoeg/crypto-tracer/lifecycle"
	"github.com/marcoeg/crypto-tracer/options"
	"github.com/marcoeg/crypto-tracer/output"
	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/probe"
	"github.com/marcoeg/crypto-tracer/record"
)

// PoolCapacity is the event pool's fixed capacity, spec §4.3's default.
const PoolCapacity = 1000

// RunMonitor drives the streaming event pipeline end to end: kernel
// probes -> ring buffer -> decode (with classification) -> accept ->
// enrich -> redact -> filter -> emit, per spec §4.9. It owns the Init -> Running -> Draining
// -> Stopped state machine and honours opts.Duration()/shutdown.
func RunMonitor(ctx context.Context, opts options.Options, shutdown *lifecycle.ShutdownFlag, log *zap.Logger) (options.ExitCode, error) {
	if log == nil {
		log = zap.NewNop()
	}
	state := StateInit

	mgr := probe.New()
	if err := mgr.Load(ctx); err != nil {
		log.Error("probe load failed", zap.Error(err))
		return options.ExitProbeLoadFailure, err
	}
	for _, s := range mgr.Status() {
		if !s.Loaded {
			log.Warn("probe failed to load", zap.String("probe", string(s.Name)), zap.Error(s.LastErr))
		}
	}

	if err := mgr.Attach(ctx); err != nil {
		log.Error("probe attach failed", zap.Error(err))
		return options.ExitProbeLoadFailure, err
	}
	for _, s := range mgr.Status() {
		if s.Loaded && !s.Attached {
			log.Warn("probe failed to attach", zap.String("probe", string(s.Name)), zap.Error(s.LastErr))
		}
	}

	state = StateRunning

	formatter, err := buildFormatter(opts)
	if err != nil {
		return options.ExitGeneral, err
	}
	defer formatter.Close()

	boot, err := decode.NewBootOffsetFromProc()
	if err != nil {
		log.Warn("could not read /proc/uptime, boot-time conversion degraded", zap.Error(err))
	}

	evPool := pool.New(PoolCapacity, log)
	pipe := newPipeline(evPool, boot, opts.DisableRedaction, log)
	filterSet := buildFilterSet(opts)

	deadline := time.Time{}
	if opts.DurationSeconds > 0 {
		deadline = time.Now().Add(opts.Duration())
	}

	dropped := 0
	process := func(raw record.Raw) {
		h, ev, ok := pipe.process(raw)
		if !ok {
			dropped++
			return
		}
		if filterSet.Matches(ev) {
			if err := formatter.WriteEvent(output.BodyFromEvent(ev)); err != nil {
				log.Warn("output write failed", zap.Error(err))
			}
		}
		evPool.Release(h)
	}

runLoop:
	for {
		if shutdown.Requested() {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		n, err := mgr.Poll(ctx, process)
		if err != nil {
			if ctx.Err() != nil {
				break runLoop
			}
			log.Warn("poll error", zap.Error(err))
			continue
		}
		_ = n
	}

	state = StateDraining
	drainDeadline := time.Now().Add(time.Second)
	for time.Now().Before(drainDeadline) {
		n, err := mgr.Poll(ctx, process)
		if err != nil || n == 0 {
			break
		}
	}

	state = StateStopped
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Cleanup(cleanupCtx); err != nil {
		log.Warn("probe cleanup did not complete cleanly", zap.Error(err))
	}

	stats := mgr.Stats()
	log.Info("monitor stopped",
		zap.String("state", state.String()),
		zap.Uint64("events_processed", stats.Processed),
		zap.Uint64("events_dropped", stats.Dropped),
		zap.Int("locally_dropped", dropped))

	return options.ExitSuccess, nil
}

func buildFormatter(opts options.Options) (output.Formatter, error) {
	format := parseFormat(opts.Format)
	if opts.OutputPath == "" {
		return output.NewStdoutFormatter(format), nil
	}
	return output.NewFileFormatter(format, opts.OutputPath)
}

func parseFormat(s string) output.Format {
	switch s {
	case "array":
		return output.FormatArray
	case "pretty":
		return output.FormatPretty
	default:
		return output.FormatStream
	}
}

func buildFilterSet(opts options.Options) *filter.Set {
	var predicates []filter.Predicate
	if opts.PID != 0 {
		predicates = append(predicates, filter.PID(opts.PID))
	}
	if opts.ProcessName != "" {
		predicates = append(predicates, filter.Name(opts.ProcessName))
	}
	if opts.LibrarySubstring != "" {
		predicates = append(predicates, filter.Library(opts.LibrarySubstring))
	}
	if opts.FileGlob != "" {
		predicates = append(predicates, filter.Glob(opts.FileGlob))
	}
	return filter.NewSet(predicates...)
}

// NewLogger builds the ambient zap.Logger from verbose/quiet, mapping
// directly onto the four levels spec §6 assumes.
func NewLogger(verbose, quiet bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	switch {
	case quiet:
		cfg.Level.SetLevel(zap.ErrorLevel)
	case verbose:
		cfg.Level.SetLevel(zap.DebugLevel)
	default:
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	return cfg.Build()
}
