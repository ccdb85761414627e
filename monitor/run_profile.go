package monitor

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/decode"
	"github.com/marcoeg/crypto-tracer/enrich"
	"github.com/marcoeg/crypto-tracer/filter"
	"github.com/marcoeg/crypto-tracer/lifecycle"
	"github.com/marcoeg/crypto-tracer/options"
	"github.com/marcoeg/crypto-tracer/output"
	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/probe"
	"github.com/marcoeg/crypto-tracer/profile"
	"github.com/marcoeg/crypto-tracer/record"
)

// RunProfile splices the profile aggregator (C11) between filter and
// emit: the same pipeline as RunMonitor, but instead of writing each
// event it folds matching events into an Aggregator keyed on opts.PID,
// emitting one profile document on termination.
func RunProfile(ctx context.Context, opts options.Options, shutdown *lifecycle.ShutdownFlag, log *zap.Logger) (options.ExitCode, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PID == 0 {
		return options.ExitArgument, errors.New("monitor: profile requires a target pid")
	}

	mgr := probe.New()
	if err := mgr.Load(ctx); err != nil {
		log.Error("probe load failed", zap.Error(err))
		return options.ExitProbeLoadFailure, err
	}
	if err := mgr.Attach(ctx); err != nil {
		log.Error("probe attach failed", zap.Error(err))
		return options.ExitProbeLoadFailure, err
	}

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

	meta := profile.Metadata{
		Version:   "1",
		TargetPID: opts.PID,
	}
	var target pool.Event
	enrich.Enrich(opts.PID, &target)
	meta.TargetName = target.Process
	meta.TargetExe = target.Exe
	meta.TargetCmdline = target.Cmdline
	meta.TargetStartTime = time.Now().UTC()

	agg := profile.New(opts.PID, opts.FollowChildren, meta)

	deadline := time.Time{}
	if opts.DurationSeconds > 0 {
		deadline = time.Now().Add(opts.Duration())
	}
	start := time.Now()

	terminatedEarly := false
	process := func(raw record.Raw) {
		h, ev, ok := pipe.process(raw)
		if !ok {
			return
		}
		defer evPool.Release(h)

		if record.Kind(ev.Kind) == record.KindProcessExec {
			// A new descendant's PID is by definition not yet tracked,
			// so discovery must run before the Tracks gate below, not
			// after it.
			agg.NoteExec(ev.PID, ev.PPID)
		}

		if !agg.Tracks(ev.PID) {
			return
		}
		if !filterSet.Matches(ev) {
			return
		}
		agg.Observe(ev, eventTime(ev))
	}

runLoop:
	for {
		if shutdown.Requested() {
			terminatedEarly = true
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if unix.Kill(int(opts.PID), 0) != nil {
			log.Info("profile target no longer exists, terminating early", zap.Uint32("pid", opts.PID))
			terminatedEarly = true
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

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Cleanup(cleanupCtx); err != nil {
		log.Warn("probe cleanup did not complete cleanly", zap.Error(err))
	}

	doc := agg.Finalize(time.Since(start))
	if terminatedEarly {
		log.Info("profile ended by early termination, document schema unchanged", zap.Uint32("pid", opts.PID))
	}
	if err := formatter.WriteProfile(doc); err != nil {
		log.Warn("failed to write profile document", zap.Error(err))
	}

	return options.ExitSuccess, nil
}
