package monitor

import (
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/classify"
	"github.com/marcoeg/crypto-tracer/decode"
	"github.com/marcoeg/crypto-tracer/enrich"
	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
	"github.com/marcoeg/crypto-tracer/redact"
)

// pipeline runs one raw record through decode (which also classifies the
// file kind and library name) -> kind-specific acceptance -> enrich ->
// redact. process returns the acquired handle and whether the event
// survived; callers release the handle exactly once when it did, and
// process releases it itself when it did not.
type pipeline struct {
	pool             *pool.Pool
	boot             decode.BootOffset
	disableRedaction bool
	log              *zap.Logger
}

func newPipeline(p *pool.Pool, boot decode.BootOffset, disableRedaction bool, log *zap.Logger) *pipeline {
	return &pipeline{pool: p, boot: boot, disableRedaction: disableRedaction, log: log}
}

// process decodes (and classifies) raw into a freshly acquired pool event
// and runs it through acceptance, enrichment, and redaction. ok is
// false if the pool was exhausted, decoding failed, or the kind-specific
// acceptance check rejected the record — in every false case the caller
// still owns no handle (process releases it itself before returning).
func (p *pipeline) process(raw record.Raw) (h pool.Handle, ev *pool.Event, ok bool) {
	h, ev, err := p.pool.Acquire()
	if err != nil {
		return 0, nil, false
	}

	if !decode.Decode(raw, ev, p.boot, p.log) {
		p.pool.Release(h)
		return 0, nil, false
	}

	if !accept(ev) {
		p.pool.Release(h)
		return 0, nil, false
	}

	enrich.Enrich(ev.PID, ev)

	ev.Exe = redact.Path(ev.Exe, !p.disableRedaction)
	switch record.Kind(ev.Kind) {
	case record.KindFileOpen:
		ev.File = redact.Path(ev.File, !p.disableRedaction)
	case record.KindLibLoad:
		ev.Library = redact.Path(ev.Library, !p.disableRedaction)
	}

	return h, ev, true
}

// accept applies the kind-specific whitelist spec §4.9 requires in
// user-space, since probes may over-report (e.g. attach to a broader
// kernel hook than strictly needed): file_open events that aren't a
// recognized crypto extension, and lib_load events that aren't a known
// crypto library, are dropped before enrichment.
func accept(ev *pool.Event) bool {
	switch record.Kind(ev.Kind) {
	case record.KindFileOpen:
		return ev.FileKind != classify.FileKindUnknown
	case record.KindLibLoad:
		return classify.IsCryptoLibrary(ev.Library)
	default:
		return true
	}
}

// eventTime parses ev.Timestamp back into a time.Time for the profile
// aggregator, which needs a comparable time for first/last-access
// bookkeeping rather than the formatted string.
func eventTime(ev *pool.Event) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05.000000Z", ev.Timestamp)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
