// Package probe owns kernel probe attachment and the ring-buffer reader
// they share, per spec §4.2. The probe list is a prioritized set (spec §9
// open question 4): Load/Attach report partial success per program, and
// the component is operational as long as at least one program attaches.
package probe

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/marcoeg/crypto-tracer/record"
)

// Name identifies one of the five probe programs.
type Name string

const (
	ProgramFileOpen     Name = "file_open"
	ProgramLibLoad      Name = "lib_load"
	ProgramProcessExec  Name = "process_exec"
	ProgramProcessExit  Name = "process_exit"
	ProgramAPICall      Name = "api_call"
)

// AllPrograms lists the five probe programs in priority order. api_call
// is always-optional (spec §4.2).
var AllPrograms = []Name{
	ProgramFileOpen, ProgramLibLoad, ProgramProcessExec, ProgramProcessExit, ProgramAPICall,
}

// ErrNoUsableProbes is returned by Load when zero probes load
// successfully.
var ErrNoUsableProbes = errors.New("probe: no usable probes")

// ErrUnsupportedPlatform is returned by Load on non-Linux builds.
var ErrUnsupportedPlatform = errors.New("probe: unsupported platform")

// Status is the per-program state spec §4.2/§9 calls for: a small record
// (name, loaded, attached, last_error) surfaced by Stats and logged,
// avoiding an all-or-nothing contract the rest of the pipeline never
// intended.
type Status struct {
	Name     Name
	Loaded   bool
	Attached bool
	LastErr  error
}

// Stats exposes the monotonic counters spec §4.2 names. Dropped is the
// authoritative source of lossy-capture accounting (producer-side ring
// buffer refusals when full); Processed counts records handed to the
// Poll callback.
type Stats struct {
	Processed uint64
	Dropped   uint64
}

type statCounters struct {
	processed atomic.Uint64
	dropped   atomic.Uint64
}

func (c *statCounters) snapshot() Stats {
	return Stats{Processed: c.processed.Load(), Dropped: c.dropped.Load()}
}

// Manager is the interface RunMonitor/RunProfile drive the probe layer
// through. The four operations map directly onto spec §4.2.
type Manager interface {
	// Load opens all probe programs, recording loaded/failed per
	// program. Fails with ErrNoUsableProbes only if zero programs load.
	Load(ctx context.Context) error
	// Attach attaches each loaded program independently; same
	// partial-success policy as Load.
	Attach(ctx context.Context) error
	// Poll waits up to 10ms for ring-buffer activity, then drains up to
	// a bounded batch, invoking callback for each record. Returns the
	// number of records consumed. A context already cancelled when Poll
	// is called is reported as (0, context.Canceled), distinguished from a
	// fatal poll error; a cancellation seen mid-batch ends the batch and
	// returns the count so far with a nil error.
	Poll(ctx context.Context, callback func(record.Raw)) (int, error)
	// Cleanup detaches and closes every program under one watchdog that
	// bounds the whole teardown to 5s; individual programs have no
	// watchdog of their own.
	Cleanup(ctx context.Context) error
	// Stats returns the current processed/dropped counters.
	Stats() Stats
	// Status returns the per-program attach/load state.
	Status() []Status
}

// BatchSize is the bounded per-Poll drain limit spec §4.2 names.
const BatchSize = 100
