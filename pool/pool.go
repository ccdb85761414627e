// Package pool provides a fixed-capacity, pre-allocated arena of Event
// records. Acquire and Release are O(1) and allocate nothing beyond the
// owned string fields a caller later attaches; this is the "avoid exposed
// pointers" arena shape from the teacher's binary.Cache, generalized to
// event storage with integer handles instead of raw pointers so a
// double-release or a foreign handle can be bounds-checked defensively.
package pool

import (
	"errors"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/classify"
)

// ErrExhausted is returned by Acquire when every slot is in use. Callers
// treat this as "drop the current record and count it", never as fatal.
var ErrExhausted = errors.New("pool: exhausted")

// Handle is an opaque index into the pool's storage array. It is never a
// pointer, so a caller cannot corrupt pool internals by holding one past
// release and dereferencing it.
type Handle int32

const noNext Handle = -1

// Event is one pool-held record. Identity and payload fields are set by
// decode.Decode; enrichment fields are filled in by enrich.Enrich;
// classification and redaction mutate payload path fields in place.
// Owned string fields are released (set to "") on Release so the next
// Acquire returns a record with no leftover state.
type Event struct {
	// identity
	Kind      uint32 // mirrors record.Kind; avoids importing record here
	Timestamp string
	PID       uint32
	UID       uint32

	// enrichment, best-effort
	Process string
	Exe     string
	Cmdline string

	// payload, populated by kind
	File        string
	Flags       uint32
	Result      int32
	Library     string
	LibraryName string
	Function    string
	ExitCode    int32
	PPID        uint32 // process_exec only

	// classification
	FileKind classify.FileKind

	// pool linkage
	inUse bool
	next  Handle
}

// Reset clears every field back to its zero value. Called by Acquire
// before handing a slot out and by Release when taking it back; it is the
// only place Event fields are cleared.
func (e *Event) Reset() {
	*e = Event{}
}

// Pool is a fixed-capacity arena of Event with an intrusive free list.
type Pool struct {
	storage  []Event
	free     Handle
	inUse    int
	capacity int
	log      *zap.Logger
}

// New builds a Pool with the given fixed capacity. Capacity is never
// resized at runtime: exhaustion is handled by ErrExhausted, not growth.
func New(capacity int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		storage:  make([]Event, capacity),
		capacity: capacity,
		log:      log,
	}
	for i := 0; i < capacity; i++ {
		if i == capacity-1 {
			p.storage[i].next = noNext
		} else {
			p.storage[i].next = Handle(i + 1)
		}
	}
	p.free = 0
	if capacity == 0 {
		p.free = noNext
	}
	return p
}

// Acquire returns a zeroed Event and its Handle, or ErrExhausted if every
// slot is in use. O(1), no allocation.
func (p *Pool) Acquire() (Handle, *Event, error) {
	if p.free == noNext {
		return 0, nil, ErrExhausted
	}
	h := p.free
	e := &p.storage[h]
	p.free = e.next
	e.Reset()
	e.inUse = true
	p.inUse++
	return h, e, nil
}

// Get returns the Event for a handle without mutating pool state, for
// callers that only read/write fields on an already-acquired event.
func (p *Pool) Get(h Handle) (*Event, bool) {
	if h < 0 || int(h) >= len(p.storage) {
		return nil, false
	}
	e := &p.storage[h]
	if !e.inUse {
		return nil, false
	}
	return e, true
}

// Release returns a slot to the free list. Double-release and
// out-of-range handles are detected defensively and logged, never
// propagated as a fatal error (spec's programmer-error class).
func (p *Pool) Release(h Handle) {
	if h < 0 || int(h) >= len(p.storage) {
		p.log.Warn("pool: release of out-of-range handle", zap.Int32("handle", int32(h)))
		return
	}
	e := &p.storage[h]
	if !e.inUse {
		p.log.Warn("pool: double release", zap.Int32("handle", int32(h)))
		return
	}
	e.Reset()
	e.next = p.free
	p.free = h
	p.inUse--
}

// InUseCount reports the number of slots currently acquired. Never
// exceeds Capacity().
func (p *Pool) InUseCount() int { return p.inUse }

// Capacity reports the pool's fixed size.
func (p *Pool) Capacity() int { return p.capacity }
