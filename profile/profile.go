// Package profile accumulates per-PID state during a profiling run and
// finalizes it to a profile document, per spec §3/§4.11. The aggregator
// takes a by-value copy of any string it retains — it never keeps a
// borrow into a pool.Event's fields, since those are reset on release.
package profile

import (
	"time"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

// LibraryObservation is one library load, insertion-order preserved.
type LibraryObservation struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	FirstLoadTime time.Time `json:"first_load_time"`
}

// FileObservation is the accumulated state for one redacted file path.
type FileObservation struct {
	Kind          string    `json:"kind"`
	AccessCount   int       `json:"access_count"`
	FirstAccess   time.Time `json:"first_access"`
	LastAccess    time.Time `json:"last_access"`
	Mode          uint32    `json:"mode"`
}

// Statistics rolls up totals for the finalized document.
type Statistics struct {
	TotalEvents    int `json:"total_events"`
	TotalLibraries int `json:"total_libraries"`
	TotalFiles     int `json:"total_files"`
	TotalAPICalls  int `json:"total_api_calls"`
}

// Metadata describes the profiled target and the run itself.
type Metadata struct {
	Version          string        `json:"version"`
	GeneratedAt      time.Time     `json:"generated_at"`
	Duration         time.Duration `json:"duration_ns"`
	TargetPID        uint32        `json:"target_pid"`
	TargetName       string        `json:"target_name"`
	TargetExe        string        `json:"target_exe"`
	TargetCmdline    string        `json:"target_cmdline"`
	TargetUID        uint32        `json:"target_uid"`
	TargetGID        uint32        `json:"target_gid"`
	TargetStartTime  time.Time     `json:"target_start_time"`
}

// Document is the top-level profile shape, written in full exactly once
// per invocation.
type Document struct {
	Metadata      Metadata                    `json:"metadata"`
	Libraries     []LibraryObservation        `json:"libraries"`
	FilesAccessed map[string]*FileObservation `json:"files_accessed"`
	APICalls      map[string]int              `json:"api_calls"`
	Statistics    Statistics                  `json:"statistics"`
}

// Aggregator accumulates state for one target PID over a fixed wall-clock
// window. FollowChildren tracks descendants via process_exec/process_exit
// records, per spec §9 open question 1.
type Aggregator struct {
	targetPID      uint32
	followChildren bool
	descendants    map[uint32]struct{}

	libraryIndex map[string]int // path -> index into libraries, for O(1) dedup
	libraries    []LibraryObservation
	files        map[string]*FileObservation
	apiCalls     map[string]int
	totalEvents  int

	meta Metadata
}

// New builds an Aggregator for targetPID. meta should already carry the
// target's static identity fields (name/exe/cmdline/uid/gid/start_time);
// Finalize fills in generated-at and duration.
func New(targetPID uint32, followChildren bool, meta Metadata) *Aggregator {
	a := &Aggregator{
		targetPID:      targetPID,
		followChildren: followChildren,
		libraryIndex:   make(map[string]int),
		files:          make(map[string]*FileObservation),
		apiCalls:       make(map[string]int),
		meta:           meta,
	}
	if followChildren {
		a.descendants = map[uint32]struct{}{targetPID: {}}
	}
	return a
}

// Tracks reports whether pid should be considered part of this profile's
// target set: the target PID itself, or — with FollowChildren — a known
// descendant.
func (a *Aggregator) Tracks(pid uint32) bool {
	if pid == a.targetPID {
		return true
	}
	if !a.followChildren {
		return false
	}
	_, ok := a.descendants[pid]
	return ok
}

// NoteExec registers pid as a tracked descendant when ppid is itself
// tracked (the target PID or an already-known descendant), discovering
// grandchildren transitively as their own exec events arrive. The caller
// (RunProfile) must call this for every process_exec record before
// gating on Tracks, since a new descendant's PID is by definition not
// yet tracked — gating first would make this branch unreachable.
func (a *Aggregator) NoteExec(pid, ppid uint32) {
	if !a.followChildren || pid == a.targetPID {
		return
	}
	if a.Tracks(ppid) {
		a.descendants[pid] = struct{}{}
	}
}

// Observe folds one already-decoded, enriched, classified, redacted event
// into the aggregator's state. now is the event's parsed timestamp.
func (a *Aggregator) Observe(ev *pool.Event, now time.Time) {
	a.totalEvents++

	switch record.Kind(ev.Kind) {
	case record.KindLibLoad:
		if _, seen := a.libraryIndex[ev.Library]; !seen {
			a.libraryIndex[ev.Library] = len(a.libraries)
			a.libraries = append(a.libraries, LibraryObservation{
				Name:          ev.LibraryName,
				Path:          ev.Library,
				FirstLoadTime: now,
			})
		}

	case record.KindFileOpen:
		f, ok := a.files[ev.File]
		if !ok {
			f = &FileObservation{
				Kind:        ev.FileKind.String(),
				FirstAccess: now,
			}
			a.files[ev.File] = f
		}
		f.AccessCount++
		f.LastAccess = now
		f.Mode = ev.Flags

	case record.KindAPICall:
		a.apiCalls[ev.Function]++

	case record.KindProcessExit:
		if a.followChildren {
			delete(a.descendants, ev.PID)
		}
	}
}

// Finalize produces the profile document. duration is the wall-clock
// time the profiling run actually spent (may be shorter than the
// requested duration on early termination).
func (a *Aggregator) Finalize(duration time.Duration) *Document {
	a.meta.GeneratedAt = time.Now().UTC()
	a.meta.Duration = duration

	return &Document{
		Metadata:      a.meta,
		Libraries:     a.libraries,
		FilesAccessed: a.files,
		APICalls:      a.apiCalls,
		Statistics: Statistics{
			TotalEvents:    a.totalEvents,
			TotalLibraries: len(a.libraries),
			TotalFiles:     len(a.files),
			TotalAPICalls:  len(a.apiCalls),
		},
	}
}
