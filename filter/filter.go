// Package filter combines PID / process-name / library / file-path
// predicates with AND semantics and early exit, per spec §4.8. Predicates
// form a closed sum type (spec §9's "polymorphism over filter kinds"
// note). The name and library predicates lower-case their needle once at
// construction; at evaluation they lower-case the event's string, which
// allocates when that string contains upper-case letters.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

// Predicate is implemented by exactly the four predicate kinds below. The
// unexported method keeps the sum type closed to this package.
type Predicate interface {
	match(ev *pool.Event) bool
	predicate()
}

type pidPredicate struct{ pid uint32 }

func (p pidPredicate) match(ev *pool.Event) bool { return ev.PID == p.pid }
func (pidPredicate) predicate()                  {}

// PID matches events whose PID is exactly pid.
func PID(pid uint32) Predicate { return pidPredicate{pid: pid} }

type namePredicate struct{ needle string } // pre-lowercased

func (p namePredicate) match(ev *pool.Event) bool {
	return strings.Contains(strings.ToLower(ev.Process), p.needle)
}
func (namePredicate) predicate() {}

// Name matches events whose process name contains substr, case-insensitive.
func Name(substr string) Predicate { return namePredicate{needle: strings.ToLower(substr)} }

type libraryPredicate struct{ needle string } // pre-lowercased

func (p libraryPredicate) match(ev *pool.Event) bool {
	if ev.Kind != uint32(record.KindLibLoad) {
		return false
	}
	return strings.Contains(strings.ToLower(ev.Library), p.needle) ||
		strings.Contains(strings.ToLower(ev.LibraryName), p.needle)
}
func (libraryPredicate) predicate() {}

// Library matches lib_load events whose library path or extracted library
// name contains substr, case-insensitive. Non-lib_load events never match.
func Library(substr string) Predicate { return libraryPredicate{needle: strings.ToLower(substr)} }

type globPredicate struct{ pattern string }

func (p globPredicate) match(ev *pool.Event) bool {
	if ev.Kind != uint32(record.KindFileOpen) {
		return false
	}
	ok, err := filepath.Match(p.pattern, ev.File)
	return err == nil && ok
}
func (globPredicate) predicate() {}

// Glob matches file_open events whose file path matches the shell glob
// pattern. filepath.Match already refuses to let '*' cross '/', matching
// spec's path-aware glob invariant with no custom matcher needed.
func Glob(pattern string) Predicate { return globPredicate{pattern: pattern} }

// Set is an unordered collection of predicates, AND-evaluated with early
// exit. An empty Set matches every event.
type Set struct {
	predicates []Predicate
}

// NewSet builds a Set from zero or more predicates.
func NewSet(predicates ...Predicate) *Set {
	return &Set{predicates: predicates}
}

// Matches reports whether ev satisfies every predicate in the set.
func (s *Set) Matches(ev *pool.Event) bool {
	for _, p := range s.predicates {
		if !p.match(ev) {
			return false
		}
	}
	return true
}

// Len reports the number of predicates in the set.
func (s *Set) Len() int { return len(s.predicates) }
