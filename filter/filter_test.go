package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

func TestSetEmptyMatchesEverything(t *testing.T) {
	s := NewSet()
	ev := &pool.Event{PID: 1234, Process: "nginx"}
	assert.True(t, s.Matches(ev), "empty set should match every event")
}

func TestSetANDSemantics(t *testing.T) {
	s := NewSet(PID(1234), Name("nginx"))

	assert.True(t, s.Matches(&pool.Event{PID: 1234, Process: "nginx"}))
	assert.False(t, s.Matches(&pool.Event{PID: 1234, Process: "apache"}))
	assert.False(t, s.Matches(&pool.Event{PID: 5678, Process: "nginx"}))
}

func TestSetConjunctionDecomposes(t *testing.T) {
	f1 := PID(1234)
	f2 := Name("nginx")
	combined := NewSet(f1, f2)
	only1 := NewSet(f1)
	only2 := NewSet(f2)

	events := []*pool.Event{
		{PID: 1234, Process: "nginx"},
		{PID: 1234, Process: "apache"},
		{PID: 9999, Process: "nginx"},
		{PID: 9999, Process: "apache"},
	}
	for _, ev := range events {
		want := only1.Matches(ev) && only2.Matches(ev)
		assert.Equal(t, want, combined.Matches(ev))
	}
}

func TestGlobDoesNotCrossPathSeparator(t *testing.T) {
	s := NewSet(Glob("/etc/ssl/*.pem"))
	assert.True(t, s.Matches(&pool.Event{Kind: uint32(record.KindFileOpen), File: "/etc/ssl/x.pem"}))
	assert.False(t, s.Matches(&pool.Event{Kind: uint32(record.KindFileOpen), File: "/etc/ssl/sub/x.pem"}))
}

func TestGlobOnlyAppliesToFileOpen(t *testing.T) {
	s := NewSet(Glob("*"))
	ev := &pool.Event{Kind: uint32(record.KindLibLoad), Library: "/usr/lib/libssl.so"}
	assert.False(t, s.Matches(ev), "glob predicate should not match a lib_load event")
}

func TestLibraryPredicateMatchesNameOrPath(t *testing.T) {
	s := NewSet(Library("ssl"))
	byPath := &pool.Event{Kind: uint32(record.KindLibLoad), Library: "/usr/lib/libssl.so.1.1"}
	assert.True(t, s.Matches(byPath))

	byName := &pool.Event{Kind: uint32(record.KindLibLoad), Library: "/opt/x", LibraryName: "SSLwrap"}
	assert.True(t, s.Matches(byName))
}

func TestNameIsCaseInsensitive(t *testing.T) {
	s := NewSet(Name("NGINX"))
	assert.True(t, s.Matches(&pool.Event{Process: "my-nginx-worker"}))
}
