package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

func TestTracksTargetOnly(t *testing.T) {
	a := New(100, false, Metadata{TargetPID: 100})
	assert.True(t, a.Tracks(100))
	assert.False(t, a.Tracks(200), "non-target pid should be rejected without follow_children")
}

func TestFollowChildrenTracksDescendants(t *testing.T) {
	a := New(100, true, Metadata{TargetPID: 100})
	assert.True(t, a.Tracks(100))
	assert.False(t, a.Tracks(200), "child should not be tracked before its exec is observed")

	// NoteExec is what RunProfile calls, independently of Tracks, for
	// every process_exec record — this is the real discovery path, not
	// a direct Observe call that would bypass the gate entirely.
	a.NoteExec(200, 100)
	assert.True(t, a.Tracks(200), "child should be tracked once its exec's ppid matches the target")

	// A grandchild discovered via an already-tracked descendant.
	a.NoteExec(300, 200)
	assert.True(t, a.Tracks(300), "grandchild should be tracked once its exec's ppid is a known descendant")

	// An exec whose ppid is unrelated to the target's tree must not be
	// picked up.
	a.NoteExec(999, 12345)
	assert.False(t, a.Tracks(999), "exec with an untracked ppid must not be registered")

	now := time.Now()
	a.Observe(&pool.Event{Kind: uint32(record.KindProcessExit), PID: 200}, now)
	assert.False(t, a.Tracks(200), "child should stop being tracked after exit")
}

func TestFollowChildrenDisabledNeverRegistersDescendants(t *testing.T) {
	a := New(100, false, Metadata{TargetPID: 100})
	a.NoteExec(200, 100)
	assert.False(t, a.Tracks(200), "descendant discovery must be a no-op without follow_children")
}

func TestObserveLibraryDedup(t *testing.T) {
	a := New(1, false, Metadata{TargetPID: 1})
	now := time.Now()
	a.Observe(&pool.Event{Kind: uint32(record.KindLibLoad), Library: "/usr/lib/libssl.so.1.1", LibraryName: "libssl"}, now)
	a.Observe(&pool.Event{Kind: uint32(record.KindLibLoad), Library: "/usr/lib/libssl.so.1.1", LibraryName: "libssl"}, now.Add(time.Second))

	doc := a.Finalize(time.Minute)
	require.Len(t, doc.Libraries, 1)
	assert.Equal(t, now, doc.Libraries[0].FirstLoadTime)
	assert.Equal(t, 1, doc.Statistics.TotalLibraries)
}

func TestObserveFileAccessAccumulates(t *testing.T) {
	a := New(1, false, Metadata{TargetPID: 1})
	first := time.Now()
	second := first.Add(time.Minute)

	a.Observe(&pool.Event{Kind: uint32(record.KindFileOpen), File: "/etc/ssl/cert.pem", FileKind: 1}, first)
	a.Observe(&pool.Event{Kind: uint32(record.KindFileOpen), File: "/etc/ssl/cert.pem", FileKind: 1}, second)

	doc := a.Finalize(time.Hour)
	f, ok := doc.FilesAccessed["/etc/ssl/cert.pem"]
	require.True(t, ok)
	assert.Equal(t, 2, f.AccessCount)
	assert.Equal(t, first, f.FirstAccess)
	assert.Equal(t, second, f.LastAccess)
}

func TestObserveAPICallsCounted(t *testing.T) {
	a := New(1, false, Metadata{TargetPID: 1})
	now := time.Now()
	a.Observe(&pool.Event{Kind: uint32(record.KindAPICall), Function: "SSL_read"}, now)
	a.Observe(&pool.Event{Kind: uint32(record.KindAPICall), Function: "SSL_read"}, now)
	a.Observe(&pool.Event{Kind: uint32(record.KindAPICall), Function: "SSL_write"}, now)

	doc := a.Finalize(time.Second)
	assert.Equal(t, 2, doc.APICalls["SSL_read"])
	assert.Equal(t, 1, doc.APICalls["SSL_write"])
	assert.Equal(t, 2, doc.Statistics.TotalAPICalls)
}

func TestFinalizeStatisticsTotalEvents(t *testing.T) {
	a := New(1, false, Metadata{TargetPID: 1})
	now := time.Now()
	a.Observe(&pool.Event{Kind: uint32(record.KindFileOpen), File: "/a"}, now)
	a.Observe(&pool.Event{Kind: uint32(record.KindLibLoad), Library: "/b"}, now)
	a.Observe(&pool.Event{Kind: uint32(record.KindAPICall), Function: "f"}, now)

	doc := a.Finalize(time.Second)
	assert.Equal(t, 3, doc.Statistics.TotalEvents)
}
