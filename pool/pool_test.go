package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAcquireReleaseExhaustion covers spec §8 scenario 7: a pool of
// capacity 3 exhausts after three acquires, rejects a fourth, and
// recovers a free slot after a release.
func TestAcquireReleaseExhaustion(t *testing.T) {
	p := New(3, nil)

	var handles []Handle
	for i := 0; i < 3; i++ {
		h, ev, err := p.Acquire()
		require.NoErrorf(t, err, "acquire %d", i)
		require.NotNilf(t, ev, "acquire %d", i)
		handles = append(handles, h)
	}
	assert.Equal(t, 3, p.InUseCount())

	_, _, err := p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)

	p.Release(handles[0])
	assert.Equal(t, 2, p.InUseCount())

	h, ev, err := p.Acquire()
	require.NoError(t, err)
	require.NotNil(t, ev)

	for _, rh := range []Handle{h, handles[1], handles[2]} {
		p.Release(rh)
	}
	assert.Equal(t, 0, p.InUseCount())
}

func TestAcquireResetsStaleFields(t *testing.T) {
	p := New(1, nil)
	h, ev, err := p.Acquire()
	require.NoError(t, err)
	ev.Process = "stale"
	ev.PID = 42
	p.Release(h)

	_, ev2, err := p.Acquire()
	require.NoError(t, err)
	assert.Empty(t, ev2.Process)
	assert.Zero(t, ev2.PID)
}

func TestDoubleReleaseIsSafe(t *testing.T) {
	p := New(2, nil)
	h, _, err := p.Acquire()
	require.NoError(t, err)
	p.Release(h)
	p.Release(h) // must not panic or corrupt the free list
	assert.Equal(t, 0, p.InUseCount())

	for i := 0; i < 2; i++ {
		_, _, err := p.Acquire()
		assert.NoErrorf(t, err, "acquire %d after double release", i)
	}
}

func TestReleaseOutOfRangeHandleIsSafe(t *testing.T) {
	p := New(1, nil)
	p.Release(Handle(99))
	p.Release(Handle(-1))
	assert.Equal(t, 0, p.InUseCount())
}

func TestGetRejectsUnacquiredHandle(t *testing.T) {
	p := New(2, nil)
	_, ok := p.Get(Handle(0))
	assert.False(t, ok, "Get() on a never-acquired handle should fail")

	h, _, _ := p.Acquire()
	ev, ok := p.Get(h)
	assert.True(t, ok)
	assert.NotNil(t, ev)

	p.Release(h)
	_, ok = p.Get(h)
	assert.False(t, ok, "Get() on a released handle should fail")
}

func TestCapacityZero(t *testing.T) {
	p := New(0, nil)
	assert.Equal(t, 0, p.Capacity())
	_, _, err := p.Acquire()
	assert.ErrorIs(t, err, ErrExhausted)
}
