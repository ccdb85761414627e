package decode

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

func TestBootOffsetToWall(t *testing.T) {
	boot := NewBootOffset(10) // boot was 10s before "now"
	at := boot.ToWall(5 * uint64(time.Second))
	// 5s after boot, boot was 10s before now, so "at" should be ~5s before now.
	delta := time.Since(at)
	assert.InDelta(t, 5*time.Second, delta, float64(1*time.Second))
}

func encodePayload(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	return buf.Bytes()
}

func fixedBytes(s string) [256]byte {
	var out [256]byte
	copy(out[:], s)
	return out
}

func TestDecodeFileOpen(t *testing.T) {
	payload := record.FileOpen{
		Filename: fixedBytes("/etc/ssl/cert.pem"),
		Flags:    1,
		Result:   0,
	}
	raw := record.Raw{
		Header: record.Header{
			TimestampNS: 0,
			PID:         42,
			UID:         1000,
			Kind:        record.KindFileOpen,
		},
		Payload: encodePayload(t, payload),
	}
	copy(raw.Header.Comm[:], "nginx")

	ev := &pool.Event{}
	boot := NewBootOffset(0)
	ok := Decode(raw, ev, boot, zap.NewNop())
	require.True(t, ok)
	assert.Equal(t, "/etc/ssl/cert.pem", ev.File)
	assert.Equal(t, uint32(42), ev.PID)
	assert.Equal(t, uint32(1000), ev.UID)
	assert.Equal(t, "nginx", ev.Process)
	assert.Equal(t, "certificate", ev.FileKind.String())
}

func TestDecodeLibLoad(t *testing.T) {
	var libPath [256]byte
	copy(libPath[:], "/usr/lib/libssl.so.1.1")
	payload := record.LibLoad{Path: libPath}
	raw := record.Raw{
		Header:  record.Header{Kind: record.KindLibLoad},
		Payload: encodePayload(t, payload),
	}

	ev := &pool.Event{}
	ok := Decode(raw, ev, NewBootOffset(0), zap.NewNop())
	require.True(t, ok)
	assert.Equal(t, "/usr/lib/libssl.so.1.1", ev.Library)
	assert.Equal(t, "libssl", ev.LibraryName)
}

func TestDecodeProcessExec(t *testing.T) {
	payload := record.ProcessExec{PPID: 100, Cmdline: fixedBytes("bash -c true")}
	raw := record.Raw{
		Header:  record.Header{Kind: record.KindProcessExec},
		Payload: encodePayload(t, payload),
	}
	ev := &pool.Event{}
	ok := Decode(raw, ev, NewBootOffset(0), zap.NewNop())
	require.True(t, ok)
	assert.Equal(t, "bash -c true", ev.Cmdline)
	assert.Equal(t, uint32(100), ev.PPID)
}

func TestDecodeProcessExit(t *testing.T) {
	payload := record.ProcessExit{ExitCode: 137}
	raw := record.Raw{
		Header:  record.Header{Kind: record.KindProcessExit},
		Payload: encodePayload(t, payload),
	}
	ev := &pool.Event{}
	ok := Decode(raw, ev, NewBootOffset(0), zap.NewNop())
	require.True(t, ok)
	assert.Equal(t, int32(137), ev.ExitCode)
}

func TestDecodeUnknownKindRejected(t *testing.T) {
	raw := record.Raw{
		Header:  record.Header{Kind: record.Kind(99)},
		Payload: nil,
	}
	ev := &pool.Event{}
	assert.False(t, Decode(raw, ev, NewBootOffset(0), zap.NewNop()))
}

func TestDecodeMalformedPayloadRejected(t *testing.T) {
	raw := record.Raw{
		Header:  record.Header{Kind: record.KindFileOpen},
		Payload: []byte{0x01, 0x02}, // far too short
	}
	ev := &pool.Event{}
	assert.False(t, Decode(raw, ev, NewBootOffset(0), zap.NewNop()))
}

func TestTimestampFormat(t *testing.T) {
	boot := NewBootOffset(0)
	raw := record.Raw{
		Header:  record.Header{Kind: record.KindProcessExit},
		Payload: encodePayload(t, record.ProcessExit{ExitCode: 0}),
	}
	ev := &pool.Event{}
	ok := Decode(raw, ev, boot, zap.NewNop())
	require.True(t, ok)
	_, err := time.Parse(timestampLayout, ev.Timestamp)
	assert.NoError(t, err)
}
