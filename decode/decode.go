// Package decode transforms a raw ring-buffer record into a pool-held
// event, filling type-specific fields, per spec §4.4.
package decode

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/classify"
	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

// timestampLayout is the ISO-8601 UTC form with six-digit sub-second
// precision named throughout the spec (§3, §4.4, §6).
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// BootOffset is the wall-clock time corresponding to kernel boot-clock
// zero, sampled once at process start (see NewBootOffset). Decode needs
// it to turn a monotonic boot-clock reading into a wall timestamp; the
// exact conversion is left unspecified by spec §4.4, so this is recorded
// as a documented decision in DESIGN.md.
type BootOffset struct {
	at time.Time
}

// NewBootOffset returns a BootOffset for a host that has been up for
// uptimeSeconds as of now; it converts boot-clock nanosecond readings to
// wall-clock time for the remainder of the process's life. It does no I/O;
// NewBootOffsetFromProc supplies the uptime from /proc/uptime.
func NewBootOffset(uptimeSeconds float64) BootOffset {
	return BootOffset{at: time.Now().Add(-time.Duration(uptimeSeconds * float64(time.Second)))}
}

// ToWall converts a kernel boot-clock nanosecond reading to wall time.
func (b BootOffset) ToWall(bootNS uint64) time.Time {
	return b.at.Add(time.Duration(bootNS))
}

// NewBootOffsetFromProc reads /proc/uptime once to build a BootOffset.
// If /proc/uptime can't be read (e.g. during development off Linux), it
// falls back to treating the current instant as boot time, degrading
// timestamp accuracy rather than failing the whole run.
func NewBootOffsetFromProc() (BootOffset, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return NewBootOffset(0), err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return NewBootOffset(0), nil
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return NewBootOffset(0), err
	}
	return NewBootOffset(seconds), nil
}

// Decode fills ev from raw using boot to convert raw's monotonic
// timestamp to wall-clock time. It is a total function over raw.Kind:
// unknown kinds and malformed payloads are logged and rejected (false).
// The header fields (Kind, Timestamp, PID, UID, Process) are written
// before the kind is inspected, so a rejected ev still carries them.
func Decode(raw record.Raw, ev *pool.Event, boot BootOffset, log *zap.Logger) bool {
	ev.Kind = uint32(raw.Kind)
	ev.Timestamp = boot.ToWall(raw.TimestampNS).UTC().Format(timestampLayout)
	ev.PID = raw.PID
	ev.UID = raw.UID
	ev.Process = record.CString(raw.Comm[:])

	switch raw.Kind {
	case record.KindFileOpen:
		var p record.FileOpen
		if err := record.DecodePayload(raw.Payload, &p); err != nil {
			log.Warn("decode: malformed file_open payload", zap.Error(err))
			return false
		}
		ev.File = record.CString(p.Filename[:])
		ev.Flags = p.Flags
		ev.Result = p.Result
		ev.FileKind = classify.FileKindOf(ev.File)
		return true

	case record.KindLibLoad:
		var p record.LibLoad
		if err := record.DecodePayload(raw.Payload, &p); err != nil {
			log.Warn("decode: malformed lib_load payload", zap.Error(err))
			return false
		}
		ev.Library = record.CString(p.Path[:])
		if name, ok := classify.LibraryName(ev.Library); ok {
			ev.LibraryName = name
		}
		return true

	case record.KindProcessExec:
		var p record.ProcessExec
		if err := record.DecodePayload(raw.Payload, &p); err != nil {
			log.Warn("decode: malformed process_exec payload", zap.Error(err))
			return false
		}
		ev.Cmdline = record.CString(p.Cmdline[:])
		ev.PPID = p.PPID
		return true

	case record.KindProcessExit:
		var p record.ProcessExit
		if err := record.DecodePayload(raw.Payload, &p); err != nil {
			log.Warn("decode: malformed process_exit payload", zap.Error(err))
			return false
		}
		ev.ExitCode = p.ExitCode
		return true

	case record.KindAPICall:
		var p record.APICall
		if err := record.DecodePayload(raw.Payload, &p); err != nil {
			log.Warn("decode: malformed api_call payload", zap.Error(err))
			return false
		}
		ev.Function = record.CString(p.Function[:])
		ev.Library = record.CString(p.Library[:])
		return true

	default:
		log.Warn("decode: unknown record kind", zap.Uint32("kind", uint32(raw.Kind)))
		return false
	}
}
