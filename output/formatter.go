package output

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/marcoeg/crypto-tracer/inventory"
	"github.com/marcoeg/crypto-tracer/profile"
)

// Format selects one of the three output shapes.
type Format int

const (
	FormatStream Format = iota
	FormatArray
	FormatPretty
)

// Formatter owns a single output sink and emits events, profiles, and
// snapshots in one of the three shapes. It never closes a sink it did
// not open: New takes ownership only when the caller passes a non-nil
// closer for a sink it opened itself (see NewFileFormatter/NewStdoutFormatter).
type Formatter interface {
	WriteEvent(Body) error
	WriteProfile(*profile.Document) error
	WriteSnapshot(*inventory.Document) error
	Close() error
}

type sink struct {
	w        *bufio.Writer
	owned    io.Closer // nil for a borrowed sink (stdout)
	closeMu  sync.Once
	closeErr error
}

func (s *sink) flush() error { return s.w.Flush() }

func (s *sink) close() error {
	s.closeMu.Do(func() {
		s.closeErr = s.w.Flush()
		if s.owned != nil {
			if err := s.owned.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// New builds a Formatter of the given shape writing to w. If closer is
// non-nil it is closed by Close (the caller opened the sink and is
// handing over ownership); pass nil for a borrowed sink such as stdout.
func New(format Format, w io.Writer, closer io.Closer) Formatter {
	s := &sink{w: bufio.NewWriter(w), owned: closer}
	switch format {
	case FormatArray:
		return &arrayFormatter{sink: s}
	case FormatPretty:
		return &prettyFormatter{sink: s}
	default:
		return &streamFormatter{sink: s}
	}
}

// streamFormatter writes one JSON object per line, no surrounding
// punctuation, flushing after every event so streaming consumers see
// data promptly.
type streamFormatter struct{ *sink }

func (f *streamFormatter) WriteEvent(b Body) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if _, err := f.w.Write(data); err != nil {
		return err
	}
	if _, err := f.w.Write([]byte("\n")); err != nil {
		return err
	}
	return f.flush()
}

func (f *streamFormatter) WriteProfile(p *profile.Document) error {
	return writeOnce(f.sink, p)
}

func (f *streamFormatter) WriteSnapshot(s *inventory.Document) error {
	return writeOnce(f.sink, s)
}

func (f *streamFormatter) Close() error { return f.close() }

// arrayFormatter emits a '[' on first write, one indented object per
// event separated by ',', and a ']' on Close. Close is idempotent (the
// closed flag guards the ']', and sync.Once in sink guards the final
// flush and close) since spec requires finalization to be
// safe to invoke during destruction even if already called.
type arrayFormatter struct {
	*sink
	mu     sync.Mutex
	opened bool
	wrote  bool
	closed bool
}

func (f *arrayFormatter) ensureOpen() error {
	if f.opened {
		return nil
	}
	f.opened = true
	_, err := f.w.Write([]byte("["))
	return err
}

func (f *arrayFormatter) WriteEvent(b Body) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.ensureOpen(); err != nil {
		return err
	}
	if f.wrote {
		if _, err := f.w.Write([]byte(",")); err != nil {
			return err
		}
	}
	f.wrote = true
	data, err := marshalIndent(b, "  ")
	if err != nil {
		return err
	}
	if _, err := f.w.Write(data); err != nil {
		return err
	}
	return f.flush()
}

func (f *arrayFormatter) WriteProfile(p *profile.Document) error {
	return writeOnce(f.sink, p)
}

func (f *arrayFormatter) WriteSnapshot(s *inventory.Document) error {
	return writeOnce(f.sink, s)
}

// Close finalizes the array by writing ']'. Idempotent: a second call
// returns the first call's result without writing again, and finalization
// failure is never fatal (spec §7: "formatter array finalization error
// ignored, document already flushed").
func (f *arrayFormatter) Close() error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		if !f.opened {
			// No event was ever written; spec §9 open question 3 requires
			// an empty array still be emitted.
			f.ensureOpen() //nolint:errcheck
		}
		_, _ = f.w.Write([]byte("]\n"))
	}
	f.mu.Unlock()
	return f.close()
}

// prettyFormatter writes one indented object per event, no array
// wrapper.
type prettyFormatter struct{ *sink }

func (f *prettyFormatter) WriteEvent(b Body) error {
	data, err := marshalIndent(b, "  ")
	if err != nil {
		return err
	}
	if _, err := f.w.Write(data); err != nil {
		return err
	}
	if _, err := f.w.Write([]byte("\n")); err != nil {
		return err
	}
	return f.flush()
}

func (f *prettyFormatter) WriteProfile(p *profile.Document) error {
	return writeOnce(f.sink, p)
}

func (f *prettyFormatter) WriteSnapshot(s *inventory.Document) error {
	return writeOnce(f.sink, s)
}

func (f *prettyFormatter) Close() error { return f.close() }

// writeOnce marshals a profile/snapshot document in full (these are only
// produced once per invocation, per spec §4.10) and flushes.
func writeOnce(s *sink, v interface{}) error {
	data, err := marshalIndent(v, "  ")
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return err
	}
	return s.flush()
}
