// Package output emits events, profiles, and snapshots as JSON in three
// shapes (stream, array, pretty), per spec §4.10. The stdlib
// encoding/json encoder already satisfies every escaping rule spec
// §4.10 names (quote, backslash, control characters including the
// named \b\f\n\r\t forms and \uXXXX for the rest), so each field value
// below is still marshaled with json.Marshal — only the set and order
// of fields is assembled by hand, the way the original formatter's
// write_*_event_json functions (one per kind) each emit exactly their
// own field list rather than a single fixed struct with unused fields
// nulled out.
package output

import (
	"bytes"
	"encoding/json"

	"github.com/marcoeg/crypto-tracer/pool"
	"github.com/marcoeg/crypto-tracer/record"
)

// Body is the per-event JSON object. Only the fields spec §4.10 lists
// for Kind are ever written, in the documented order: common fields,
// then exactly the kind-specific fields for that kind and no others —
// there is no "null" entry for a field that belongs to a different
// kind. String fields (process, exe, file, library, library_name,
// cmdline, function_name) encode as null when empty; file_type and the
// numeric fields (flags, result, exit_code) always carry a value.
type Body struct {
	Kind      record.Kind
	EventType string
	Timestamp string
	PID       uint32
	UID       uint32
	Process   string
	Exe       string

	File     string
	FileType string
	Flags    uint32
	Result   int32

	Library     string
	LibraryName string

	Cmdline string

	ExitCode int32

	Function string
}

// BodyFromEvent projects a pool.Event into its per-kind JSON body.
func BodyFromEvent(ev *pool.Event) Body {
	return Body{
		Kind:        record.Kind(ev.Kind),
		EventType:   record.Kind(ev.Kind).String(),
		Timestamp:   ev.Timestamp,
		PID:         ev.PID,
		UID:         ev.UID,
		Process:     ev.Process,
		Exe:         ev.Exe,
		File:        ev.File,
		FileType:    ev.FileKind.String(),
		Flags:       ev.Flags,
		Result:      ev.Result,
		Library:     ev.Library,
		LibraryName: ev.LibraryName,
		Cmdline:     ev.Cmdline,
		ExitCode:    ev.ExitCode,
		Function:    ev.Function,
	}
}

// MarshalJSON writes exactly the fields spec §4.10 names for b.Kind, in
// the documented order, using objectWriter to keep the hand-assembled
// field list while still delegating every value's escaping to
// encoding/json.
func (b Body) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	w.field("event_type", b.EventType)
	w.field("timestamp", b.Timestamp)
	w.field("pid", b.PID)
	w.field("uid", b.UID)
	w.field("process", nullableString(b.Process))
	w.field("exe", nullableString(b.Exe))

	switch b.Kind {
	case record.KindFileOpen:
		w.field("file", nullableString(b.File))
		w.field("file_type", b.FileType)
		w.field("flags", b.Flags)
		w.field("result", b.Result)
	case record.KindLibLoad:
		w.field("library", nullableString(b.Library))
		w.field("library_name", nullableString(b.LibraryName))
	case record.KindProcessExec:
		w.field("cmdline", nullableString(b.Cmdline))
	case record.KindProcessExit:
		w.field("exit_code", b.ExitCode)
	case record.KindAPICall:
		w.field("function_name", nullableString(b.Function))
		w.field("library", nullableString(b.Library))
	}
	return w.bytes(), nil
}

// nullableString returns s boxed for json.Marshal, or nil (encodes as
// "null") when s is empty — absent string fields encode as null rather
// than being omitted, per spec §4.10.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// objectWriter assembles a JSON object field by field, in call order,
// so Body.MarshalJSON can emit exactly the fields one kind defines
// without a struct whose unused fields would otherwise need to encode
// as null or be conditionally tagged.
type objectWriter struct {
	buf   bytes.Buffer
	wrote bool
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v interface{}) {
	if w.wrote {
		w.buf.WriteByte(',')
	}
	w.wrote = true
	keyJSON, _ := json.Marshal(key)
	w.buf.Write(keyJSON)
	w.buf.WriteByte(':')
	valJSON, err := json.Marshal(v)
	if err != nil {
		valJSON = []byte("null")
	}
	w.buf.Write(valJSON)
}

func (w *objectWriter) bytes() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

func marshalIndent(v interface{}, indent string) ([]byte, error) {
	return json.MarshalIndent(v, "", indent)
}
