package output

import "os"

// NewStdoutFormatter builds a Formatter writing to the process's stdout.
// Stdout is borrowed: Close flushes but never closes os.Stdout, per
// spec's ownership rule (C10 never closes a sink it did not open).
func NewStdoutFormatter(format Format) Formatter {
	return New(format, os.Stdout, nil)
}

// NewFileFormatter opens path for writing and builds a Formatter that
// owns it: Close both flushes and closes the file.
func NewFileFormatter(format Format, path string) (Formatter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return New(format, f, f), nil
}
