//go:build !linux

// Non-Linux stub, mirroring the teacher's bpf_darwin.go: the agent is
// Linux-only at runtime (spec.md §1), but the module stays importable
// and buildable for development on other platforms.
package probe

import (
	"context"

	"github.com/marcoeg/crypto-tracer/record"
)

type unsupportedManager struct{}

// New returns a Manager whose Load always fails with
// ErrUnsupportedPlatform.
func New() Manager {
	return &unsupportedManager{}
}

func (m *unsupportedManager) Load(ctx context.Context) error   { return ErrUnsupportedPlatform }
func (m *unsupportedManager) Attach(ctx context.Context) error { return ErrUnsupportedPlatform }
func (m *unsupportedManager) Poll(ctx context.Context, callback func(record.Raw)) (int, error) {
	return 0, ErrUnsupportedPlatform
}
func (m *unsupportedManager) Cleanup(ctx context.Context) error { return nil }
func (m *unsupportedManager) Stats() Stats                      { return Stats{} }
func (m *unsupportedManager) Status() []Status {
	out := make([]Status, 0, len(AllPrograms))
	for _, name := range AllPrograms {
		out = append(out, Status{Name: name})
	}
	return out
}
