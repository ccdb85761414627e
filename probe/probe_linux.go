//go:build linux

// This file is the Linux eBPF implementation of the probe Manager. It is
// grounded directly on the teacher's platform/bpf_linux.go: rlimit removal,
// generated-object loading via bpf2go, link.Tracepoint/link.Kprobe attach
// with per-program partial-failure handling, and a single shared ring
// buffer read with a bounded deadline.
//
// The kernel probe programs themselves are out of scope for this
// specification (spec.md §1): their attachment points and emitted record
// shapes are fixed by package record, but the C source compiled by bpf2go
// is not part of this module. `go generate ./...` (clang required) produces
// the cryptoprobes_bpfel.go/cryptoprobes_bpfeb.go loader this file calls
// into, exactly as the teacher's execve_bpfel.go is produced from bpf/execve.c.
package probe

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall" cryptoprobes bpf/crypto_probes.c -- -I./bpf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"

	"github.com/marcoeg/crypto-tracer/record"
)

// pollDeadline is the bounded wait spec §4.2 names.
const pollDeadline = 10 * time.Millisecond

// cleanupBudget bounds total teardown time, spec §4.2/§5.
const cleanupBudget = 5 * time.Second

type linuxManager struct {
	objs    cryptoprobesObjects
	reader  *ringbuf.Reader
	links   map[Name]link.Link
	status  map[Name]*Status
	counter statCounters
}

// New builds the Linux probe Manager.
func New() Manager {
	return &linuxManager{
		links: make(map[Name]link.Link),
		status: map[Name]*Status{
			ProgramFileOpen:    {Name: ProgramFileOpen},
			ProgramLibLoad:     {Name: ProgramLibLoad},
			ProgramProcessExec: {Name: ProgramProcessExec},
			ProgramProcessExit: {Name: ProgramProcessExit},
			ProgramAPICall:     {Name: ProgramAPICall},
		},
	}
}

func (m *linuxManager) Load(ctx context.Context) error {
	if err := rlimit.RemoveMemlock(); err != nil {
		return fmt.Errorf("probe: remove memlock rlimit: %w", err)
	}

	if err := loadCryptoprobesObjects(&m.objs, nil); err != nil {
		// The generated object bundles all five programs; if it fails
		// to load at all, every program is unusable.
		for _, name := range AllPrograms {
			m.status[name].LastErr = err
		}
		return ErrNoUsableProbes
	}

	for _, name := range AllPrograms {
		m.status[name].Loaded = true
	}

	reader, err := ringbuf.NewReader(m.objs.Events)
	if err != nil {
		return fmt.Errorf("probe: open ring buffer reader: %w", err)
	}
	m.reader = reader
	return nil
}

func (m *linuxManager) Attach(ctx context.Context) error {
	attempts := []struct {
		name Name
		fn   func() (link.Link, error)
	}{
		{ProgramProcessExec, func() (link.Link, error) {
			return link.Tracepoint("syscalls", "sys_enter_execve", m.objs.TraceExecve, nil)
		}},
		{ProgramProcessExit, func() (link.Link, error) {
			return link.Tracepoint("sched", "sched_process_exit", m.objs.TraceProcessExit, nil)
		}},
		{ProgramFileOpen, func() (link.Link, error) {
			// Prioritized hook list (spec §9 open question 4): the
			// syscalls tracepoint is tried first, falling back to a
			// kprobe on the internal open helper if unavailable on
			// this kernel.
			if l, err := link.Tracepoint("syscalls", "sys_enter_openat", m.objs.TraceOpenat, nil); err == nil {
				return l, nil
			}
			return link.Kprobe("do_sys_openat2", m.objs.KprobeDoSysOpenat2, nil)
		}},
		{ProgramLibLoad, func() (link.Link, error) {
			return link.Kprobe("do_dlopen", m.objs.KprobeDoDlopen, nil)
		}},
		{ProgramAPICall, func() (link.Link, error) {
			// Always optional: TLS entry points live in userspace
			// shared objects located at attach time, so failure here
			// is routine (library not present on this host) rather
			// than exceptional.
			return link.Kprobe("SSL_write", m.objs.UprobeSslWrite, nil)
		}},
	}

	usable := 0
	for _, a := range attempts {
		l, err := a.fn()
		if err != nil {
			m.status[a.name].LastErr = err
			continue
		}
		m.links[a.name] = l
		m.status[a.name].Attached = true
		usable++
	}

	if usable == 0 {
		return ErrNoUsableProbes
	}
	return nil
}

func (m *linuxManager) Poll(ctx context.Context, callback func(record.Raw)) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.reader.SetDeadline(time.Now().Add(pollDeadline))

	n := 0
	for n < BatchSize {
		rec, err := m.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return n, err
			}
			// Deadline exceeded or nothing available: not fatal, just
			// the end of this poll's batch.
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return n, nil
			}
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			return n, nil
		}

		if rec.LostSamples > 0 {
			m.counter.dropped.Add(rec.LostSamples)
		}

		raw, err := record.DecodeRaw(rec.RawSample)
		if err != nil {
			continue
		}
		m.counter.processed.Add(1)
		callback(raw)
		n++

		select {
		case <-ctx.Done():
			return n, nil
		default:
		}
	}
	return n, nil
}

func (m *linuxManager) Cleanup(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if m.reader != nil {
			m.reader.Close()
		}
		for _, l := range m.links {
			l.Close()
		}
		m.objs.Close()
	}()

	select {
	case <-done:
		return nil
	case <-time.After(cleanupBudget):
		return fmt.Errorf("probe: cleanup exceeded %s watchdog", cleanupBudget)
	}
}

func (m *linuxManager) Stats() Stats {
	return m.counter.snapshot()
}

func (m *linuxManager) Status() []Status {
	out := make([]Status, 0, len(AllPrograms))
	for _, name := range AllPrograms {
		out = append(out, *m.status[name])
	}
	return out
}
