package monitor

import (
	"context"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/marcoeg/crypto-tracer/classify"
	"github.com/marcoeg/crypto-tracer/inventory"
	"github.com/marcoeg/crypto-tracer/lifecycle"
	"github.com/marcoeg/crypto-tracer/options"
	"github.com/marcoeg/crypto-tracer/output"
)

// RunSnapshot drives the process-inventory command entry point (spec
// §6): it bypasses the probe manager, decoder, enricher, and event
// driver entirely, driving inventory.Snapshot directly into an output
// Formatter.
func RunSnapshot(ctx context.Context, opts options.Options, shutdown *lifecycle.ShutdownFlag, log *zap.Logger) (options.ExitCode, error) {
	if log == nil {
		log = zap.NewNop()
	}

	hostname, _ := os.Hostname()

	doc, err := inventory.Snapshot(ctx, inventory.Options{
		DisableRedaction: opts.DisableRedaction,
		Hostname:         hostname,
		Kernel:           kernelRelease(),
	}, classify.NewCached(4096), shutdown, log)
	if err != nil {
		return options.ExitGeneral, err
	}

	formatter, err := buildFormatter(opts)
	if err != nil {
		return options.ExitGeneral, err
	}
	defer formatter.Close()

	if err := formatter.WriteSnapshot(doc); err != nil {
		log.Warn("failed to write snapshot document", zap.Error(err))
	}

	return options.ExitSuccess, nil
}

// kernelRelease reports the running kernel's release string (uname -r),
// used verbatim in the snapshot's metadata per spec §3.
func kernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return cstr(uts.Release[:])
}

func cstr(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}
