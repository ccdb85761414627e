// Package enrich resolves process name, executable path, and command
// line from the process filesystem given a PID, per spec §4.5. Every
// field is best-effort: a read failure leaves the corresponding Event
// field untouched and never propagates as an error. Grounded on the
// teacher's process.CollectProcMetadata, reduced to exactly the three
// fields spec §4.5 names (no stats, environment, or container id — those
// are teacher features with no SPEC_FULL.md component, see DESIGN.md).
package enrich

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcoeg/crypto-tracer/pool"
)

// Enrich reads /proc/<pid>/comm, /proc/<pid>/exe, and /proc/<pid>/cmdline
// and fills ev.Process, ev.Exe, ev.Cmdline. A process that has already
// exited, or any unreadable entry, simply leaves that field as decode.Decode
// set it (Process defaults to the kernel's comm; Exe/Cmdline stay empty).
func Enrich(pid uint32, ev *pool.Event) {
	base := fmt.Sprintf("/proc/%d", pid)

	if b, err := os.ReadFile(base + "/comm"); err == nil {
		if name := strings.TrimRight(string(b), "\n"); name != "" {
			ev.Process = name
		}
	}

	if exe, err := os.Readlink(base + "/exe"); err == nil && exe != "" {
		ev.Exe = exe
	}

	if b, err := os.ReadFile(base + "/cmdline"); err == nil && len(b) > 0 {
		// cmdline is NUL-separated argv; normalize internal NULs to
		// spaces and trim any trailing NUL padding.
		cmd := strings.ReplaceAll(string(b), "\x00", " ")
		cmd = strings.TrimRight(cmd, " ")
		if cmd != "" {
			ev.Cmdline = cmd
		}
	}
}
