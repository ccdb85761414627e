// Package inventory produces a system-wide, point-in-time snapshot of
// crypto artifacts per process, purely from the process filesystem and
// without any kernel probes, per spec §4.12.
package inventory

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/classify"
	"github.com/marcoeg/crypto-tracer/lifecycle"
	"github.com/marcoeg/crypto-tracer/redact"
)

// Budget is the end-to-end wall-clock budget spec §4.12 and §8 scenario 8
// enforce.
const Budget = 5 * time.Second

// Process is one entry in the snapshot's process list.
type Process struct {
	PID             uint32   `json:"pid"`
	Name            string   `json:"name"`
	Exe             string   `json:"exe"`
	RunningAs       string   `json:"running_as"`
	Libraries       []string `json:"libraries"`
	OpenCryptoFiles []string `json:"open_crypto_files"`
}

// Metadata describes the snapshot run.
type Metadata struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Hostname    string    `json:"hostname"`
	Kernel      string    `json:"kernel"`
	Truncated   bool      `json:"truncated"`
}

// Summary totals the process list the snapshot actually emitted.
type Summary struct {
	TotalProcesses int `json:"total_processes"`
	TotalLibraries int `json:"total_libraries"`
	TotalFiles     int `json:"total_files"`
}

// Document is the top-level snapshot shape.
type Document struct {
	Metadata   Metadata  `json:"metadata"`
	Processes  []Process `json:"processes"`
	Summary    Summary   `json:"summary"`
}

// Options configures a snapshot run.
type Options struct {
	DisableRedaction bool
	Hostname         string
	Kernel           string
}

// Snapshot enumerates every PID directory in ascending numeric order,
// collects crypto-related shared objects from /proc/<pid>/maps and
// crypto-extension files from /proc/<pid>/fd symlinks, and includes the
// process only if at least one artifact was found. The walk is bounded
// to Budget wall-clock time; on timeout it stops enumerating and marks
// Metadata.Truncated.
func Snapshot(ctx context.Context, opts Options, classifier *classify.Cached, shutdown *lifecycle.ShutdownFlag, log *zap.Logger) (*Document, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if classifier == nil {
		classifier = classify.NewCached(4096)
	}

	ctx, cancel := context.WithTimeout(ctx, Budget)
	defer cancel()

	doc := &Document{
		Metadata: Metadata{
			Version:     "1",
			GeneratedAt: time.Now().UTC(),
			Hostname:    opts.Hostname,
			Kernel:      opts.Kernel,
		},
	}

	pids, err := listPIDs()
	if err != nil {
		return nil, err
	}

	for _, pid := range pids {
		select {
		case <-ctx.Done():
			doc.Metadata.Truncated = true
			log.Warn("inventory: wall-clock budget exceeded, snapshot truncated",
				zap.Int("scanned", len(doc.Processes)), zap.Int("total_pids", len(pids)))
			return finalize(doc), nil
		default:
		}
		if shutdown != nil && shutdown.Requested() {
			doc.Metadata.Truncated = true
			return finalize(doc), nil
		}

		proc, ok := scanProcess(pid, opts, classifier)
		if ok {
			doc.Processes = append(doc.Processes, proc)
		}
	}

	return finalize(doc), nil
}

func finalize(doc *Document) *Document {
	for _, p := range doc.Processes {
		doc.Summary.TotalLibraries += len(p.Libraries)
		doc.Summary.TotalFiles += len(p.OpenCryptoFiles)
	}
	doc.Summary.TotalProcesses = len(doc.Processes)
	return doc
}

// listPIDs enumerates /proc/[0-9]+ in ascending numeric order. os.ReadDir
// sorts lexically ("10" before "2"), which is wrong for PIDs, so the
// numeric sort here is a deliberate correctness fix over naive directory
// order.
func listPIDs() ([]uint32, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make([]uint32, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.ParseUint(e.Name(), 10, 32)
		if err != nil {
			continue
		}
		pids = append(pids, uint32(n))
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

func scanProcess(pid uint32, opts Options, classifier *classify.Cached) (Process, bool) {
	procDir := "/proc/" + strconv.FormatUint(uint64(pid), 10)

	if _, err := os.Stat(procDir); err != nil {
		return Process{}, false
	}

	libs := scanLibraries(procDir)
	files := scanOpenFiles(procDir, opts, classifier)
	if len(libs) == 0 && len(files) == 0 {
		return Process{}, false
	}

	name := ""
	if b, err := os.ReadFile(procDir + "/comm"); err == nil {
		name = strings.TrimRight(string(b), "\n")
	}
	exe := ""
	if e, err := os.Readlink(procDir + "/exe"); err == nil {
		exe = redact.Path(e, !opts.DisableRedaction)
	}
	runningAs := ""
	if uid, ok := readUID(procDir); ok {
		runningAs = uid
	}

	return Process{
		PID:             pid,
		Name:            name,
		Exe:             exe,
		RunningAs:       runningAs,
		Libraries:       libs,
		OpenCryptoFiles: files,
	}, true
}

// scanLibraries collects, in procfs enumeration order with duplicates
// removed, every mapped shared object whose filename contains a
// canonical crypto library substring. Library-substring matching has no
// per-path decision worth memoizing (unlike file extensions, there's
// nothing to cache here), so unlike scanOpenFiles it doesn't take a
// *classify.Cached.
func scanLibraries(procDir string) []string {
	f, err := os.Open(procDir + "/maps")
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := make(map[string]bool)
	var libs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		idx := strings.IndexByte(line, '/')
		if idx < 0 {
			continue
		}
		path := line[idx:]
		if !classify.IsCryptoLibrary(path) {
			continue
		}
		if seen[path] {
			continue
		}
		seen[path] = true
		libs = append(libs, path)
	}
	return libs
}

// scanOpenFiles collects, in procfs enumeration order with duplicates
// removed, every fd symlink resolving to a path whose extension
// classifies as a crypto artifact.
func scanOpenFiles(procDir string, opts Options, classifier *classify.Cached) []string {
	fdDir := procDir + "/fd"
	entries, err := os.ReadDir(fdDir)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var files []string
	for _, e := range entries {
		target, err := os.Readlink(fdDir + "/" + e.Name())
		if err != nil {
			continue
		}
		if classifier.FileKindOf(target) == classify.FileKindUnknown {
			continue
		}
		redacted := redact.Path(target, !opts.DisableRedaction)
		if seen[redacted] {
			continue
		}
		seen[redacted] = true
		files = append(files, redacted)
	}
	return files
}

func readUID(procDir string) (string, bool) {
	f, err := os.Open(procDir + "/status")
	if err != nil {
		return "", false
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "Uid:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				return "uid:" + fields[1], true
			}
		}
	}
	return "", false
}
