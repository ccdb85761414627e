// Command crypto-tracer is the thin, out-of-scope CLI entry point (spec
// §1/§6): it parses arguments with the standard flag package (which also
// renders -h help) and dispatches, deliberately left undecorated rather
// than built out with a CLI framework. It prints no version string and
// runs no privilege or kernel preflight checks.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/marcoeg/crypto-tracer/lifecycle"
	"github.com/marcoeg/crypto-tracer/monitor"
	"github.com/marcoeg/crypto-tracer/options"
)

func main() {
	os.Exit(int(run(os.Args[1:])))
}

func run(args []string) options.ExitCode {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: crypto-tracer <monitor|profile|snapshot> [flags]")
		return options.ExitArgument
	}
	command := args[0]

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	duration := fs.Int("duration", 0, "seconds to run before stopping (0 = until shutdown)")
	outputPath := fs.String("output", "", "output file path (default: stdout)")
	format := fs.String("format", "stream", "stream|array|pretty")
	pid := fs.Uint("pid", 0, "filter/profile target pid")
	processName := fs.String("process", "", "process-name substring filter")
	library := fs.String("library", "", "library substring filter")
	glob := fs.String("file", "", "file glob filter")
	verbose := fs.Bool("verbose", false, "debug-level logging")
	quiet := fs.Bool("quiet", false, "error-level logging only")
	disableRedaction := fs.Bool("no-redact", false, "disable home-directory path redaction")
	followChildren := fs.Bool("follow-children", false, "profile: track descendant processes")

	if err := fs.Parse(args[1:]); err != nil {
		return options.ExitArgument
	}

	opts := options.Options{
		Command:          options.Command(command),
		DurationSeconds:  *duration,
		OutputPath:       *outputPath,
		Format:           *format,
		PID:              uint32(*pid),
		ProcessName:      *processName,
		LibrarySubstring: *library,
		FileGlob:         *glob,
		Verbose:          *verbose,
		Quiet:            *quiet,
		DisableRedaction: *disableRedaction,
		FollowChildren:   *followChildren,
	}

	log, err := monitor.NewLogger(opts.Verbose, opts.Quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return options.ExitGeneral
	}
	defer log.Sync() //nolint:errcheck

	shutdown := lifecycle.NewShutdownFlag()
	stop := lifecycle.Install(shutdown)
	defer stop()

	ctx := context.Background()

	var code options.ExitCode
	switch opts.Command {
	case options.CommandMonitor:
		code, err = monitor.RunMonitor(ctx, opts, shutdown, log)
	case options.CommandProfile:
		code, err = monitor.RunProfile(ctx, opts, shutdown, log)
	case options.CommandSnapshot:
		code, err = monitor.RunSnapshot(ctx, opts, shutdown, log)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		return options.ExitArgument
	}
	if err != nil {
		log.Error("run failed", zap.Error(err))
	}
	return code
}
