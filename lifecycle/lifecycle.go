// Package lifecycle provides the cooperative shutdown flag shared by the
// event driver (C9) and the process inventory (C12), per spec §4.13. The
// signal handler writes only this flag and nothing else: no allocation,
// I/O, or string formatting runs on the signal-handling path.
package lifecycle

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// ShutdownFlag is a reentrant-safe "stop now" signal. Its zero value is
// ready to use (not requested).
type ShutdownFlag struct {
	requested atomic.Bool
}

// NewShutdownFlag returns a ShutdownFlag that has not been requested.
func NewShutdownFlag() *ShutdownFlag {
	return &ShutdownFlag{}
}

// Requested reports whether shutdown has been requested. Safe to call
// from any goroutine; this is the only method C9/C12's polling loops use.
func (f *ShutdownFlag) Requested() bool {
	return f.requested.Load()
}

// Request sets the flag. Idempotent.
func (f *ShutdownFlag) Request() {
	f.requested.Store(true)
}

// Install registers a signal handler for SIGINT/SIGTERM that sets flag
// and returns a stop function that deregisters the handler. The returned
// channel-based handler performs no work beyond the atomic store: there
// is no log line, no allocation, on the signal-delivery path itself.
func Install(flag *ShutdownFlag) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			flag.Request()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
