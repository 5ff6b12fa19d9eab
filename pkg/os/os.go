// Package os collects small OS-facing helpers for channeld:
// termination signal handling and a path-existence check.
package os

import (
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
)

// Exists reports whether path exists, treating any stat error other
// than "not exist" as existing (conservative: callers fall back to a
// failing open rather than silently skipping a real file).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// ExpectTermination returns a channel that receives once when the
// process gets SIGINT or SIGTERM, used by channeld to block the main
// goroutine until it is time to shut down.
func ExpectTermination() chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{}, 1)
	go func() {
		<-signals
		done <- struct{}{}
	}()
	return done
}
