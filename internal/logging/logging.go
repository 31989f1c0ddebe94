// Package logging provides the leveled, structured logger used throughout
// the core: the single place every subsystem routes diagnostic output
// through.
package logging

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu  sync.Mutex
	std = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
)

// SetLevel adjusts the minimum level that reaches the output stream.
// Hot-path decode failures log below the default level so that noise on
// a busy channel doesn't flood the output.
func SetLevel(l log.Level) {
	mu.Lock()
	defer mu.Unlock()
	std.SetLevel(l)
}

// For returns a logger scoped to a named subsystem, e.g. For("hdlc") or
// For("link").With("chan", 0). Every C1–C10 component logs through one of
// these rather than holding a global.
func For(subsystem string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return std.WithPrefix(subsystem)
}
