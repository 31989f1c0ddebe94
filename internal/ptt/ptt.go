// Package ptt defines the push-to-talk capability-set abstraction: one
// Backend interface with several independent implementations (serial
// RTS/DTR, GPIO, rig control).
package ptt

import (
	"github.com/kb9vck/pktmodem/internal/logging"
	"github.com/kb9vck/pktmodem/internal/tncerr"
)

// Backend keys and unkeys a transmitter. Implementations must be safe to
// call from the channel-access goroutine only — PTT has exactly one
// writer per channel.
type Backend interface {
	// Key asserts (true) or de-asserts (false) PTT.
	Key(on bool) error
	// Close releases any underlying device handle.
	Close() error
}

// Set fans a single logical PTT request out to one or more backends
// (e.g. a radio control line plus a separate data-carrier-detect input
// driven by the same relay).
type Set struct {
	backends []Backend
	log      *logCtx
}

type logCtx struct{ channel int }

// NewSet builds a capability Set for one channel from its configured
// backends.
func NewSet(channel int, backends ...Backend) *Set {
	return &Set{backends: backends, log: &logCtx{channel: channel}}
}

// Key asserts or de-asserts every backend in the set. If any backend
// fails, the others are still attempted (so a secondary signaling path
// doesn't get stuck keyed because a primary failed), and the first
// failure is returned as a tncerr.TransmitBlocked error.
func (s *Set) Key(on bool) error {
	var firstErr error
	for _, b := range s.backends {
		if err := b.Key(on); err != nil {
			logging.For("ptt").Error("backend key failed", "channel", s.log.channel, "on", on, "err", err)
			if firstErr == nil {
				firstErr = tncerr.New(tncerr.TransmitBlocked, s.log.channel, "backend key failed", err)
			}
		}
	}
	return firstErr
}

// Close releases every backend's resources.
func (s *Set) Close() error {
	var firstErr error
	for _, b := range s.backends {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
