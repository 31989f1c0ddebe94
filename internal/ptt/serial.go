package ptt

import (
	"fmt"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// Line selects which serial modem-control line carries PTT.
type Line int

const (
	LineRTS Line = iota
	LineDTR
)

// SerialBackend keys PTT by toggling the RTS or DTR modem-control line
// of a serial port, via TIOCMBIS/TIOCMBIC ioctls.
type SerialBackend struct {
	t        *term.Term
	line     Line
	inverted bool
}

// NewSerialBackend opens device and returns a Backend driving the given
// line. inverted swaps the asserted/de-asserted sense, for interface
// hardware that keys on the opposite polarity.
func NewSerialBackend(device string, line Line, inverted bool) (*SerialBackend, error) {
	t, err := term.Open(device)
	if err != nil {
		return nil, fmt.Errorf("ptt: opening %s: %w", device, err)
	}
	return &SerialBackend{t: t, line: line, inverted: inverted}, nil
}

func (s *SerialBackend) Key(on bool) error {
	if s.inverted {
		on = !on
	}
	bit := unix.TIOCM_RTS
	if s.line == LineDTR {
		bit = unix.TIOCM_DTR
	}
	fd := int(s.t.Fd())
	req := unix.TIOCMBIC
	if on {
		req = unix.TIOCMBIS
	}
	return unix.IoctlSetPointerInt(fd, uint(req), bit)
}

func (s *SerialBackend) Close() error {
	return s.t.Close()
}
