package dtmf

// Sequencer accumulates decoded DTMF digits into commands terminated by
// '#', or abandons a partial command after a '$' inactivity timeout —
// the higher-level command-collection behavior built on top of
// Decoder's raw per-block output.
type Sequencer struct {
	buf []byte
}

// NewSequencer returns an empty Sequencer.
func NewSequencer() *Sequencer { return &Sequencer{} }

// Feed consumes one Decoder output character. It returns a completed
// command (without the trailing '#') when one finishes, and discards any
// partial buffer on a '$' timeout.
func (s *Sequencer) Feed(c byte) (command string, complete bool) {
	switch c {
	case '.', ' ':
		return "", false
	case '$':
		s.buf = s.buf[:0]
		return "", false
	case '#':
		cmd := string(s.buf)
		s.buf = s.buf[:0]
		return cmd, true
	default:
		s.buf = append(s.buf, c)
		return "", false
	}
}
