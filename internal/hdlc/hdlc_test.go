package hdlc

import (
	"testing"

	"github.com/kb9vck/pktmodem/internal/ax25"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func feedBits(d *Deframer, bits []byte) {
	for _, b := range bits {
		d.PutBit(int(b))
	}
}

func TestFramerDeframerRoundTrip(t *testing.T) {
	payload := []byte{0x82, 0xa0, 0xa4, 0xa6, 0x40, 0x40, 0x60, 0x9c, 0x60, 0x86, 0x82, 0x98, 0x98, 0x61, 0x03, 0xf0, 'h', 'i'}
	framed := ax25.AppendFCS(append([]byte(nil), payload...))

	var f Framer
	bits := f.Frame(framed)

	var got [][]byte
	d := NewDeframer(func(frame []byte) {
		got = append(got, append([]byte(nil), frame...))
	})
	feedBits(d, bits)

	require.Len(t, got, 1)
	assert.Equal(t, framed, got[0])
	assert.True(t, ax25.CheckFCS(got[0]))
}

func TestDeframerIgnoresShortFrames(t *testing.T) {
	var f Framer
	bits := f.Frame([]byte{0x01, 0x02})

	var got [][]byte
	d := NewDeframer(func(frame []byte) { got = append(got, frame) })
	feedBits(d, bits)

	assert.Empty(t, got)
}

func TestDeframerAbortsOnSevenOnes(t *testing.T) {
	d := NewDeframer(func(frame []byte) {
		t.Fatalf("should not emit a frame after an abort sequence")
	})
	// Opening flag, then 7 consecutive ones (abort), never a closing flag.
	var f Framer
	open := f.Frame(nil)
	feedBits(d, open[:8])
	for i := 0; i < 7; i++ {
		d.PutBit(1)
	}
}

func TestFramerStuffsFiveConsecutiveOnes(t *testing.T) {
	var f Framer
	bits := f.Frame([]byte{0xff, 0xff}) // 16 consecutive one bits in the body

	// Skip the leading and closing flags (8 bits each), then within the
	// body there must be a stuffed 0 after every run of 5 ones.
	body := bits[8 : len(bits)-8]
	ones := 0
	for i, bit := range body {
		if bit == 1 {
			ones++
			if ones > 5 {
				t.Fatalf("more than 5 consecutive one bits at position %d", i)
			}
		} else {
			if ones == 5 {
				// this is the stuffed bit, fine
			}
			ones = 0
		}
	}
}

func TestDeframerCapsBufferOnMissingFlag(t *testing.T) {
	var got [][]byte
	d := NewDeframer(func(frame []byte) { got = append(got, append([]byte(nil), frame...)) })

	var f Framer
	open := f.Frame(nil)
	feedBits(d, open[:8]) // opening flag only, enter Sync with an empty buffer

	// Feed far more than MaxFrameBytes worth of octets with no stuffing
	// pattern and no closing flag. Alternating bits avoid the 5-ones stuff
	// rule and the 7-ones abort rule so every bit lands in accumulate.
	for i := 0; i < (MaxFrameBytes+64)*8; i++ {
		d.PutBit(i % 2)
	}
	require.LessOrEqual(t, len(d.bitbuf), MaxFrameBytes, "bitbuf must be capped at MaxFrameBytes")

	// A flag closing from this state must not emit a bogus multi-megabyte
	// frame built from the uncapped buffer.
	feedBits(d, f.Frame(nil)[:8])
	assert.Empty(t, got, "overflowed candidate must be discarded, not emitted")
}

func TestFramerDeframerRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(MinFrameBytes-2, 64).Draw(rt, "n")
		payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "payload")
		framed := ax25.AppendFCS(append([]byte(nil), payload...))

		var f Framer
		bits := f.Frame(framed)

		var got []byte
		d := NewDeframer(func(frame []byte) {
			if got == nil {
				got = append([]byte(nil), frame...)
			}
		})
		feedBits(d, bits)

		if got == nil {
			rt.Fatalf("no frame emitted for %d byte payload", n)
		}
		if string(got) != string(framed) {
			rt.Fatalf("round trip mismatch: got %x want %x", got, framed)
		}
	})
}
