// Package hdlc implements the bit-level HDLC framer and deframer shared by
// every channel: flag detection, zero-bit insertion/removal ("bit
// stuffing"), and the min-frame-length and abort checks that decide when a
// candidate frame is handed off for FCS validation.
package hdlc

import "github.com/kb9vck/pktmodem/internal/ax25"

// Flag is the HDLC flag octet, 0b01111110, sent/received LSB first.
const Flag = 0x7e

// MinFrameBytes is the shortest frame worth attempting to decode: two
// 7-byte addresses, one control octet, and two FCS bytes.
const MinFrameBytes = 2*7 + 1 + 2

// MaxFrameBytes bounds the assembly buffer. Noise or a stuck channel that
// never produces a flag must not grow bitbuf without limit; exceeding this
// forces a return to Hunt (discard and wait for the next flag).
const MaxFrameBytes = 2048

// Deframer consumes a decoded (NRZI-resolved) bit stream and emits
// candidate frames at each flag. It holds no knowledge of demodulation;
// callers feed it one data bit at a time from the receive chain.
//
// It intentionally does not reject a frame for bad FCS — that is the
// caller's job, so that the bit fixer (see the fixer package) can retry
// against the same raw bit capture.
type Deframer struct {
	patDet  byte // last 8 raw bits, newest in bit 7
	oacc    byte // octet being accumulated, newest bit shifted in at 7
	olen    int  // bits accumulated into oacc; -1 means discard until next flag
	bitbuf  []byte
	onFrame func(frame []byte)
}

// NewDeframer returns a Deframer that calls onFrame with the raw frame
// bytes (addresses through FCS, flags excluded) each time a flag closes a
// candidate of at least MinFrameBytes.
func NewDeframer(onFrame func(frame []byte)) *Deframer {
	return &Deframer{olen: -1, onFrame: onFrame}
}

// PutBit feeds one already-NRZI-decoded data bit into the deframer.
func (d *Deframer) PutBit(bit int) {
	d.patDet >>= 1
	if bit != 0 {
		d.patDet |= 0x80
	}

	switch {
	case d.patDet == Flag:
		d.closeFrame()
	case d.patDet == 0xfe:
		// Seven consecutive one bits: loss of signal / abort.
		d.olen = -1
		d.bitbuf = d.bitbuf[:0]
	case d.patDet&0xfc == 0x7c:
		// Five ones followed by a zero: the zero was stuffed, discard it.
	default:
		d.accumulate(bit)
	}
}

func (d *Deframer) accumulate(bit int) {
	if d.olen < 0 {
		return
	}
	d.oacc >>= 1
	if bit != 0 {
		d.oacc |= 0x80
	}
	d.olen++
	if d.olen == 8 {
		d.bitbuf = append(d.bitbuf, d.oacc)
		d.oacc = 0
		d.olen = 0
		if len(d.bitbuf) > MaxFrameBytes {
			// Overflow: no flag has closed this candidate in MaxFrameBytes
			// octets. Drop it and hunt for the next flag instead of growing
			// bitbuf without bound.
			d.olen = -1
			d.bitbuf = d.bitbuf[:0]
		}
	}
}

func (d *Deframer) closeFrame() {
	frame := d.bitbuf
	aligned := d.olen == 7 // only the flag's own 7 leading bits left over
	d.bitbuf = nil
	d.olen = 0
	if aligned && len(frame) >= MinFrameBytes && d.onFrame != nil {
		d.onFrame(frame)
	}
}

// Framer produces the bit-stuffed, flag-delimited transmit bitstream for
// one frame: flag, stuffed body, FCS, flag.
type Framer struct{}

// Frame bit-stuffs body (which must already include its FCS) and wraps it
// in leading/trailing flags, returning the result as a slice of bits (0/1
// bytes) ready for NRZI encoding and clocking onto the channel.
func (Framer) Frame(body []byte) []byte {
	bits := make([]byte, 0, len(body)*9/8+16)
	bits = appendOctetBits(bits, Flag)

	var ones int
	for _, b := range body {
		for i := 0; i < 8; i++ {
			bit := (b >> uint(i)) & 1
			bits = append(bits, bit)
			if bit == 1 {
				ones++
				if ones == 5 {
					bits = append(bits, 0)
					ones = 0
				}
			} else {
				ones = 0
			}
		}
	}

	bits = appendOctetBits(bits, Flag)
	return bits
}

func appendOctetBits(bits []byte, octet byte) []byte {
	for i := 0; i < 8; i++ {
		bits = append(bits, (octet>>uint(i))&1)
	}
	return bits
}

// FrameWithFCS appends an AX.25 FCS to payload, then wraps the result.
func (f Framer) FrameWithFCS(payload []byte) []byte {
	return f.Frame(ax25.AppendFCS(append([]byte(nil), payload...)))
}
