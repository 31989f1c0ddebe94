// Package modulate implements the transmit-side modem bank: AFSK, PSK,
// and scrambled-NRZI modulators sharing a phase-accumulator tone
// generator.
package modulate

import "math"

// sineTableSize trades a little precision for avoiding a math.Sin
// call per sample in the hot transmit path.
const sineTableSize = 256

var sineTable [sineTableSize]float64

func init() {
	for i := range sineTable {
		sineTable[i] = math.Sin(2 * math.Pi * float64(i) / float64(sineTableSize))
	}
}

// phaseAccum is a fixed-point phase accumulator driving the sine table,
// generating a tone at an arbitrary frequency without per-sample trig
// calls.
type phaseAccum struct {
	phase uint32 // top 8 bits index the sine table
	step  uint32
}

func newPhaseAccum(samplesPerSec, freq int) *phaseAccum {
	// One full table revolution per 2^32 accumulator units.
	step := uint32((uint64(freq) << 32) / uint64(samplesPerSec))
	return &phaseAccum{step: step}
}

func (p *phaseAccum) next() float64 {
	idx := (p.phase >> 24) & (sineTableSize - 1)
	p.phase += p.step
	return sineTable[idx]
}

// bitClockAccum is the transmit-side counterpart to the PLL: it doles
// out exactly one new data bit's worth of samples per bit period even
// when samplesPerSec isn't an exact multiple of baud, by accumulating
// the fractional remainder across calls.
type bitClockAccum struct {
	samplesPerSec int
	baud          int
	accum         int
}

func newBitClockAccum(samplesPerSec, baud int) *bitClockAccum {
	return &bitClockAccum{samplesPerSec: samplesPerSec, baud: baud}
}

// samplesForNextBit returns how many samples to emit for the next data
// bit, carrying any fractional remainder forward.
func (c *bitClockAccum) samplesForNextBit() int {
	c.accum += c.samplesPerSec
	n := c.accum / c.baud
	c.accum -= n * c.baud
	return n
}
