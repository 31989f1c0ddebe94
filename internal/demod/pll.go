// Package demod implements the receive-side modem bank: per-sample
// demodulation of AFSK, PSK, and scrambled-NRZI signals into a data bit
// stream, digital PLL-based clock recovery shared across all of them, and
// winner-selection across the several demodulator/slicer candidates a
// channel can run in parallel.
package demod

import "math/bits"

// pllAccumBits is the width of the PLL's phase accumulator. A full
// revolution (1<<pllAccumBits) represents one bit period; the
// accumulator rolls over at the target sampling instant.
const pllAccumBits = 32

// PLL recovers the bit clock from a continuous demodulated signal by
// nudging a phase accumulator toward the signal's zero crossings: no
// sample ever re-times the clock by more than a small fraction
// of a bit period, so a noisy zero crossing can't make the recovered
// clock jump.
type PLL struct {
	samplesPerSec int
	baud          int
	step          uint32 // phase increment per sample

	phase    uint32
	prevSign bool
	haveSign bool

	dcd *dcdScorer
}

// NewPLL builds a PLL for the given sample rate and symbol rate.
func NewPLL(samplesPerSec, baud int) *PLL {
	step := uint32((uint64(baud) << pllAccumBits) / uint64(samplesPerSec))
	return &PLL{
		samplesPerSec: samplesPerSec,
		baud:          baud,
		step:          step,
		dcd:           newDCDScorer(),
	}
}

// nudgeDivisor controls how strongly a detected zero crossing pulls the
// phase toward its target (1/8 of the distance remaining): a nudge,
// never a snap.
const nudgeDivisor = 8

// Step advances the PLL by one sample of the demodulated signal,
// reporting a bit decision (and its DCD-relevant transition marker) each
// time the accumulator rolls over, i.e. once per recovered bit period.
func (p *PLL) Step(demodOut float64) (bit int, haveBit bool) {
	sign := demodOut >= 0

	if p.haveSign && sign != p.prevSign {
		// Zero crossing: nudge phase toward the target (the rollover
		// point, phase == 0) rather than resetting outright.
		var delta int64
		if p.phase < 1<<(pllAccumBits-1) {
			delta = -int64(p.phase) / nudgeDivisor
		} else {
			delta = int64(^p.phase+1) / nudgeDivisor
		}
		p.phase = uint32(int64(p.phase) + delta)
		p.dcd.observe(true)
	} else if p.haveSign {
		p.dcd.observe(false)
	}
	p.prevSign = sign
	p.haveSign = true

	prevPhase := p.phase
	p.phase += p.step
	if p.phase < prevPhase {
		// Rolled over: sample the bit at this instant.
		return boolToBit(sign), true
	}
	return 0, false
}

// DCDPresent reports whether the recent transition history looks like a
// real signal rather than noise.
func (p *PLL) DCDPresent() bool { return p.dcd.present() }

// Level approximates an audio signal level in 0-100 from the same
// transition history DCDPresent scores, for the winner-selection
// diagnostic reported alongside a decoded frame. It is a rough proxy,
// not a calibrated signal meter: dense, clock-periodic transitions read
// as a strong signal, silence or pure noise read low.
func (p *PLL) Level() int {
	n := bits.OnesCount32(p.dcd.history)
	level := n * 100 / dcdWindowBits
	if level > 100 {
		level = 100
	}
	return level
}

func boolToBit(sign bool) int {
	if sign {
		return 1
	}
	return 0
}

// dcdWindowBits is the shift-register width used to score recent
// transition history.
const dcdWindowBits = 32

// dcdGoodThreshold / dcdBadThreshold bound the "OnesCount in recent
// transition history" range that counts as carrier-detected.
const (
	dcdGoodThreshold = 3
	dcdBadThreshold  = 9
)

// dcdScorer tracks whether recent signal transitions look like valid
// packet data (occasional, clock-periodic transitions) or noise
// (transitions on nearly every sample, or none at all).
type dcdScorer struct {
	history uint32
}

func newDCDScorer() *dcdScorer { return &dcdScorer{} }

func (d *dcdScorer) observe(transition bool) {
	d.history <<= 1
	if transition {
		d.history |= 1
	}
}

func (d *dcdScorer) present() bool {
	n := bits.OnesCount32(d.history)
	return n >= dcdGoodThreshold && n <= dcdBadThreshold
}
