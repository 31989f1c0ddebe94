package demod

import "math"

// PSKMode selects the differential PSK constellation.
type PSKMode int

const (
	// PSKV26 is 4-phase DPSK at 1200 baud, 2 bits/symbol (2400 bit/s).
	PSKV26 PSKMode = iota
	// PSKV27 is 8-phase DPSK at 1600 baud, 3 bits/symbol (4800 bit/s).
	PSKV27
)

func (m PSKMode) bitsPerSymbol() int {
	if m == PSKV27 {
		return 3
	}
	return 2
}

func (m PSKMode) symbolBaud() int {
	if m == PSKV27 {
		return 1600
	}
	return 1200
}

// PSKAlt selects between the two incompatible V.26 phase mappings:
// alternative A uses phase shifts of 0/90/180/270 degrees per dibit,
// alternative B offsets the whole constellation by 45 degrees
// (45/135/225/315). Both ends of a link must agree.
type PSKAlt int

const (
	V26AltA PSKAlt = iota
	V26AltB
)

// PSKConfig describes one differential-PSK channel.
type PSKConfig struct {
	SamplesPerSec int
	CarrierFreq   int
	Mode          PSKMode
	V26Alt        PSKAlt // ignored for PSKV27
}

// phaseOffset is the constellation rotation the configured alternative
// adds to every symbol's differential phase shift.
func (c PSKConfig) phaseOffset() float64 {
	if c.Mode == PSKV26 && c.V26Alt == V26AltB {
		return math.Pi / 4
	}
	return 0
}

// PSKDemod demodulates a differentially-encoded PSK signal by tracking
// carrier phase with a quadrature mixer and comparing each symbol's
// phase to the previous one.
type PSKDemod struct {
	cfg PSKConfig

	carrierPhase float64
	phaseStep    float64

	samplesPerSymbol float64
	sampleAccum      float64

	i, q         float64
	prevSymPhase float64
	haveSymPhase bool

	pendingBits []int
	bitCursor   int
}

// NewPSKDemod builds a demodulator for cfg.
func NewPSKDemod(cfg PSKConfig) *PSKDemod {
	return &PSKDemod{
		cfg:              cfg,
		phaseStep:        2 * math.Pi * float64(cfg.CarrierFreq) / float64(cfg.SamplesPerSec),
		samplesPerSymbol: float64(cfg.SamplesPerSec) / float64(cfg.Mode.symbolBaud()),
	}
}

// pskLowpassGain smooths the quadrature mixer output across a symbol.
const pskLowpassGain = 0.3

// ProcessSample feeds one baseband sample through the carrier mixer and
// symbol-phase accumulator, returning one recovered data bit at a time
// (bitsPerSymbol bits become available together once per symbol, then
// are drained one per call).
func (p *PSKDemod) ProcessSample(sam float64) (bit int, haveBit bool) {
	if p.bitCursor < len(p.pendingBits) {
		b := p.pendingBits[p.bitCursor]
		p.bitCursor++
		return b, true
	}

	p.carrierPhase += p.phaseStep
	if p.carrierPhase > 2*math.Pi {
		p.carrierPhase -= 2 * math.Pi
	}

	mi := sam * math.Cos(p.carrierPhase)
	mq := sam * math.Sin(p.carrierPhase)
	p.i += pskLowpassGain * (mi - p.i)
	p.q += pskLowpassGain * (mq - p.q)

	p.sampleAccum++
	if p.sampleAccum < p.samplesPerSymbol {
		return 0, false
	}
	p.sampleAccum -= p.samplesPerSymbol

	symPhase := math.Atan2(p.q, p.i)
	if !p.haveSymPhase {
		p.prevSymPhase = symPhase
		p.haveSymPhase = true
		return 0, false
	}

	delta := symPhase - p.prevSymPhase - p.cfg.phaseOffset()
	for delta < 0 {
		delta += 2 * math.Pi
	}
	for delta >= 2*math.Pi {
		delta -= 2 * math.Pi
	}
	p.prevSymPhase = symPhase

	n := p.cfg.Mode.bitsPerSymbol()
	levels := 1 << n
	sym := int(delta/(2*math.Pi)*float64(levels)+0.5) % levels

	p.pendingBits = p.pendingBits[:0]
	for i := n - 1; i >= 0; i-- {
		p.pendingBits = append(p.pendingBits, (sym>>uint(i))&1)
	}
	p.bitCursor = 0
	if len(p.pendingBits) == 0 {
		return 0, false
	}
	b := p.pendingBits[0]
	p.bitCursor = 1
	return b, true
}

// Level approximates a 0-100 signal level from the carrier mixer's
// recovered amplitude; PSKDemod has no PLL transition history to draw on
// the way the AFSK and scrambled-NRZI demodulators do.
func (p *PSKDemod) Level() int {
	level := int(math.Hypot(p.i, p.q) * 100)
	if level > 100 {
		level = 100
	}
	return level
}
