package demod

import "math"

// AFSKConfig describes one Bell 202-style AFSK channel (1200 baud,
// 1200/2200 Hz mark/space is the common case, but the frequencies and
// baud rate are configurable per channel/subchannel).
type AFSKConfig struct {
	SamplesPerSec int
	Baud          int
	MarkFreq      int
	SpaceFreq     int

	// SliceBias offsets this slicer's mark/space decision threshold away
	// from zero, so several instances of the same sub-channel demodulator
	// can slice the identical filtered signal at different levels (see
	// SlicerBiases).
	SliceBias float64
}

// afskLowpassGain is the gain of the single-pole IIR envelope filter
// after each quadrature mixer, fixed rather than adapted per amplitude.
const afskLowpassGain = 0.195

// AFSKDemod demodulates one AFSK sub-channel: a pair of quadrature
// mixers (one per tone) feeding low-pass filters, whose relative
// amplitude difference drives a shared PLL bit-clock recoverer.
type AFSKDemod struct {
	cfg AFSKConfig

	markPhaseStep  float64
	spacePhaseStep float64
	markPhase      float64
	spacePhase     float64

	markI, markQ   float64
	spaceI, spaceQ float64

	pll *PLL
}

// NewAFSKDemod builds a demodulator for cfg.
func NewAFSKDemod(cfg AFSKConfig) *AFSKDemod {
	twoPi := 2 * math.Pi
	return &AFSKDemod{
		cfg:            cfg,
		markPhaseStep:  twoPi * float64(cfg.MarkFreq) / float64(cfg.SamplesPerSec),
		spacePhaseStep: twoPi * float64(cfg.SpaceFreq) / float64(cfg.SamplesPerSec),
		pll:            NewPLL(cfg.SamplesPerSec, cfg.Baud),
	}
}

// ProcessSample feeds one audio sample (normalized to [-1, 1]) through
// the demodulator, returning a recovered data bit when the PLL's clock
// rolls over this sample.
func (a *AFSKDemod) ProcessSample(sam float64) (bit int, haveBit bool) {
	a.markPhase += a.markPhaseStep
	a.spacePhase += a.spacePhaseStep
	if a.markPhase > 2*math.Pi {
		a.markPhase -= 2 * math.Pi
	}
	if a.spacePhase > 2*math.Pi {
		a.spacePhase -= 2 * math.Pi
	}

	mi := sam * math.Cos(a.markPhase)
	mq := sam * math.Sin(a.markPhase)
	si := sam * math.Cos(a.spacePhase)
	sq := sam * math.Sin(a.spacePhase)

	a.markI += afskLowpassGain * (mi - a.markI)
	a.markQ += afskLowpassGain * (mq - a.markQ)
	a.spaceI += afskLowpassGain * (si - a.spaceI)
	a.spaceQ += afskLowpassGain * (sq - a.spaceQ)

	markAmp := math.Hypot(a.markI, a.markQ)
	spaceAmp := math.Hypot(a.spaceI, a.spaceQ)

	demodOut := markAmp - spaceAmp
	return a.pll.Step(demodOut - a.cfg.SliceBias)
}

// DCDPresent reports whether the recovered clock looks locked to a real
// signal.
func (a *AFSKDemod) DCDPresent() bool { return a.pll.DCDPresent() }

// Level reports the PLL's approximate 0-100 signal level.
func (a *AFSKDemod) Level() int { return a.pll.Level() }
