package modulate

// AFSKConfig mirrors demod.AFSKConfig; kept as a separate type so the
// modulate package has no import-time dependency on demod.
type AFSKConfig struct {
	SamplesPerSec int
	Baud          int
	MarkFreq      int
	SpaceFreq     int
}

// AFSKMod generates a Bell 202-style AFSK waveform for a data bit
// stream: NRZI is not applied here (AX.25 AFSK transmits NRZ mark/space
// tones directly, one tone per data bit, with no extra line coding).
type AFSKMod struct {
	cfg   AFSKConfig
	mark  *phaseAccum
	space *phaseAccum
	clock *bitClockAccum

	amplitude float64
}

// NewAFSKMod builds a modulator for cfg at the given linear amplitude
// (0, 1].
func NewAFSKMod(cfg AFSKConfig, amplitude float64) *AFSKMod {
	return &AFSKMod{
		cfg:       cfg,
		mark:      newPhaseAccum(cfg.SamplesPerSec, cfg.MarkFreq),
		space:     newPhaseAccum(cfg.SamplesPerSec, cfg.SpaceFreq),
		clock:     newBitClockAccum(cfg.SamplesPerSec, cfg.Baud),
		amplitude: amplitude,
	}
}

// WriteBit appends one data bit's worth of AFSK samples (bit==1 selects
// mark, bit==0 selects space) to out and returns the extended slice.
func (m *AFSKMod) WriteBit(out []float64, bit int) []float64 {
	n := m.clock.samplesForNextBit()
	tone := m.space
	if bit != 0 {
		tone = m.mark
	}
	for i := 0; i < n; i++ {
		out = append(out, m.amplitude*tone.next())
	}
	return out
}

// WriteBits appends samples for every bit in bits.
func (m *AFSKMod) WriteBits(out []float64, bits []int) []float64 {
	for _, b := range bits {
		out = m.WriteBit(out, b)
	}
	return out
}
