package demod

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// genAFSKTone synthesizes n samples of a pure mark or space tone at the
// given config, for exercising the demodulator without a real capture.
func genAFSKTone(cfg AFSKConfig, freq int, n int) []float64 {
	out := make([]float64, n)
	phase := 0.0
	step := 2 * math.Pi * float64(freq) / float64(cfg.SamplesPerSec)
	for i := range out {
		out[i] = math.Sin(phase)
		phase += step
	}
	return out
}

func TestAFSKDemodLocksOnMarkTone(t *testing.T) {
	cfg := AFSKConfig{SamplesPerSec: 9600, Baud: 1200, MarkFreq: 1200, SpaceFreq: 2200}
	d := NewAFSKDemod(cfg)
	samples := genAFSKTone(cfg, cfg.MarkFreq, cfg.SamplesPerSec*2)

	bits := 0
	for _, s := range samples {
		if _, have := d.ProcessSample(s); have {
			bits++
		}
	}
	// Roughly baud*seconds bit decisions should appear, within a loose
	// tolerance since this is a floating demod not a golden reference.
	require.Greater(t, bits, cfg.Baud)
}

func TestAFSKDemodDistinguishesMarkSpace(t *testing.T) {
	cfg := AFSKConfig{SamplesPerSec: 9600, Baud: 1200, MarkFreq: 1200, SpaceFreq: 2200}

	dMark := NewAFSKDemod(cfg)
	for _, s := range genAFSKTone(cfg, cfg.MarkFreq, cfg.SamplesPerSec) {
		dMark.ProcessSample(s)
	}
	// After settling on a steady mark tone, the internal mark amplitude
	// estimate should exceed the space estimate.
	require.Greater(t, math.Hypot(dMark.markI, dMark.markQ), math.Hypot(dMark.spaceI, dMark.spaceQ))

	dSpace := NewAFSKDemod(cfg)
	for _, s := range genAFSKTone(cfg, cfg.SpaceFreq, cfg.SamplesPerSec) {
		dSpace.ProcessSample(s)
	}
	require.Greater(t, math.Hypot(dSpace.spaceI, dSpace.spaceQ), math.Hypot(dSpace.markI, dSpace.markQ))
}
