package demod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlicerBiasesCenterAndPairs(t *testing.T) {
	require.Equal(t, []float64{0}, SlicerBiases(1))

	b3 := SlicerBiases(3)
	require.Len(t, b3, 3)
	assert.Equal(t, 0.0, b3[0])
	assert.Equal(t, slicerBaseBias, b3[1])
	assert.Equal(t, -slicerBaseBias, b3[2])

	// Each successive pair doubles in magnitude.
	b5 := SlicerBiases(5)
	require.Len(t, b5, 5)
	assert.Equal(t, 2*slicerBaseBias, b5[3])
	assert.Equal(t, -2*slicerBaseBias, b5[4])
}

func TestSlicerBiasesClampsToAtLeastOne(t *testing.T) {
	require.Equal(t, []float64{0}, SlicerBiases(0))
}

func TestBankIgnoresCandidatesPastCap(t *testing.T) {
	b := NewBank(false, nil)
	for i := 0; i < MaxCandidates+4; i++ {
		b.AddCandidate(Candidate{Channel: 0, Subchannel: i}, &stubSource{})
	}
	require.Len(t, b.members, MaxCandidates)
}

func TestSliceBiasShiftsDecisionThreshold(t *testing.T) {
	// A constant demod output just above zero reads as a run of 1 bits
	// with no bias, and as 0 bits once the slicer bias exceeds it.
	unbiased := NewScrambledNRZIDemod(ScrambledNRZIConfig{SamplesPerSec: 9600, Baud: 1200})
	biased := NewScrambledNRZIDemod(ScrambledNRZIConfig{SamplesPerSec: 9600, Baud: 1200, SliceBias: 0.5})

	rawOnes, rawZeros := 0, 0
	for i := 0; i < 9600; i++ {
		if bit, have := unbiased.pll.Step(0.1); have {
			if bit == 1 {
				rawOnes++
			}
		}
		if bit, have := biased.pll.Step(0.1 - biased.cfg.SliceBias); have {
			if bit == 0 {
				rawZeros++
			}
		}
	}
	assert.Greater(t, rawOnes, 0)
	assert.Greater(t, rawZeros, 0)
}
