package dtmf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleRate = 8000
const blockSize = 102

func genDTMFTone(digit byte, blocks int) []float64 {
	rowFreq, colFreq := digitFreqs(digit)
	n := blockSize * blocks
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = 0.5*math.Sin(2*math.Pi*rowFreq*t) + 0.5*math.Sin(2*math.Pi*colFreq*t)
	}
	return out
}

func digitFreqs(digit byte) (float64, float64) {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if keypad[r*4+c] == digit {
				return float64(Tones[r]), float64(Tones[4+c])
			}
		}
	}
	panic("bad digit")
}

func TestDecoderDetectsDigit(t *testing.T) {
	d := NewDecoder(sampleRate, blockSize)
	samples := genDTMFTone('5', 6)

	var got byte
	for _, s := range samples {
		if out, have := d.ProcessSample(s); have && out != '.' {
			got = out
		}
	}
	require.Equal(t, byte('5'), got)
}

func TestDecoderRequiresDebounce(t *testing.T) {
	d := NewDecoder(sampleRate, blockSize)
	samples := genDTMFTone('9', 1)
	var results []byte
	for _, s := range samples {
		if out, have := d.ProcessSample(s); have {
			results = append(results, out)
		}
	}
	// A single block alone (no repeat) should not yet produce a
	// debounced '9'.
	for _, r := range results {
		require.NotEqual(t, byte('9'), r)
	}
}

func TestSequencerAccumulatesUntilHash(t *testing.T) {
	s := NewSequencer()
	for _, c := range []byte("123") {
		cmd, complete := s.Feed(c)
		require.False(t, complete)
		require.Empty(t, cmd)
	}
	cmd, complete := s.Feed('#')
	require.True(t, complete)
	require.Equal(t, "123", cmd)
}

func TestSequencerDiscardsOnTimeout(t *testing.T) {
	s := NewSequencer()
	s.Feed('4')
	s.Feed('5')
	s.Feed('$')
	cmd, complete := s.Feed('#')
	require.True(t, complete)
	require.Empty(t, cmd)
}

func TestDecoderFullKeypadSequence(t *testing.T) {
	d := NewDecoder(sampleRate, blockSize)
	want := "123A456B789C*0#D"

	var out []byte
	feed := func(samples []float64) {
		for _, s := range samples {
			if c, have := d.ProcessSample(s); have && c != '.' && c != '$' {
				out = append(out, c)
			}
		}
	}

	for i := 0; i < len(want); i++ {
		feed(genDTMFTone(want[i], 4))
		feed(make([]float64, 4*blockSize)) // inter-digit silence gap
	}

	require.Equal(t, want, string(out))
}

func TestDecoderSequencerCommandCompletion(t *testing.T) {
	d := NewDecoder(sampleRate, blockSize)
	seq := NewSequencer()

	var commands []string
	feed := func(samples []float64) {
		for _, s := range samples {
			c, have := d.ProcessSample(s)
			if !have {
				continue
			}
			if cmd, complete := seq.Feed(c); complete {
				commands = append(commands, cmd)
			}
		}
	}

	for _, digit := range []byte("123A456B789C*0#") {
		feed(genDTMFTone(digit, 4))
		feed(make([]float64, 4*blockSize))
	}

	require.Equal(t, []string{"123A456B789C*0"}, commands)
}
