// Package dtmf implements a Goertzel-algorithm DTMF decoder: eight
// parallel single-bin tone detectors, row/column magnitude thresholding,
// two-block debounce, and an inactivity timeout terminator.
package dtmf

import "math"

// Tones are the eight DTMF frequencies, row tones first then column
// tones.
var Tones = [8]int{697, 770, 852, 941, 1209, 1336, 1477, 1633}

// Threshold is the row/col dominance ratio a tone's magnitude must beat
// over the sum of the other three tones in its group to register, the
// sweet spot between false triggers and missed imperfect signals.
const Threshold = 1.74

// Timeout is how long a decoded digit's absence must persist before a
// '$' terminator is emitted.
const Timeout = 5 // seconds

// keypad maps a (row, col) pair, row-major, to its button character.
var keypad = [16]byte{
	'1', '2', '3', 'A',
	'4', '5', '6', 'B',
	'7', '8', '9', 'C',
	'*', '0', '#', 'D',
}

// Decoder runs the eight-bin Goertzel filter bank over one channel's
// audio and emits debounced button pushes.
type Decoder struct {
	sampleRate int
	blockSize  int
	coef       [8]float64

	q1, q2 [8]float64
	n      int

	prevDec       byte
	debounced     byte
	prevDebounced byte
	timeoutBlocks int
}

// NewDecoder builds a Decoder for sampleRate, processing blockSize
// samples per Goertzel evaluation (smaller blocks detect faster but
// resolve tones less precisely; 205 samples is the usual block at
// 8kHz, scaled as 205*sampleRate/8000 for other rates).
func NewDecoder(sampleRate, blockSize int) *Decoder {
	d := &Decoder{sampleRate: sampleRate, blockSize: blockSize, prevDec: ' ', debounced: ' ', prevDebounced: ' '}
	for i, f := range Tones {
		omega := 2 * math.Pi * float64(f) / float64(sampleRate)
		d.coef[i] = 2 * math.Cos(omega)
	}
	return d
}

// ProcessSample feeds one audio sample through all eight Goertzel
// filters, returning a result only once every blockSize samples.
//
// The returned byte is '.' for "nothing new this block", a keypad
// character for a freshly debounced button push, or '$' once Timeout
// seconds of silence have elapsed since the last digit.
func (d *Decoder) ProcessSample(input float64) (out byte, haveOutput bool) {
	for i := range Tones {
		q0 := input + d.q1[i]*d.coef[i] - d.q2[i]
		d.q2[i] = d.q1[i]
		d.q1[i] = q0
	}

	d.n++
	if d.n < d.blockSize {
		return 0, false
	}
	d.n = 0

	var mag [8]float64
	for i := range Tones {
		mag[i] = math.Sqrt(d.q1[i]*d.q1[i] + d.q2[i]*d.q2[i] - d.q1[i]*d.q2[i]*d.coef[i])
		d.q1[i] = 0
		d.q2[i] = 0
	}

	row := dominant(mag[0], mag[1], mag[2], mag[3])
	col := dominant(mag[4], mag[5], mag[6], mag[7])

	decoded := byte(' ')
	if row >= 0 && col >= 0 {
		decoded = keypad[row*4+col]
	}

	if decoded == d.prevDec {
		d.debounced = decoded
		if decoded != ' ' {
			d.timeoutBlocks = (Timeout * d.sampleRate) / d.blockSize
		}
	}
	d.prevDec = decoded

	ret := byte('.')
	if d.debounced != d.prevDebounced {
		if d.debounced != ' ' {
			ret = d.debounced
		}
	}
	d.prevDebounced = d.debounced

	if ret == '.' && d.timeoutBlocks > 0 {
		d.timeoutBlocks--
		if d.timeoutBlocks == 0 {
			ret = '$'
		}
	}
	return ret, true
}

// dominant returns the index (0-3) of the tone whose magnitude exceeds
// Threshold times the sum of the other three, or -1 if none does.
func dominant(m0, m1, m2, m3 float64) int {
	vals := [4]float64{m0, m1, m2, m3}
	for i, v := range vals {
		sum := 0.0
		for j, o := range vals {
			if j != i {
				sum += o
			}
		}
		if v > Threshold*sum {
			return i
		}
	}
	return -1
}
