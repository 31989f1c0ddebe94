package demod

// slicerBaseBias is the magnitude of the innermost non-zero threshold
// offset, in the same normalized units as the demodulated mark/space
// difference signal.
const slicerBaseBias = 0.05

// MaxCandidates bounds the sub-channel x slicer product per channel. A
// Bank silently ignores AddCandidate calls beyond it.
const MaxCandidates = 24

// SlicerBiases returns l decision-threshold offsets forming a geometric
// sequence about zero: 0, then +-base, +-2*base, +-4*base, and so on.
// The center slicer sees the unbiased signal; the outer pairs slice
// progressively further from the midpoint, so a transmission with DC
// offset or asymmetric tone amplitudes still lands inside some slicer's
// comfort zone.
func SlicerBiases(l int) []float64 {
	if l < 1 {
		l = 1
	}
	out := make([]float64, 0, l)
	out = append(out, 0)
	mag := slicerBaseBias
	for len(out) < l {
		out = append(out, mag)
		if len(out) < l {
			out = append(out, -mag)
		}
		mag *= 2
	}
	return out
}
