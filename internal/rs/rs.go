package rs

import "fmt"

// Codec is one (n, k) Reed-Solomon family: n total symbols, k of them data,
// n-k parity. FX.25's tag table and IL2P's payload blocks each select one
// of a handful of these.
type Codec struct {
	n, k, nsym int
	fcr, prim  int
	field      *field
	gen        poly
}

// NewCodec builds a Codec for an (n, k) family with first-consecutive-root
// fcr and primitive element prim, matching the (symsize, genpoly, fcr,
// prim) tuple carried per-family in the tag table.
func NewCodec(n, k, fcr, prim int) (*Codec, error) {
	if n <= k || n > 255 || k <= 0 {
		return nil, fmt.Errorf("rs: invalid (n,k) = (%d,%d)", n, k)
	}
	f := defaultField
	return &Codec{
		n: n, k: k, nsym: n - k,
		fcr: fcr, prim: prim,
		field: f,
		gen:   f.generatorPoly(n-k, fcr, prim),
	}, nil
}

// N, K, and NSym expose the codeword shape.
func (c *Codec) N() int    { return c.n }
func (c *Codec) K() int    { return c.k }
func (c *Codec) NSym() int { return c.nsym }

// Encode computes the n-k parity symbols for a k-symbol data block and
// returns them (data is unmodified; parity is the systematic remainder).
func (c *Codec) Encode(data []byte) ([]byte, error) {
	if len(data) != c.k {
		return nil, fmt.Errorf("rs: encode wants %d data symbols, got %d", c.k, len(data))
	}
	msg := make(poly, c.k+c.nsym)
	copy(msg, data)
	_, remainder := c.field.polyDiv(msg, c.gen)
	parity := make([]byte, c.nsym)
	// remainder may be shorter than nsym if high-order terms were zero;
	// right-align it the way systematic RS encoding requires.
	copy(parity[c.nsym-len(remainder):], remainder)
	return parity, nil
}

// Decode corrects up to nsym/2 symbol errors in a full n-symbol codeword
// (data || parity) and returns the corrected data portion. ok is false
// when the codeword has more errors than the code can correct; ErrCount
// reports how many symbol corrections were applied when ok is true.
func (c *Codec) Decode(codeword []byte) (data []byte, errCount int, ok bool) {
	if len(codeword) != c.n {
		return nil, 0, false
	}
	synd := c.syndromes(codeword)
	if allZero(synd) {
		return append([]byte(nil), codeword[:c.k]...), 0, true
	}

	errLoc := c.berlekampMassey(synd)
	if len(errLoc) == 0 {
		return nil, 0, false
	}
	positions := c.chienSearch(errLoc, c.n)
	if positions == nil || len(positions) != len(errLoc)-1 {
		return nil, 0, false
	}
	corrected := append([]byte(nil), codeword...)
	if err := c.forney(corrected, synd, errLoc, positions); err != nil {
		return nil, 0, false
	}
	if !allZero(c.syndromes(corrected)) {
		return nil, 0, false
	}
	return corrected[:c.k], len(positions), true
}

func allZero(p poly) bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

// syndromes evaluates the received codeword (as a polynomial, highest
// degree first) at each root alpha^(fcr+i*prim), i = 0..nsym-1.
func (c *Codec) syndromes(codeword []byte) poly {
	s := make(poly, c.nsym)
	for i := 0; i < c.nsym; i++ {
		root := c.field.pow(c.field.expTable[c.prim%255], c.fcr+i)
		s[i] = c.field.polyEval(poly(codeword), root)
	}
	return s
}

// berlekampMassey finds the error locator polynomial from the syndromes.
func (c *Codec) berlekampMassey(synd poly) poly {
	f := c.field
	errLoc := poly{1}
	oldLoc := poly{1}
	for i := 0; i < len(synd); i++ {
		oldLoc = append(oldLoc, 0)
		var delta byte
		for j, coef := range errLoc {
			delta ^= f.mul(coef, synd[i-j])
		}
		if delta == 0 {
			continue
		}
		if len(oldLoc) > len(errLoc) {
			newLoc := scalePoly(f, oldLoc, delta)
			oldLoc = scalePoly(f, errLoc, f.inv(delta))
			errLoc = newLoc
		}
		scaled := scalePoly(f, oldLoc, delta)
		errLoc = polyXor(errLoc, scaled)
	}
	// Trim leading zero coefficients (errLoc is stored highest-degree last
	// here, opposite of poly's usual convention, so drop trailing zeros).
	for len(errLoc) > 1 && errLoc[len(errLoc)-1] == 0 {
		errLoc = errLoc[:len(errLoc)-1]
	}
	return errLoc
}

func scalePoly(f *field, p poly, s byte) poly {
	out := make(poly, len(p))
	for i, c := range p {
		out[i] = f.mul(c, s)
	}
	return out
}

func polyXor(a, b poly) poly {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(poly, n)
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = av ^ bv
	}
	return out
}

// chienSearch finds the roots of errLoc (stored coefficient-index-first,
// as produced by berlekampMassey) by brute-force evaluation over all n
// field elements, returning the error positions as offsets from the start
// of the codeword (0 = most significant symbol).
func (c *Codec) chienSearch(errLoc poly, n int) []int {
	f := c.field
	var positions []int
	for i := 0; i < n; i++ {
		x := f.inv(f.pow(f.expTable[c.prim%255], i))
		var y byte
		for j, coef := range errLoc {
			y ^= f.mul(coef, f.pow(x, j))
		}
		if y == 0 {
			positions = append(positions, n-1-i)
		}
	}
	return positions
}

// forney computes error magnitudes via the Forney algorithm and applies
// them in place to codeword at the given symbol positions.
func (c *Codec) forney(codeword []byte, synd, errLoc poly, positions []int) error {
	f := c.field
	// Error evaluator polynomial: omega(x) = [synd(x) * errLoc(x)] mod x^nsym
	sRev := make(poly, len(synd))
	for i, v := range synd {
		sRev[len(synd)-1-i] = v
	}
	omegaFull := f.polyMul(sRev, errLoc)
	if len(omegaFull) > c.nsym {
		omegaFull = omegaFull[len(omegaFull)-c.nsym:]
	}

	for _, pos := range positions {
		i := c.n - 1 - pos
		xi := f.inv(f.pow(f.expTable[c.prim%255], i))
		xiInv := f.inv(xi)

		var errLocDeriv byte
		for j := 1; j < len(errLoc); j += 2 {
			errLocDeriv ^= errLoc[j]
		}
		// errLocDeriv above is the formal derivative evaluated implicitly by
		// summing odd-power coefficients (characteristic 2 field).
		omegaVal := f.polyEval(reverse(omegaFull), xiInv)
		denom := evalDerivative(f, errLoc, xiInv)
		if denom == 0 {
			return fmt.Errorf("rs: zero error-locator derivative at position %d", pos)
		}
		magnitude := f.mul(xi, f.div(omegaVal, denom))
		if pos < 0 || pos >= len(codeword) {
			return fmt.Errorf("rs: error position %d out of range", pos)
		}
		codeword[pos] ^= magnitude
	}
	return nil
}

func reverse(p poly) poly {
	out := make(poly, len(p))
	for i, v := range p {
		out[len(p)-1-i] = v
	}
	return out
}

// evalDerivative evaluates the formal derivative of errLoc (stored
// coefficient-index-first) at x, valid over GF(2^m): d/dx sum(c_j x^j) =
// sum over odd j of c_j x^(j-1).
func evalDerivative(f *field, errLoc poly, x byte) byte {
	var y byte
	for j := 1; j < len(errLoc); j += 2 {
		y ^= f.mul(errLoc[j], f.pow(x, j-1))
	}
	return y
}
