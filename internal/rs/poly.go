package rs

// poly is a polynomial over GF(256), coefficients ordered highest-degree
// first (same convention as the generator polynomial built by
// generatorPoly).
type poly []byte

func (f *field) polyMul(a, b poly) poly {
	out := make(poly, len(a)+len(b)-1)
	for i, av := range a {
		if av == 0 {
			continue
		}
		for j, bv := range b {
			out[i+j] ^= f.mul(av, bv)
		}
	}
	return out
}

func (f *field) polyEval(p poly, x byte) byte {
	var y byte
	for _, c := range p {
		y = f.mul(y, x) ^ c
	}
	return y
}

// polyDiv performs polynomial long division over GF(256), returning
// quotient and remainder.
func (f *field) polyDiv(dividend, divisor poly) (quotient, remainder poly) {
	rem := append(poly(nil), dividend...)
	for len(rem) >= len(divisor) && len(rem) > 0 {
		if rem[0] == 0 {
			rem = rem[1:]
			continue
		}
		coef := f.div(rem[0], divisor[0])
		quotient = append(quotient, coef)
		for i, dv := range divisor {
			rem[i] ^= f.mul(dv, coef)
		}
		rem = rem[1:]
	}
	return quotient, rem
}

// generatorPoly returns the RS generator polynomial with nsym roots
// starting at alpha^fcr, step prim: prod (x - alpha^(fcr + i*prim)).
func (f *field) generatorPoly(nsym, fcr, prim int) poly {
	g := poly{1}
	for i := 0; i < nsym; i++ {
		root := f.pow(f.expTable[prim%255], fcr+i)
		g = f.polyMul(g, poly{1, root})
	}
	return g
}
