// Package xfloat implements the extended-exponent scalar arithmetic the
// Gibbs sampler uses to multiply thousands of small per-word probabilities
// without underflowing a float64. A value is represented as a pair (x, e)
// meaning x * 2^e. Renormalization uses math.Frexp/math.Ldexp rather than
// direct IEEE-754 bit manipulation, for portability across architectures.
package xfloat

import "math"

// Fix renormalizes x so its mantissa lies in [0.5, 1) (math.Frexp's
// convention) and folds the extracted binary exponent into e. A direct
// IEEE-754 exponent-field rewrite would instead land the mantissa in
// [1, 2); Frexp's [0.5, 1) range is equivalent up to a constant +1 shift,
// which callers never observe since only relative exponents and the
// periodic renormalization cadence matter.
func Fix(x float64, e int) (float64, int) {
	if x == 0 {
		return 0, e
	}
	frac, exp := math.Frexp(x)
	return frac, e + exp
}

// Pack installs e back into x's exponent, i.e. returns x * 2^e. It returns 0
// on underflow (e too negative for float64) and +Inf on overflow (e too
// large).
func Pack(x float64, e int) float64 {
	if x == 0 {
		return 0
	}
	// math.Ldexp saturates to 0/Inf on its own for extreme exponents, but we
	// guard explicitly so the early-exit threshold in the sampler (52 bits
	// below the best candidate) can reason about e without calling Ldexp.
	if e < -1074 {
		return 0
	}
	if e > 1024 {
		return math.Inf(1)
	}
	return math.Ldexp(x, e)
}

// Product accumulates a running product in extended-exponent form,
// renormalizing every 16 factors and once more at Finish.
type Product struct {
	X float64
	E int
	n int
}

// NewProduct starts a product at 1 * 2^0.
func NewProduct() Product {
	return Product{X: 1, E: 0}
}

// Mult multiplies factor into the running product and renormalizes every 16
// factors, returning the number of factors multiplied so far.
func (p *Product) Mult(factor float64) int {
	p.X *= factor
	p.n++
	if p.n&15 == 0 {
		p.X, p.E = Fix(p.X, p.E)
	}
	return p.n
}

// Finish renormalizes unconditionally, regardless of how many factors were
// multiplied since the last periodic renormalization.
func (p *Product) Finish() (float64, int) {
	p.X, p.E = Fix(p.X, p.E)
	return p.X, p.E
}

// BelowByBits reports whether this product's exponent trails best by more
// than bits (52 in inference), the early-exit condition: a product that far below the best
// candidate seen so far cannot affect the result within double precision.
func (p *Product) BelowByBits(best int, bits int) bool {
	return p.E+bits < best
}
