// Package model fits the polynomial curve that defines the specimen's
// curvilinear coordinate system.
package model

import (
	"math"
	"sort"
)

// CurveModel is a fitted curve y = f(x) in the aligned frame.
type CurveModel interface {
	Evaluate(x float64) float64
	Derivative(x float64) float64

	// Extremum returns the x position of the curve's vertex. ok is false
	// when the curve has no extremum.
	Extremum() (x float64, ok bool)

	// Concavity is +1 when the curve opens toward +y at its extremum, -1
	// when it opens toward -y and 0 when undefined.
	Concavity() int

	// Coefficients returns a copy of the coefficients, lowest order first.
	Coefficients() []float64
	Degree() int
}

// extremumSamples is the number of intervals scanned for sign changes of
// the derivative when no closed form is available.
const extremumSamples = 512

// PolynomialModel is an immutable polynomial c0 + c1*x + ... + cd*x^d.
// Lo and Hi bound the x range of the data it was fitted to; the numeric
// extremum search is restricted to that range.
type PolynomialModel struct {
	coef   []float64
	lo, hi float64
}

// NewPolynomial returns the polynomial with the given coefficients (lowest
// order first) over the domain [lo, hi]. Degree-2 polynomials are returned
// as a Quadratic.
func NewPolynomial(coef []float64, lo, hi float64) CurveModel {
	p := &PolynomialModel{coef: append([]float64(nil), coef...), lo: lo, hi: hi}
	if len(coef) == 3 {
		return Quadratic{p}
	}
	return p
}

func (p *PolynomialModel) Evaluate(x float64) float64 {
	y := 0.0
	for i := len(p.coef) - 1; i >= 0; i-- {
		y = y*x + p.coef[i]
	}
	return y
}

func (p *PolynomialModel) Derivative(x float64) float64 {
	d := 0.0
	for i := len(p.coef) - 1; i >= 1; i-- {
		d = d*x + float64(i)*p.coef[i]
	}
	return d
}

// SecondDerivative evaluates f''(x).
func (p *PolynomialModel) SecondDerivative(x float64) float64 {
	d := 0.0
	for i := len(p.coef) - 1; i >= 2; i-- {
		d = d*x + float64(i*(i-1))*p.coef[i]
	}
	return d
}

func (p *PolynomialModel) Coefficients() []float64 {
	return append([]float64(nil), p.coef...)
}

func (p *PolynomialModel) Degree() int {
	return len(p.coef) - 1
}

// Leading returns the highest order coefficient.
func (p *PolynomialModel) Leading() float64 {
	return p.coef[len(p.coef)-1]
}

// Domain returns the x range of the fitted data.
func (p *PolynomialModel) Domain() (lo, hi float64) {
	return p.lo, p.hi
}

// Extremum locates a root of the derivative inside the domain by scanning
// for sign changes and refining each by bisection. When several exist the
// one closest to the middle of the domain wins, which is only meaningful
// for curves with a single dominant extremum.
func (p *PolynomialModel) Extremum() (float64, bool) {
	if p.Degree() < 2 || !(p.hi > p.lo) {
		return 0, false
	}

	var roots []float64
	step := (p.hi - p.lo) / extremumSamples
	a, da := p.lo, p.Derivative(p.lo)
	for i := 1; i <= extremumSamples; i++ {
		b := p.lo + float64(i)*step
		db := p.Derivative(b)
		switch {
		case da == 0:
			roots = append(roots, a)
		case da*db < 0:
			roots = append(roots, p.bisectDerivative(a, b))
		}
		a, da = b, db
	}
	if da == 0 {
		roots = append(roots, a)
	}
	if len(roots) == 0 {
		return 0, false
	}

	mid := (p.lo + p.hi) / 2
	sort.Slice(roots, func(i, j int) bool {
		return math.Abs(roots[i]-mid) < math.Abs(roots[j]-mid)
	})
	return roots[0], true
}

func (p *PolynomialModel) bisectDerivative(a, b float64) float64 {
	da := p.Derivative(a)
	for i := 0; i < 100 && b-a > 1e-12*math.Max(1, math.Abs(a)); i++ {
		m := (a + b) / 2
		dm := p.Derivative(m)
		if dm == 0 {
			return m
		}
		if da*dm < 0 {
			b = m
		} else {
			a, da = m, dm
		}
	}
	return (a + b) / 2
}

// Concavity reports the sign of the second derivative at the extremum.
func (p *PolynomialModel) Concavity() int {
	x, ok := p.Extremum()
	if !ok {
		return 0
	}
	return sign(p.SecondDerivative(x))
}

// Quadratic is a degree-2 polynomial a*x^2 + b*x + c with a closed-form
// vertex.
type Quadratic struct {
	*PolynomialModel
}

// flatTol is the share of the quadratic term, measured over the fitted
// domain, below which a degree-2 curve is treated as a straight line.
const flatTol = 1e-6

// IsFlat reports whether the quadratic term is negligible over the domain
// compared to the linear term plus spread, the y extent of the data the
// curve was fitted to.
func (q Quadratic) IsFlat(spread float64) bool {
	h := (q.hi - q.lo) / 2
	a, b := math.Abs(q.coef[2]), math.Abs(q.coef[1])
	return a == 0 || a*h*h <= flatTol*(b*h+spread)
}

// Extremum returns -b/(2a), or false when the curve is flat over its domain.
func (q Quadratic) Extremum() (float64, bool) {
	if q.IsFlat(0) {
		return 0, false
	}
	return -q.coef[1] / (2 * q.coef[2]), true
}

// Concavity is the sign of the leading coefficient.
func (q Quadratic) Concavity() int {
	return sign(q.coef[2])
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
