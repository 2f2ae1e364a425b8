package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"specimenmap/internal/models"
)

// Fit returns the least-squares polynomial of the given degree through the
// points (xs[i], ys[i]).
func Fit(xs, ys []float64, degree int) (CurveModel, error) {
	if degree < 1 {
		return nil, &models.ConfigError{Field: "degree", Reason: fmt.Sprintf("%d must be at least 1", degree)}
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("fit: %d x values but %d y values", len(xs), len(ys))
	}
	n := len(xs)
	if n <= degree {
		return nil, fmt.Errorf("%w: %d points for a degree %d fit", models.ErrInsufficientPoints, n, degree)
	}

	// Vandermonde matrix, one column per power of x
	v := mat.NewDense(n, degree+1, nil)
	for i, x := range xs {
		pow := 1.0
		for j := 0; j <= degree; j++ {
			v.Set(i, j, pow)
			pow *= x
		}
	}

	var coef mat.VecDense
	if err := coef.SolveVec(v, mat.NewVecDense(n, append([]float64(nil), ys...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%w: least squares failed: %v", models.ErrDegenerateCloud, err)
		}
	}

	c := mat.Col(nil, 0, &coef)
	for _, ci := range c {
		if math.IsNaN(ci) || math.IsInf(ci, 0) {
			return nil, fmt.Errorf("%w: non-finite fit coefficients %v", models.ErrDegenerateCloud, c)
		}
	}
	return NewPolynomial(c, floats.Min(xs), floats.Max(xs)), nil
}
