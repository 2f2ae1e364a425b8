package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"specimenmap/internal/models"
)

func TestPolynomialEvaluateAndDerivative(t *testing.T) {
	// 1 - 2x + 3x^2 + 0.5x^3
	p := NewPolynomial([]float64{1, -2, 3, 0.5}, -5, 5).(*PolynomialModel)
	for _, x := range []float64{-2, 0, 0.5, 3} {
		assert.InDelta(t, 1-2*x+3*x*x+0.5*x*x*x, p.Evaluate(x), 1e-12)
		assert.InDelta(t, -2+6*x+1.5*x*x, p.Derivative(x), 1e-12)
		assert.InDelta(t, 6+3*x, p.SecondDerivative(x), 1e-12)
	}
	assert.Equal(t, 3, p.Degree())
	assert.Equal(t, 0.5, p.Leading())
}

func TestCoefficientsAreCopied(t *testing.T) {
	coef := []float64{1, 2, 3}
	m := NewPolynomial(coef, 0, 1)
	coef[0] = 100
	got := m.Coefficients()
	got[1] = 100
	assert.Equal(t, []float64{1, 2, 3}, m.Coefficients())
}

func TestQuadraticExtremum(t *testing.T) {
	// 2(x-3)^2 + 1 = 2x^2 - 12x + 19
	m := NewPolynomial([]float64{19, -12, 2}, -10, 10)
	_, isQuad := m.(Quadratic)
	require.True(t, isQuad)

	x, ok := m.Extremum()
	require.True(t, ok)
	assert.InDelta(t, 3, x, 1e-12)
	assert.Equal(t, 1, m.Concavity())

	down := NewPolynomial([]float64{0, 0, -1}, -1, 1)
	assert.Equal(t, -1, down.Concavity())

	line := NewPolynomial([]float64{1, 2, 0}, -1, 1)
	_, ok = line.Extremum()
	assert.False(t, ok)
	assert.Equal(t, 0, line.Concavity())
}

func TestNumericExtremumMatchesClosedForm(t *testing.T) {
	// Quartic with a single minimum at x = 1.5: (x-1.5)^4 + (x-1.5)^2
	coef := expand(1.5)
	m := NewPolynomial(coef, -10, 10)
	x, ok := m.Extremum()
	require.True(t, ok)
	assert.InDelta(t, 1.5, x, 1e-6)
	assert.Equal(t, 1, m.Concavity())
}

// expand returns the coefficients of (x-h)^4 + (x-h)^2
func expand(h float64) []float64 {
	return []float64{
		h*h*h*h + h*h,
		-4*h*h*h - 2*h,
		6*h*h + 1,
		-4 * h,
		1,
	}
}

func TestNumericExtremumNone(t *testing.T) {
	// x^3 + x is strictly increasing
	m := NewPolynomial([]float64{0, 1, 0, 1}, -3, 3)
	_, ok := m.Extremum()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Concavity())
}

func TestFitRecoversCoefficients(t *testing.T) {
	var xs, ys []float64
	for x := -20.0; x <= 20; x++ {
		xs = append(xs, x)
		ys = append(ys, 0.01*x*x-0.3*x+4)
	}
	m, err := Fit(xs, ys, 2)
	require.NoError(t, err)
	c := m.Coefficients()
	assert.InDelta(t, 4, c[0], 1e-9)
	assert.InDelta(t, -0.3, c[1], 1e-9)
	assert.InDelta(t, 0.01, c[2], 1e-9)
}

func TestFitInsufficientPoints(t *testing.T) {
	_, err := Fit([]float64{0, 1}, []float64{0, 1}, 2)
	assert.True(t, errors.Is(err, models.ErrInsufficientPoints))

	_, err = Fit([]float64{0, 1}, []float64{0, 1}, 0)
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}

// parabolaCloud samples y = a(x-h)^2 + k with noise, spread in z around zc
func parabolaCloud(a, h, k, zc float64, n int, seed int64) models.PointCloud {
	rnd := rand.New(rand.NewSource(seed))
	cloud := make(models.PointCloud, n)
	for i := range cloud {
		x := -30 + 60*float64(i)/float64(n-1)
		cloud[i] = models.Point{
			ID:    i * 3,
			X:     x,
			Y:     a*(x-h)*(x-h) + k + rnd.NormFloat64()*0.2,
			Z:     zc + rnd.NormFloat64(),
			Value: 1,
		}
	}
	return cloud
}

func TestCenterPlacesVertexAtOrigin(t *testing.T) {
	cloud := parabolaCloud(0.02, 4, -3, 7, 400, 1)
	res, err := Center(cloud, 2)
	require.NoError(t, err)
	assert.False(t, res.Flipped)

	assert.InDelta(t, 4, res.Vertex.X, 0.5)
	assert.InDelta(t, -3, res.Vertex.Y, 0.2)
	assert.InDelta(t, 7, res.Vertex.Z, 0.3)

	assert.InDelta(t, 0, res.Model.Evaluate(0), 1e-9)
	_, _, zs := res.Cloud.Columns()
	assert.InDelta(t, 0, stat.Mean(zs, nil), 1e-9)
	assert.InDelta(t, 0.02, res.Model.Coefficients()[2], 0.002)

	for i := range cloud {
		assert.Equal(t, cloud[i].ID, res.Cloud[i].ID)
		assert.InDelta(t, cloud[i].X-res.Vertex.X, res.Cloud[i].X, 1e-12)
	}
}

func TestCenterFlipsInvertedParabola(t *testing.T) {
	cloud := parabolaCloud(-0.02, -2, 5, 0, 300, 2)
	before := cloud.Clone()

	res, err := Center(cloud, 2)
	require.NoError(t, err)
	assert.True(t, res.Flipped)
	assert.GreaterOrEqual(t, res.Model.Coefficients()[2], 0.0)
	assert.Equal(t, 1, res.Model.Concavity())

	// y was negated before centering
	assert.InDelta(t, -5, res.Vertex.Y, 0.2)
	for i := range cloud {
		assert.InDelta(t, -cloud[i].Y-res.Vertex.Y, res.Cloud[i].Y, 1e-12)
	}
	assert.Equal(t, before, cloud)
}

func TestFitAndCenterOrientationInvariant(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		a := 0.005 * float64(seed-5)
		if a == 0 {
			a = 0.001
		}
		_, m, _, err := FitAndCenter(parabolaCloud(a, 0, 0, 0, 200, seed), 2)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.Coefficients()[2], 0.0, "seed %d", seed)
	}
}

func TestCenterHigherDegree(t *testing.T) {
	var cloud models.PointCloud
	coef := expand(2)
	p := NewPolynomial(coef, -10, 10)
	for i := 0; i < 200; i++ {
		x := -3 + 10*float64(i)/199
		cloud = append(cloud, models.Point{ID: i, X: x, Y: p.Evaluate(x), Z: float64(i % 3)})
	}
	res, err := Center(cloud, 4)
	require.NoError(t, err)
	assert.InDelta(t, 2, res.Vertex.X, 1e-4)
	assert.InDelta(t, 0, res.Model.Evaluate(0), 1e-6)
	assert.Equal(t, 4, res.Model.Degree())
}

func TestCenterLinearFallsBackToMean(t *testing.T) {
	var cloud models.PointCloud
	for i := 0; i < 10; i++ {
		cloud = append(cloud, models.Point{ID: i, X: float64(i), Y: 2 * float64(i), Z: 1})
	}
	res, err := Center(cloud, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, res.Vertex.X, 1e-12)
	assert.InDelta(t, 9, res.Vertex.Y, 1e-9)
	assert.InDelta(t, 0, res.Model.Evaluate(0), 1e-9)
}

func TestCenterStraightLineQuadraticIsDegenerate(t *testing.T) {
	var cloud models.PointCloud
	for i := 0; i < 10; i++ {
		cloud = append(cloud, models.Point{ID: i, X: float64(i), Y: 0, Z: 0})
	}
	_, err := Center(cloud, 2)
	assert.True(t, errors.Is(err, models.ErrDegenerateCloud))
}

func TestCenterInsufficientPoints(t *testing.T) {
	cloud := parabolaCloud(0.01, 0, 0, 0, 2, 3)
	_, _, _, err := FitAndCenter(cloud, 2)
	assert.True(t, errors.Is(err, models.ErrInsufficientPoints))

	_, _, _, err = FitAndCenter(cloud[:1], 1)
	assert.True(t, errors.Is(err, models.ErrInsufficientPoints))
}

func TestFitAndCenterHandlesNaNFreeOutput(t *testing.T) {
	cloud := parabolaCloud(0.01, 0, 0, 0, 50, 4)
	centered, m, v, err := FitAndCenter(cloud, 2)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(v.X+v.Y+v.Z))
	for _, p := range centered {
		assert.False(t, math.IsNaN(m.Evaluate(p.X)))
	}
}

func TestCenterNearLinearQuadraticIsDegenerate(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	var cloud models.PointCloud
	for i := 0; i < 200; i++ {
		x := -50 + 0.5*float64(i)
		cloud = append(cloud, models.Point{ID: i, X: x, Y: 0.5*x + 1e-9*rnd.NormFloat64(), Z: 0})
	}
	_, err := Center(cloud, 2)
	assert.True(t, errors.Is(err, models.ErrDegenerateCloud), "got %v", err)
}

func TestCenterUncorrelatedYIsDegenerate(t *testing.T) {
	// y independent of x: every coefficient is noise around zero
	var cloud models.PointCloud
	for i := 0; i < 50; i++ {
		for j := 0; j < 10; j++ {
			cloud = append(cloud, models.Point{ID: len(cloud), X: float64(i) - 24.5, Y: float64(j) - 4.5})
		}
	}
	_, err := Center(cloud, 2)
	assert.True(t, errors.Is(err, models.ErrDegenerateCloud), "got %v", err)
}

func TestQuadraticIsFlat(t *testing.T) {
	q := NewPolynomial([]float64{0, 0.5, 1e-13}, -50, 50).(Quadratic)
	assert.True(t, q.IsFlat(0))
	_, ok := q.Extremum()
	assert.False(t, ok)

	q = NewPolynomial([]float64{0, 0.5, 0.001}, -50, 50).(Quadratic)
	assert.False(t, q.IsFlat(10))
	x, ok := q.Extremum()
	require.True(t, ok)
	assert.InDelta(t, -250, x, 1e-9)
}
