package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"specimenmap/internal/models"
)

// centerTol bounds |f(0)| of the centered refit, relative to the y spread.
const centerTol = 1e-6

// Result is the output of FitAndCenter.
type Result struct {
	// Cloud is the aligned cloud translated so the vertex is the origin
	Cloud models.PointCloud

	// Model is the curve refitted to Cloud
	Model CurveModel

	// Vertex in the aligned frame, before translation
	Vertex models.Vertex

	// Flipped is set when y was negated to make the curve open upward
	Flipped bool
}

// FitAndCenter fits a polynomial to the (x, y) projection of an aligned
// cloud, corrects inverted degree-2 fits, and recenters the cloud on the
// curve's vertex.
func FitAndCenter(cloud models.PointCloud, degree int) (models.PointCloud, CurveModel, models.Vertex, error) {
	res, err := Center(cloud, degree)
	if err != nil {
		return nil, nil, models.Vertex{}, err
	}
	return res.Cloud, res.Model, res.Vertex, nil
}

// Center performs FitAndCenter and reports whether the cloud was flipped.
//
// Only degree-2 fits are checked for orientation. For other degrees the
// vertex is the numeric extremum of the fit, or the mean x when the fit
// has none inside the data range.
func Center(cloud models.PointCloud, degree int) (*Result, error) {
	if degree < 1 {
		return nil, &models.ConfigError{Field: "degree", Reason: fmt.Sprintf("%d must be at least 1", degree)}
	}
	if len(cloud) <= degree {
		return nil, fmt.Errorf("%w: %d points for a degree %d fit", models.ErrInsufficientPoints, len(cloud), degree)
	}

	xs, ys, zs := cloud.Columns()
	m, err := Fit(xs, ys, degree)
	if err != nil {
		return nil, err
	}

	// y extent of the data; scales the flatness and centering tolerances
	spread := floats.Max(ys) - floats.Min(ys)
	if q, ok := m.(Quadratic); ok && q.IsFlat(spread) {
		return nil, fmt.Errorf("%w: quadratic term %g is negligible over the data range", models.ErrDegenerateCloud, q.Leading())
	}

	res := &Result{}
	working := cloud
	if degree == 2 && m.Concavity() < 0 {
		working = make(models.PointCloud, len(cloud))
		for i, p := range cloud {
			p.Y = -p.Y
			working[i] = p
			ys[i] = p.Y
		}
		if m, err = Fit(xs, ys, degree); err != nil {
			return nil, err
		}
		res.Flipped = true
	}

	vx, ok := m.Extremum()
	if !ok {
		if degree == 2 {
			return nil, fmt.Errorf("%w: fitted curve is a straight line", models.ErrDegenerateCloud)
		}
		vx = stat.Mean(xs, nil)
	}
	res.Vertex = models.Vertex{X: vx, Y: m.Evaluate(vx), Z: stat.Mean(zs, nil)}

	origin := r3.Vec{X: res.Vertex.X, Y: res.Vertex.Y, Z: res.Vertex.Z}
	res.Cloud = make(models.PointCloud, len(working))
	for i, p := range working {
		c := p.WithVec(r3.Sub(p.Vec(), origin))
		res.Cloud[i] = c
		xs[i], ys[i] = c.X, c.Y
	}

	// Refit in the centered frame; downstream queries use this model
	if res.Model, err = Fit(xs, ys, degree); err != nil {
		return nil, err
	}
	if y0, tol := res.Model.Evaluate(0), centerTol*math.Max(1, spread); math.Abs(y0) > tol {
		return nil, fmt.Errorf("%w: centered fit misses the vertex by %g", models.ErrDegenerateCloud, y0)
	}
	return res, nil
}
