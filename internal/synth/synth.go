// Package synth builds synthetic probability volumes with known geometry.
package synth

import (
	"math"

	"specimenmap/internal/models"
)

// Ribbon describes a parabolic shell y = Y0 + A*(x-X0)^2 occupying the z
// planes [ZMin, ZMax]. Voxels within HalfWidth of the curve (measured
// along y) are set to Value; everything else is Background.
type Ribbon struct {
	N          int
	A          float64
	X0, Y0     float64
	ZMin, ZMax int
	HalfWidth  float64
	Value      float64
	Background float64
	Inverted   bool
}

// DefaultRibbon is a 50^3 field holding y = 10 + 0.01*(x-24.5)^2 over four
// z planes. Its variance is largest along x, then y, then z, so PCA keeps
// the axes in place.
func DefaultRibbon() Ribbon {
	return Ribbon{
		N:         50,
		A:         0.01,
		X0:        24.5,
		Y0:        10,
		ZMin:      23,
		ZMax:      26,
		HalfWidth: 1,
		Value:     1,
	}
}

// FullShell is the 50^3 field holding y = 0.01*x^2 (within one voxel)
// through every z plane, with its vertex on the x = 0 face. Its z extent
// has more variance than the bend of the parabola, so at unit scale PCA
// puts z, not the bend, on the second aligned axis.
func FullShell() Ribbon {
	return Ribbon{
		N:         50,
		A:         0.01,
		ZMin:      0,
		ZMax:      49,
		HalfWidth: 1,
		Value:     1,
	}
}

// Curve evaluates the ribbon's centerline at x.
func (r Ribbon) Curve(x float64) float64 {
	y := r.A * (x - r.X0) * (x - r.X0)
	if r.Inverted {
		return float64(r.N-1) - r.Y0 - y
	}
	return r.Y0 + y
}

// Vertex is the extremum of the centerline in voxel coordinates.
func (r Ribbon) Vertex() models.Vertex {
	return models.Vertex{X: r.X0, Y: r.Curve(r.X0), Z: float64(r.ZMin+r.ZMax) / 2}
}

// Field renders the ribbon.
func (r Ribbon) Field() *models.ScalarField {
	f := models.NewScalarField(r.N, r.N, r.N)
	for z := 0; z < r.N; z++ {
		for y := 0; y < r.N; y++ {
			for x := 0; x < r.N; x++ {
				v := r.Background
				if z >= r.ZMin && z <= r.ZMax && math.Abs(float64(y)-r.Curve(float64(x))) <= r.HalfWidth {
					v = r.Value
				}
				f.Set(x, y, z, v)
			}
		}
	}
	return f
}
