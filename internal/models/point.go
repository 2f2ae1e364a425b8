package models

import "gonum.org/v1/gonum/spatial/r3"

// Point is a single sample of the specimen. ID identifies the voxel the
// point was sampled from and is carried unchanged through every stage so
// tables computed separately can be joined back together.
type Point struct {
	ID      int
	X, Y, Z float64

	// Value is the signal probability of the originating voxel
	Value float64
}

// Vec returns the coordinates of p as an r3 vector.
func (p Point) Vec() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// WithVec returns a copy of p moved to v. ID and Value are preserved.
func (p Point) WithVec(v r3.Vec) Point {
	p.X, p.Y, p.Z = v.X, v.Y, v.Z
	return p
}

// PointCloud is an ordered collection of points. Stages never modify a
// cloud they receive; each one returns a new cloud.
type PointCloud []Point

// Clone returns a copy of the cloud that shares no memory with c.
func (c PointCloud) Clone() PointCloud {
	out := make(PointCloud, len(c))
	copy(out, c)
	return out
}

// Columns returns the x, y and z coordinates of the cloud as separate slices.
func (c PointCloud) Columns() (xs, ys, zs []float64) {
	xs = make([]float64, len(c))
	ys = make([]float64, len(c))
	zs = make([]float64, len(c))
	for i, p := range c {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return xs, ys, zs
}

// ScaleVector holds the per-axis multipliers applied before PCA to bias the
// choice of the first principal axis.
type ScaleVector struct {
	X, Y, Z float64
}

// UnitScale leaves every axis untouched.
var UnitScale = ScaleVector{X: 1, Y: 1, Z: 1}

// Vertex is the origin of the curvilinear coordinate system, expressed in
// the aligned frame before recentering.
type Vertex struct {
	X, Y, Z float64
}

// CurvilinearPoint holds the coordinates of one point relative to the
// fitted curve.
type CurvilinearPoint struct {
	// ID of the point in the input cloud
	ID int

	// X, Y, Z are the point's own (centered) coordinates
	X, Y, Z float64

	// XC, YC, ZC is the closest point on the curve. ZC is always zero.
	XC, YC, ZC float64

	// R is the distance from the point to the curve in the fit plane
	R float64

	// AC is the signed arclength from the vertex to (XC, YC)
	AC float64

	// Theta is the azimuthal angle of the point around its projection
	Theta float64

	// Unresolved is set when the closest point search did not converge.
	// The geometric fields are NaN in that case.
	Unresolved bool
}
