// Package align rotates a point cloud onto its principal axes.
package align

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"specimenmap/internal/models"
)

// relVarianceTol is the smallest ratio between the weakest and strongest
// principal variance for which the decomposition is considered defined.
const relVarianceTol = 1e-10

// PrincipalBasis is the rotation produced by PCA.
type PrincipalBasis struct {
	// Mean is the centroid of the scaled cloud
	Mean r3.Vec

	// Axes holds one unit axis per column; column k maps to aligned coordinate k
	Axes *mat.Dense

	// Variances along each aligned axis, in scaled units
	Variances [3]float64

	// Scale is the vector applied before the decomposition
	Scale models.ScaleVector
}

// Unproject maps a point of the aligned frame back to the input frame.
func (b *PrincipalBasis) Unproject(v r3.Vec) r3.Vec {
	p := mat.NewVecDense(3, []float64{v.X * b.Scale.X, v.Y * b.Scale.Y, v.Z * b.Scale.Z})
	var s mat.VecDense
	s.MulVec(b.Axes, p)
	return r3.Vec{
		X: (s.AtVec(0) + b.Mean.X) / b.Scale.X,
		Y: (s.AtVec(1) + b.Mean.Y) / b.Scale.Y,
		Z: (s.AtVec(2) + b.Mean.Z) / b.Scale.Z,
	}
}

// Aligner performs principal axis alignment of point clouds.
type Aligner struct {
	// Scale biases the decomposition toward an axis; it is removed afterwards
	Scale models.ScaleVector

	// ComponentOrder[k] is the principal component (0 = largest variance)
	// assigned to aligned axis k
	ComponentOrder [3]int
}

// NewAligner returns an aligner that keeps components in variance order.
func NewAligner(scale models.ScaleVector) *Aligner {
	return &Aligner{Scale: scale, ComponentOrder: [3]int{0, 1, 2}}
}

// Align scales cloud, projects it onto its principal components and divides
// the scale back out. The input cloud is not modified.
func Align(cloud models.PointCloud, scale models.ScaleVector) (models.PointCloud, *PrincipalBasis, error) {
	return NewAligner(scale).Align(cloud)
}

// Align runs the decomposition described on Aligner.
func (a *Aligner) Align(cloud models.PointCloud) (models.PointCloud, *PrincipalBasis, error) {
	s := a.Scale
	if !(s.X > 0 && s.Y > 0 && s.Z > 0) {
		return nil, nil, &models.ConfigError{Field: "scale", Reason: fmt.Sprintf("%v must be positive", s)}
	}
	var seen [3]bool
	for _, o := range a.ComponentOrder {
		if o < 0 || o > 2 || seen[o] {
			return nil, nil, &models.ConfigError{Field: "componentOrder", Reason: fmt.Sprintf("%v is not a permutation of 0,1,2", a.ComponentOrder)}
		}
		seen[o] = true
	}

	n := len(cloud)
	if n < 3 {
		return nil, nil, fmt.Errorf("%w: %d points, need at least 3 for PCA", models.ErrDegenerateCloud, n)
	}

	data := mat.NewDense(n, 3, nil)
	for i, p := range cloud {
		data.Set(i, 0, p.X*s.X)
		data.Set(i, 1, p.Y*s.Y)
		data.Set(i, 2, p.Z*s.Z)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, nil, fmt.Errorf("%w: principal component decomposition failed", models.ErrDegenerateCloud)
	}
	vars := pc.VarsTo(nil)
	if vars[0] <= 0 || vars[2] <= relVarianceTol*vars[0] {
		return nil, nil, fmt.Errorf("%w: principal variances %v", models.ErrDegenerateCloud, vars)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	basis := &PrincipalBasis{
		Mean: r3.Vec{
			X: stat.Mean(mat.Col(nil, 0, data), nil),
			Y: stat.Mean(mat.Col(nil, 1, data), nil),
			Z: stat.Mean(mat.Col(nil, 2, data), nil),
		},
		Axes:  mat.NewDense(3, 3, nil),
		Scale: s,
	}
	for k, o := range a.ComponentOrder {
		basis.Axes.SetCol(k, mat.Col(nil, o, &vecs))
		basis.Variances[k] = vars[o]
	}

	// Center the scaled data and rotate it onto the basis
	for i := 0; i < n; i++ {
		data.Set(i, 0, data.At(i, 0)-basis.Mean.X)
		data.Set(i, 1, data.At(i, 1)-basis.Mean.Y)
		data.Set(i, 2, data.At(i, 2)-basis.Mean.Z)
	}
	var proj mat.Dense
	proj.Mul(data, basis.Axes)

	aligned := make(models.PointCloud, n)
	for i, p := range cloud {
		aligned[i] = models.Point{
			ID:    p.ID,
			X:     proj.At(i, 0) / s.X,
			Y:     proj.At(i, 1) / s.Y,
			Z:     proj.At(i, 2) / s.Z,
			Value: p.Value,
		}
	}

	return aligned, basis, nil
}
