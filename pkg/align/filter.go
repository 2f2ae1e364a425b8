package align

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"

	"specimenmap/internal/models"
)

// Point3D is a cloud point stored in the KD-tree; Index refers back to the
// position of the point in the filtered cloud.
type Point3D struct {
	X, Y, Z float64
	Index   int
}

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points3D is a collection of Point3D that satisfies kdtree.Interface
type Points3D []Point3D

func (p Points3D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points3D) Len() int                              { return len(p) }
func (p Points3D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points3D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points3D: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{Points3D: p, Dim: d}))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points3D
type pointPlane struct {
	Points3D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points3D[i].X < p.Points3D[j].X
	case 1:
		return p.Points3D[i].Y < p.Points3D[j].Y
	case 2:
		return p.Points3D[i].Z < p.Points3D[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points3D: p.Points3D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points3D[i], p.Points3D[j] = p.Points3D[j], p.Points3D[i]
}

// NeighborFilter removes isolated points before alignment. A point is kept
// when at least MinNeighbors other points lie within Radius of it.
type NeighborFilter struct {
	Radius       float64
	MinNeighbors int
}

// Apply returns the points of cloud that pass the filter, in input order.
// A filter with MinNeighbors <= 0 returns a copy of the cloud.
func (f NeighborFilter) Apply(cloud models.PointCloud) (models.PointCloud, error) {
	if f.MinNeighbors <= 0 {
		return cloud.Clone(), nil
	}
	if !(f.Radius > 0) {
		return nil, &models.ConfigError{Field: "filter.radius", Reason: fmt.Sprintf("%v must be positive", f.Radius)}
	}

	points := make(Points3D, len(cloud))
	for i, p := range cloud {
		points[i] = Point3D{X: p.X, Y: p.Y, Z: p.Z, Index: i}
	}
	// kdtree.New reorders its input, so query with the cloud itself
	tree := kdtree.New(append(Points3D(nil), points...), true)

	r2 := f.Radius * f.Radius
	var kept models.PointCloud
	for i, q := range points {
		keeper := kdtree.NewDistKeeper(r2)
		tree.NearestSet(keeper, q)

		neighbors := 0
		for _, item := range keeper.Heap {
			// Skip the sentinel value and the query point itself
			if item.Comparable == nil || item.Comparable.(Point3D).Index == q.Index {
				continue
			}
			neighbors++
		}
		if neighbors >= f.MinNeighbors {
			kept = append(kept, cloud[i])
		}
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no point has %d neighbors within %.2f",
			models.ErrEmptyResult, f.MinNeighbors, f.Radius)
	}
	return kept, nil
}
