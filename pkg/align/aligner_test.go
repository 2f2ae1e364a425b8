package align

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"specimenmap/internal/models"
)

// elongatedCloud samples an ellipsoidal blob rotated away from the axes
func elongatedCloud(n int, seed int64) models.PointCloud {
	rnd := rand.New(rand.NewSource(seed))
	c, s := math.Cos(0.6), math.Sin(0.6)
	cloud := make(models.PointCloud, n)
	for i := range cloud {
		u := rnd.NormFloat64() * 20
		v := rnd.NormFloat64() * 5
		w := rnd.NormFloat64() * 1
		cloud[i] = models.Point{
			ID:    i,
			X:     c*u - s*v + 100,
			Y:     s*u + c*v - 40,
			Z:     w + 3,
			Value: 0.9,
		}
	}
	return cloud
}

func TestAlignDecorrelatesAxes(t *testing.T) {
	cloud := elongatedCloud(500, 1)
	aligned, basis, err := Align(cloud, models.UnitScale)
	require.NoError(t, err)
	require.Len(t, aligned, len(cloud))

	xs, ys, zs := aligned.Columns()
	data := mat.NewDense(len(aligned), 3, nil)
	data.SetCol(0, xs)
	data.SetCol(1, ys)
	data.SetCol(2, zs)
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if i != j {
				assert.InDelta(t, 0, cov.At(i, j), 1e-8, "cov[%d][%d]", i, j)
			}
		}
		assert.InDelta(t, basis.Variances[i], cov.At(i, i), 1e-6)
	}
	assert.Greater(t, cov.At(0, 0), cov.At(1, 1))
	assert.Greater(t, cov.At(1, 1), cov.At(2, 2))

	// Centered on the origin
	assert.InDelta(t, 0, stat.Mean(xs, nil), 1e-9)
	assert.InDelta(t, 0, stat.Mean(ys, nil), 1e-9)
	assert.InDelta(t, 0, stat.Mean(zs, nil), 1e-9)
}

func TestAlignIsIsometry(t *testing.T) {
	cloud := elongatedCloud(60, 2)
	aligned, _, err := Align(cloud, models.UnitScale)
	require.NoError(t, err)

	for i := range cloud {
		assert.Equal(t, cloud[i].ID, aligned[i].ID)
		assert.Equal(t, cloud[i].Value, aligned[i].Value)
		for j := i + 1; j < len(cloud); j++ {
			before := r3.Norm(r3.Sub(cloud[i].Vec(), cloud[j].Vec()))
			after := r3.Norm(r3.Sub(aligned[i].Vec(), aligned[j].Vec()))
			assert.InDelta(t, before, after, 1e-9)
		}
	}
}

func TestAlignUnprojectRoundTrip(t *testing.T) {
	cloud := elongatedCloud(100, 3)
	scale := models.ScaleVector{X: 1, Y: 2, Z: 0.5}
	aligned, basis, err := Align(cloud, scale)
	require.NoError(t, err)

	for i := range cloud {
		back := basis.Unproject(aligned[i].Vec())
		assert.InDelta(t, cloud[i].X, back.X, 1e-9)
		assert.InDelta(t, cloud[i].Y, back.Y, 1e-9)
		assert.InDelta(t, cloud[i].Z, back.Z, 1e-9)
	}
}

func TestAlignScaleIsRemoved(t *testing.T) {
	cloud := elongatedCloud(200, 4)
	scale := models.ScaleVector{X: 3, Y: 1, Z: 2}
	aligned, basis, err := Align(cloud, scale)
	require.NoError(t, err)

	// Re-applying the scale gives the raw projection onto the basis
	for i, p := range cloud {
		centered := mat.NewVecDense(3, []float64{
			p.X*scale.X - basis.Mean.X,
			p.Y*scale.Y - basis.Mean.Y,
			p.Z*scale.Z - basis.Mean.Z,
		})
		var proj mat.VecDense
		proj.MulVec(basis.Axes.T(), centered)
		assert.InDelta(t, proj.AtVec(0), aligned[i].X*scale.X, 1e-9)
		assert.InDelta(t, proj.AtVec(1), aligned[i].Y*scale.Y, 1e-9)
		assert.InDelta(t, proj.AtVec(2), aligned[i].Z*scale.Z, 1e-9)
	}
}

func TestAlignComponentOrder(t *testing.T) {
	cloud := elongatedCloud(300, 5)
	ordered, basis, err := NewAligner(models.UnitScale).Align(cloud)
	require.NoError(t, err)

	swapped := &Aligner{Scale: models.UnitScale, ComponentOrder: [3]int{0, 2, 1}}
	aligned, swappedBasis, err := swapped.Align(cloud)
	require.NoError(t, err)

	assert.Equal(t, basis.Variances[1], swappedBasis.Variances[2])
	for i := range cloud {
		assert.InDelta(t, ordered[i].X, aligned[i].X, 1e-12)
		assert.InDelta(t, ordered[i].Y, aligned[i].Z, 1e-12)
		assert.InDelta(t, ordered[i].Z, aligned[i].Y, 1e-12)
	}
}

func TestAlignDoesNotModifyInput(t *testing.T) {
	cloud := elongatedCloud(50, 6)
	before := cloud.Clone()
	_, _, err := Align(cloud, models.ScaleVector{X: 2, Y: 2, Z: 2})
	require.NoError(t, err)
	assert.Equal(t, before, cloud)
}

func TestAlignDegenerate(t *testing.T) {
	_, _, err := Align(elongatedCloud(2, 7), models.UnitScale)
	assert.True(t, errors.Is(err, models.ErrDegenerateCloud))

	// Every point on one plane
	flat := elongatedCloud(50, 8)
	for i := range flat {
		flat[i].Z = 4
	}
	_, _, err = Align(flat, models.UnitScale)
	assert.True(t, errors.Is(err, models.ErrDegenerateCloud))
}

func TestAlignInvalidParameters(t *testing.T) {
	cloud := elongatedCloud(20, 9)
	_, _, err := Align(cloud, models.ScaleVector{X: 1, Y: 0, Z: 1})
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))

	bad := &Aligner{Scale: models.UnitScale, ComponentOrder: [3]int{1, 1, 2}}
	_, _, err = bad.Align(cloud)
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}
