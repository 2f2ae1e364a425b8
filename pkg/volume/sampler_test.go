package volume

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specimenmap/internal/models"
	"specimenmap/internal/synth"
)

// gradientField fills a field with values spread evenly over [0,1]
func gradientField(dx, dy, dz int) *models.ScalarField {
	f := models.NewScalarField(dx, dy, dz)
	n := float64(f.Len() - 1)
	for i := range f.Data {
		f.Data[i] = float64(i) / n
	}
	return f
}

func TestExtractPointCloudSoundAndComplete(t *testing.T) {
	field := gradientField(6, 5, 4)
	for _, threshold := range []float64{0, 0.25, 0.5, 0.9} {
		cloud, err := ExtractPointCloud(field, threshold)
		require.NoError(t, err)

		kept := make(map[int]bool, len(cloud))
		for _, p := range cloud {
			assert.Greater(t, p.Value, threshold)
			assert.Equal(t, field.At(int(p.X), int(p.Y), int(p.Z)), p.Value)
			kept[p.ID] = true
		}
		for i, v := range field.Data {
			assert.Equal(t, v > threshold, kept[i], "voxel %d value %v threshold %v", i, v, threshold)
		}
	}
}

func TestExtractPointCloudDeterministic(t *testing.T) {
	field := synth.DefaultRibbon().Field()
	a, err := ExtractPointCloud(field, 0.5)
	require.NoError(t, err)
	b, err := ExtractPointCloud(field, 0.5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractPointCloudRibbon(t *testing.T) {
	r := synth.DefaultRibbon()
	cloud, err := ExtractPointCloud(r.Field(), 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, cloud)
	for _, p := range cloud {
		assert.LessOrEqual(t, abs(p.Y-r.Curve(p.X)), r.HalfWidth)
		assert.GreaterOrEqual(t, p.Z, float64(r.ZMin))
		assert.LessOrEqual(t, p.Z, float64(r.ZMax))
	}
}

func TestExtractPointCloudVoxelSize(t *testing.T) {
	field := models.NewScalarField(2, 2, 2)
	field.VoxelSize = models.VoxelSize{X: 0.16, Y: 0.16, Z: 0.21}
	field.Set(1, 1, 1, 1)

	cloud, err := ExtractPointCloud(field, 0.5)
	require.NoError(t, err)
	require.Len(t, cloud, 1)
	assert.InDelta(t, 0.16, cloud[0].X, 1e-12)
	assert.InDelta(t, 0.16, cloud[0].Y, 1e-12)
	assert.InDelta(t, 0.21, cloud[0].Z, 1e-12)
	assert.Equal(t, 7, cloud[0].ID)
}

func TestExtractPointCloudEmpty(t *testing.T) {
	field := models.NewScalarField(4, 4, 4)
	_, err := ExtractPointCloud(field, 0.5)
	assert.True(t, errors.Is(err, models.ErrEmptyResult))

	// Values equal to the threshold are excluded
	for i := range field.Data {
		field.Data[i] = 0.5
	}
	_, err = ExtractPointCloud(field, 0.5)
	assert.True(t, errors.Is(err, models.ErrEmptyResult))
}

func TestExtractPointCloudInvalidInput(t *testing.T) {
	_, err := ExtractPointCloud(models.NewScalarField(0, 3, 3), 0.5)
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))

	_, err = ExtractPointCloud(models.NewScalarField(3, 3, 3), 1.5)
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}

func TestSelectForeground(t *testing.T) {
	signal := models.NewScalarField(4, 4, 4)
	background := models.NewScalarField(4, 4, 4)
	for i := range signal.Data {
		if i%8 == 0 {
			signal.Data[i] = 0.95
		} else {
			signal.Data[i] = 0.02
		}
		background.Data[i] = 1 - signal.Data[i]
	}
	assert.True(t, IsForeground(signal, 0.1, 0.9))
	assert.False(t, IsForeground(background, 0.1, 0.9))

	got, err := SelectForeground(signal, background, 0.1, 0.9)
	require.NoError(t, err)
	assert.Same(t, signal, got)

	got, err = SelectForeground(background, signal, 0.1, 0.9)
	require.NoError(t, err)
	assert.Same(t, signal, got)
}

func TestSelectForegroundMismatchedDims(t *testing.T) {
	_, err := SelectForeground(models.NewScalarField(2, 2, 2), models.NewScalarField(2, 2, 3), 0.1, 0.9)
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
