// Package volume turns probability volumes into point clouds and loads
// volumes from stacks of 2D slice images.
package volume

import (
	"fmt"

	"specimenmap/internal/models"
)

// ExtractPointCloud returns one point for every voxel whose value is
// strictly greater than threshold. Voxels are visited in storage order
// (z, then y, then x) and each point's ID is its voxel index, so the
// result is deterministic for a given field.
//
// Coordinates are voxel indices multiplied by the field's voxel size; a
// zero voxel size on any axis is treated as 1.
func ExtractPointCloud(field *models.ScalarField, threshold float64) (models.PointCloud, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	if !(threshold >= 0 && threshold <= 1) {
		return nil, &models.ConfigError{Field: "threshold", Reason: fmt.Sprintf("%v not in [0,1]", threshold)}
	}

	sx, sy, sz := unitOr(field.VoxelSize.X), unitOr(field.VoxelSize.Y), unitOr(field.VoxelSize.Z)

	var cloud models.PointCloud
	for z := 0; z < field.Dz; z++ {
		for y := 0; y < field.Dy; y++ {
			for x := 0; x < field.Dx; x++ {
				idx := field.Index(x, y, z)
				v := field.Data[idx]
				if v > threshold {
					cloud = append(cloud, models.Point{
						ID:    idx,
						X:     float64(x) * sx,
						Y:     float64(y) * sy,
						Z:     float64(z) * sz,
						Value: v,
					})
				}
			}
		}
	}

	if len(cloud) == 0 {
		return nil, fmt.Errorf("%w: threshold %.3f over %dx%dx%d field",
			models.ErrEmptyResult, threshold, field.Dx, field.Dy, field.Dz)
	}
	return cloud, nil
}

func unitOr(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// CountAbove returns the number of voxels with a value greater than cutoff.
func CountAbove(field *models.ScalarField, cutoff float64) int {
	n := 0
	for _, v := range field.Data {
		if v > cutoff {
			n++
		}
	}
	return n
}

// CountBelow returns the number of voxels with a value less than cutoff.
func CountBelow(field *models.ScalarField, cutoff float64) int {
	n := 0
	for _, v := range field.Data {
		if v < cutoff {
			n++
		}
	}
	return n
}
