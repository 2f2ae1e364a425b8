package models

import "fmt"

// VoxelSize is the physical extent of a single voxel along each axis,
// typically in microns.
type VoxelSize struct {
	X, Y, Z float64
}

// ScalarField represents a 3D probability volume. Each cell holds the
// probability that the voxel belongs to the signal class and lies in [0,1].
// A ScalarField is never modified once it has been loaded.
type ScalarField struct {
	// Data is the volume data as a 1D array in row-major order
	// (index = z*Dx*Dy + y*Dx + x)
	Data []float64

	// Dx, Dy, Dz are the dimensions of the volume in voxels
	Dx, Dy, Dz int

	// VoxelSize is the physical size of each voxel. A zero value means
	// coordinates are reported in voxel units.
	VoxelSize VoxelSize
}

// NewScalarField allocates an empty field with the given dimensions.
func NewScalarField(dx, dy, dz int) *ScalarField {
	return &ScalarField{
		Data:      make([]float64, dx*dy*dz),
		Dx:        dx,
		Dy:        dy,
		Dz:        dz,
		VoxelSize: VoxelSize{X: 1, Y: 1, Z: 1},
	}
}

// Index returns the position of voxel (x,y,z) in Data.
func (f *ScalarField) Index(x, y, z int) int {
	return z*f.Dx*f.Dy + y*f.Dx + x
}

// At returns the value stored at voxel (x,y,z).
func (f *ScalarField) At(x, y, z int) float64 {
	return f.Data[f.Index(x, y, z)]
}

// Set stores v at voxel (x,y,z). It is intended for loaders and tests
// building a field before handing it to the pipeline.
func (f *ScalarField) Set(x, y, z int, v float64) {
	f.Data[f.Index(x, y, z)] = v
}

// Len returns the number of voxels in the field.
func (f *ScalarField) Len() int {
	return f.Dx * f.Dy * f.Dz
}

// Validate checks that the field is non-empty in every dimension and that
// its backing array matches the declared dimensions.
func (f *ScalarField) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil scalar field", ErrInvalidConfiguration)
	}
	if f.Dx <= 0 || f.Dy <= 0 || f.Dz <= 0 {
		return fmt.Errorf("%w: field dimensions %dx%dx%d must all be positive",
			ErrInvalidConfiguration, f.Dx, f.Dy, f.Dz)
	}
	if len(f.Data) != f.Dx*f.Dy*f.Dz {
		return fmt.Errorf("%w: field has %d values, expected %d",
			ErrInvalidConfiguration, len(f.Data), f.Dx*f.Dy*f.Dz)
	}
	return nil
}
