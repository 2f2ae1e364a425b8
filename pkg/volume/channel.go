package volume

import (
	"fmt"

	"specimenmap/internal/models"
)

// SelectForeground picks the signal channel out of a two-channel
// probability export. The signal occupies a small part of the volume, so
// the first channel is kept when more of its voxels fall below low than
// exceed high; otherwise the second is returned.
func SelectForeground(first, second *models.ScalarField, low, high float64) (*models.ScalarField, error) {
	if err := first.Validate(); err != nil {
		return nil, err
	}
	if err := second.Validate(); err != nil {
		return nil, err
	}
	if first.Dx != second.Dx || first.Dy != second.Dy || first.Dz != second.Dz {
		return nil, fmt.Errorf("%w: channel dimensions differ (%dx%dx%d vs %dx%dx%d)",
			models.ErrInvalidConfiguration,
			first.Dx, first.Dy, first.Dz, second.Dx, second.Dy, second.Dz)
	}
	if !(low >= 0 && low < high && high <= 1) {
		return nil, &models.ConfigError{Field: "channels", Reason: fmt.Sprintf("cutoffs %v/%v must satisfy 0 <= low < high <= 1", low, high)}
	}

	if IsForeground(first, low, high) {
		return first, nil
	}
	return second, nil
}

// IsForeground reports whether field has more low-probability voxels than
// high-probability ones.
func IsForeground(field *models.ScalarField, low, high float64) bool {
	return CountBelow(field, low) > CountAbove(field, high)
}
