package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"specimenmap/internal/models"
)

// Viewer extracts planar slices from a probability field for inspection.
type Viewer struct {
	field *models.ScalarField
}

// NewViewer creates a viewer over field. The field is only read.
func NewViewer(field *models.ScalarField) *Viewer {
	return &Viewer{field: field}
}

func gray(v float64) color.Gray16 {
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, math.Round(v*65535))))}
}

// ExtractSlice extracts a 2D slice from the field along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	f := v.field

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= f.Dx {
			return nil, fmt.Errorf("position %d exceeds width %d", position, f.Dx)
		}

		img = image.NewGray16(image.Rect(0, 0, f.Dz, f.Dy))
		for y := 0; y < f.Dy; y++ {
			for z := 0; z < f.Dz; z++ {
				img.SetGray16(z, y, gray(f.At(position, y, z)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= f.Dy {
			return nil, fmt.Errorf("position %d exceeds height %d", position, f.Dy)
		}

		img = image.NewGray16(image.Rect(0, 0, f.Dx, f.Dz))
		for z := 0; z < f.Dz; z++ {
			for x := 0; x < f.Dx; x++ {
				img.SetGray16(x, z, gray(f.At(x, position, z)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= f.Dz {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, f.Dz)
		}

		img = image.NewGray16(image.Rect(0, 0, f.Dx, f.Dy))
		for y := 0; y < f.Dy; y++ {
			for x := 0; x < f.Dx; x++ {
				img.SetGray16(x, y, gray(f.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a 16-bit PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

func (v *Viewer) axisLength(axis string) (int, error) {
	switch axis {
	case "x", "X":
		return v.field.Dx, nil
	case "y", "Y":
		return v.field.Dy, nil
	case "z", "Z":
		return v.field.Dz, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSliceSequence extracts and saves every slice along the specified axis.
// A z sequence can be loaded back with volume.LoadSliceStack.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	maxPos, err := v.axisLength(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveMidPlanes writes the middle slice along each axis into outputDir.
func (v *Viewer) SaveMidPlanes(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for _, axis := range []string{"x", "y", "z"} {
		n, _ := v.axisLength(axis)
		img, err := v.ExtractSlice(axis, n/2)
		if err != nil {
			return err
		}
		if err := v.SaveSlice(img, filepath.Join(outputDir, fmt.Sprintf("mid_%s.png", axis))); err != nil {
			return err
		}
	}
	return nil
}
