package volume

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	_ "golang.org/x/image/tiff"

	"specimenmap/internal/models"
)

var sliceExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// LoadSliceStack builds a ScalarField from a directory of 2D grayscale
// images, one image per z plane. Images are ordered by the number embedded
// in their filename and pixel intensities are normalized to [0,1].
// All slices must share the dimensions of the first one.
func LoadSliceStack(dir string, voxel models.VoxelSize) (*models.ScalarField, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if sliceExtensions[ext] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	// Sort by the number in the filename to keep planes in acquisition order
	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var field *models.ScalarField
	for z, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if field == nil {
			field = models.NewScalarField(bounds.Dx(), bounds.Dy(), len(imageFiles))
			field.VoxelSize = voxel
		} else if bounds.Dx() != field.Dx || bounds.Dy() != field.Dy {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), field.Dx, field.Dy)
		}

		copy(field.Data[z*field.Dx*field.Dy:(z+1)*field.Dx*field.Dy], imageToFloat(img))
	}

	return field, nil
}

// extractNumber returns the plane index of a slice file: the last run of
// digits in its name, ignoring the extension, so "stack2_slice_012.png"
// is plane 12. Names without digits sort first.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	end := strings.LastIndexFunc(base, unicode.IsDigit) + 1
	if end == 0 {
		return 0
	}
	start := strings.LastIndexFunc(base[:end], func(r rune) bool { return !unicode.IsDigit(r) }) + 1
	num, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0
	}
	return num
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// imageToFloat converts an image to gray values in [0,1], row-major
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			result[y*width+x] = float64(g.Y) / 65535.0
		}
	}

	return result
}
