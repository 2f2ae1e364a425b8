package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"specimenmap/internal/models"
)

// Smooth returns a copy of field convolved with an isotropic Gaussian of
// standard deviation sigma, in voxels. The Gaussian is separable, so each
// axis is filtered in turn in the frequency domain. Lines are zero padded
// by 3 sigma on both ends so the periodic transform does not wrap mass
// from one face of the volume to the other.
func Smooth(field *models.ScalarField, sigma float64) (*models.ScalarField, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	if !(sigma >= 0) || math.IsInf(sigma, 1) {
		return nil, &models.ConfigError{Field: "sigma", Reason: fmt.Sprintf("%v must be a finite, non-negative width", sigma)}
	}

	out := &models.ScalarField{
		Data:      append([]float64(nil), field.Data...),
		Dx:        field.Dx,
		Dy:        field.Dy,
		Dz:        field.Dz,
		VoxelSize: field.VoxelSize,
	}
	if sigma == 0 {
		return out, nil
	}

	pad := int(math.Ceil(3 * sigma))
	dims := [3]int{field.Dx, field.Dy, field.Dz}
	strides := [3]int{1, field.Dx, field.Dx * field.Dy}
	for axis := 0; axis < 3; axis++ {
		n, stride := dims[axis], strides[axis]
		if n == 1 {
			continue
		}
		lp := newLowPass(n, pad, sigma)
		for base := range out.Data {
			// Only the first voxel of each line along axis starts a line
			if (base/stride)%n != 0 {
				continue
			}
			lp.apply(out.Data, base, stride)
		}
	}
	return out, nil
}

// lowPass filters lines of a fixed length with a Gaussian transfer function.
type lowPass struct {
	fft  *fourier.FFT
	gain []float64
	n    int
	pad  int
	seq  []float64
	coef []complex128
}

func newLowPass(n, pad int, sigma float64) *lowPass {
	m := n + 2*pad
	lp := &lowPass{
		fft:  fourier.NewFFT(m),
		gain: make([]float64, m/2+1),
		n:    n,
		pad:  pad,
		seq:  make([]float64, m),
		coef: make([]complex128, m/2+1),
	}
	for k := range lp.gain {
		f := float64(k) / float64(m)
		lp.gain[k] = math.Exp(-2 * math.Pi * math.Pi * sigma * sigma * f * f)
	}
	return lp
}

// apply filters the line of data starting at base in place.
func (lp *lowPass) apply(data []float64, base, stride int) {
	for i := range lp.seq {
		lp.seq[i] = 0
	}
	for i := 0; i < lp.n; i++ {
		lp.seq[lp.pad+i] = data[base+i*stride]
	}

	lp.fft.Coefficients(lp.coef, lp.seq)
	for k, g := range lp.gain {
		lp.coef[k] *= complex(g, 0)
	}
	lp.fft.Sequence(lp.seq, lp.coef)

	// Sequence does not normalize
	scale := 1 / float64(len(lp.seq))
	for i := 0; i < lp.n; i++ {
		data[base+i*stride] = lp.seq[lp.pad+i] * scale
	}
}
