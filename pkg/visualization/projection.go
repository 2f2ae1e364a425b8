// Package visualization renders previews of fields and aligned clouds.
package visualization

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"specimenmap/internal/models"
	"specimenmap/pkg/model"
)

// Sample draws round(fraction*len(cloud)) points without replacement, at
// least one, keeping their original order. The same seed gives the same
// sample.
func Sample(cloud models.PointCloud, fraction float64, seed uint64) (models.PointCloud, error) {
	if !(fraction > 0 && fraction <= 1) {
		return nil, &models.ConfigError{Field: "sampleFraction", Reason: fmt.Sprintf("%v not in (0,1]", fraction)}
	}
	if len(cloud) == 0 {
		return nil, fmt.Errorf("%w: cannot sample an empty cloud", models.ErrEmptyResult)
	}

	n := int(math.Round(fraction * float64(len(cloud))))
	if n < 1 {
		n = 1
	}
	if n >= len(cloud) {
		return cloud.Clone(), nil
	}

	idxs := make([]int, n)
	sampleuv.WithoutReplacement(idxs, len(cloud), rand.NewSource(seed))
	sort.Ints(idxs)

	out := make(models.PointCloud, n)
	for i, idx := range idxs {
		out[i] = cloud[idx]
	}
	return out, nil
}

// projection describes one panel of the plot
type projection struct {
	title, xLabel, yLabel string
	coords                func(models.Point) (float64, float64)
	overlay               bool
}

var projections = []projection{
	{"Z projection", "X", "Y", func(p models.Point) (float64, float64) { return p.X, p.Y }, true},
	{"Y projection", "X", "Z", func(p models.Point) (float64, float64) { return p.X, p.Z }, false},
	{"X projection", "Z", "Y", func(p models.Point) (float64, float64) { return p.Z, p.Y }, false},
}

// Projections builds one scatter plot per axis-aligned projection of cloud.
// The curve, if not nil, is drawn over the x-y panel.
func Projections(cloud models.PointCloud, curve model.CurveModel) ([]*plot.Plot, error) {
	if len(cloud) == 0 {
		return nil, fmt.Errorf("%w: nothing to plot", models.ErrEmptyResult)
	}

	plots := make([]*plot.Plot, len(projections))
	for i, proj := range projections {
		p := plot.New()
		p.Title.Text = proj.title
		p.X.Label.Text = proj.xLabel
		p.Y.Label.Text = proj.yLabel

		xys := make(plotter.XYs, len(cloud))
		xs := make([]float64, len(cloud))
		for j, pt := range cloud {
			xys[j].X, xys[j].Y = proj.coords(pt)
			xs[j] = xys[j].X
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s: %w", proj.title, err)
		}
		scatter.GlyphStyle.Radius = vg.Points(1)
		p.Add(scatter)

		if proj.overlay && curve != nil {
			f := plotter.NewFunction(curve.Evaluate)
			f.XMin, f.XMax = floats.Min(xs), floats.Max(xs)
			f.Samples = 200
			f.Color = color.RGBA{R: 230, G: 190, A: 255}
			f.Width = vg.Points(2)
			p.Add(f)
		}
		plots[i] = p
	}
	return plots, nil
}

// SaveProjections renders the projections of cloud side by side into a PNG.
func SaveProjections(cloud models.PointCloud, curve model.CurveModel, filename string) error {
	plots, err := Projections(cloud, curve)
	if err != nil {
		return err
	}

	img := vgimg.New(vg.Points(1200), vg.Points(400))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(plots),
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 2,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{plots}, tiles, dc)
	for j, p := range plots {
		p.Draw(canvases[0][j])
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
