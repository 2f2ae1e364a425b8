// Package pipeline runs the alignment and coordinate transform for the
// channels of a specimen.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"specimenmap/internal/models"
	"specimenmap/pkg/align"
	"specimenmap/pkg/config"
	"specimenmap/pkg/logging"
	"specimenmap/pkg/mapping"
	"specimenmap/pkg/model"
	"specimenmap/pkg/visualization"
	"specimenmap/pkg/volume"
)

// Params holds the processing parameters for a channel.
type Params struct {
	// Threshold is the probability a voxel must exceed to be sampled
	Threshold float64

	// SmoothSigma is the Gaussian width in voxels applied before sampling
	SmoothSigma float64

	// Scale biases PCA toward an axis and is removed after alignment
	Scale models.ScaleVector

	// ComponentOrder assigns principal components to aligned axes
	ComponentOrder [3]int

	// Degree of the fitted polynomial
	Degree int

	// Filter removes isolated points before alignment
	Filter align.NeighborFilter

	// Minimizer performs the per-point closest point search
	Minimizer mapping.Minimizer

	// Workers is the number of goroutines used by the coordinate mapper
	Workers int

	// QuadratureNodes is the number of Gauss-Legendre nodes for arclength
	QuadratureNodes int

	// SaveIntermediaryResults writes previews and plots to IntermediaryDir
	SaveIntermediaryResults bool
	IntermediaryDir         string

	// SampleFraction of the aligned cloud drawn in projection plots
	SampleFraction float64
}

// DefaultParams mirrors config.DefaultConfig.
func DefaultParams() *Params {
	p, err := ParamsFromConfig(config.DefaultConfig())
	if err != nil {
		panic(err)
	}
	return p
}

// ParamsFromConfig validates cfg and converts it to Params.
func ParamsFromConfig(cfg *config.Config) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	minimizer, err := mapping.NewMinimizer(cfg.Processing.Minimizer, cfg.Processing.MaxIterations)
	if err != nil {
		return nil, err
	}
	return &Params{
		Threshold:               cfg.Processing.Threshold,
		SmoothSigma:             cfg.Processing.SmoothSigma,
		Scale:                   cfg.Scale(),
		ComponentOrder:          cfg.Processing.ComponentOrder,
		Degree:                  cfg.Processing.Degree,
		Filter:                  align.NeighborFilter{Radius: cfg.Filter.Radius, MinNeighbors: cfg.Filter.MinNeighbors},
		Minimizer:               minimizer,
		Workers:                 cfg.Processing.Workers,
		QuadratureNodes:         cfg.Processing.QuadratureNodes,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
		SampleFraction:          cfg.Output.SampleFraction,
	}, nil
}

func (p *Params) validate() error {
	if !(p.Threshold >= 0 && p.Threshold <= 1) {
		return &models.ConfigError{Field: "threshold", Reason: fmt.Sprintf("%v not in [0,1]", p.Threshold)}
	}
	if !(p.SmoothSigma >= 0) {
		return &models.ConfigError{Field: "smoothSigma", Reason: fmt.Sprintf("%v must not be negative", p.SmoothSigma)}
	}
	if p.Degree < 1 {
		return &models.ConfigError{Field: "degree", Reason: fmt.Sprintf("%d must be at least 1", p.Degree)}
	}
	if p.Minimizer == nil {
		return &models.ConfigError{Field: "minimizer", Reason: "not set"}
	}
	return config.ValidateComponentOrder(p.ComponentOrder)
}

// Summary records the size of the data at each stage of a channel.
type Summary struct {
	Sampled    int
	Filtered   int
	Unresolved int
	Elapsed    time.Duration
}

// ChannelResult is the output of processing one channel.
type ChannelResult struct {
	Name string

	// Aligned is the PCA-aligned cloud recentered on the vertex
	Aligned models.PointCloud

	// Model is the curve fitted to Aligned
	Model model.CurveModel

	// Vertex in the aligned frame before recentering
	Vertex models.Vertex

	// Basis is the principal basis used for alignment
	Basis *align.PrincipalBasis

	// Flipped is set when the cloud was mirrored to open upward
	Flipped bool

	// Coordinates has one entry per point of Aligned, in the same order
	Coordinates *mapping.Result

	Summary Summary
}

// VertexPosition maps the vertex back to the coordinates of the input field.
func (r *ChannelResult) VertexPosition() r3.Vec {
	v := r3.Vec{X: r.Vertex.X, Y: r.Vertex.Y, Z: r.Vertex.Z}
	if r.Flipped {
		v.Y = -v.Y
	}
	return r.Basis.Unproject(v)
}

// Pipeline processes channels with a fixed set of parameters. It holds no
// per-channel state, so channels may be processed concurrently.
type Pipeline struct {
	params *Params
}

// NewPipeline creates a pipeline with the provided parameters.
func NewPipeline(params *Params) *Pipeline {
	return &Pipeline{params: params}
}

// ProcessChannel runs the full pipeline on field with default parameters
// for everything but the threshold, scale and degree.
func ProcessChannel(ctx context.Context, field *models.ScalarField, threshold float64, scale models.ScaleVector, degree int) (models.PointCloud, model.CurveModel, models.Vertex, []models.CurvilinearPoint, error) {
	params := DefaultParams()
	params.Threshold = threshold
	params.Scale = scale
	params.Degree = degree

	res, err := NewPipeline(params).Process(ctx, "channel", field)
	if err != nil {
		return nil, nil, models.Vertex{}, nil, err
	}
	return res.Aligned, res.Model, res.Vertex, res.Coordinates.Points, nil
}

// Process runs sampling, alignment, fitting and mapping on one channel. The
// first stage error is returned as a *models.ChannelError and no partial
// result is produced.
func (p *Pipeline) Process(ctx context.Context, name string, field *models.ScalarField) (*ChannelResult, error) {
	params := p.params
	start := time.Now()
	fail := func(stage string, err error) (*ChannelResult, error) {
		return nil, &models.ChannelError{Channel: name, Stage: stage, Err: err}
	}

	if err := params.validate(); err != nil {
		return fail("configure", err)
	}
	if err := field.Validate(); err != nil {
		return fail("sample", err)
	}

	if params.SaveIntermediaryResults {
		if err := os.MkdirAll(p.channelDir(name), 0755); err != nil {
			return fail("configure", fmt.Errorf("failed to create intermediary directory: %w", err))
		}
		logging.Infof("[%s] Saving field mid-planes...", name)
		if err := visualization.NewViewer(field).SaveMidPlanes(filepath.Join(p.channelDir(name), "01_field")); err != nil {
			logging.Warnf("[%s] failed to save field previews: %v", name, err)
		}
	}

	if params.SmoothSigma > 0 {
		logging.Infof("[%s] Smoothing field with sigma %.2f...", name, params.SmoothSigma)
		smoothed, err := volume.Smooth(field, params.SmoothSigma)
		if err != nil {
			return fail("smooth", err)
		}
		field = smoothed
	}

	// Step 1: Sample the field
	logging.Infof("[%s] Step 1: Sampling voxels above %.3f...", name, params.Threshold)
	cloud, err := volume.ExtractPointCloud(field, params.Threshold)
	if err != nil {
		return fail("sample", err)
	}
	res := &ChannelResult{Name: name}
	res.Summary.Sampled = len(cloud)

	cloud, err = params.Filter.Apply(cloud)
	if err != nil {
		return fail("filter", err)
	}
	res.Summary.Filtered = len(cloud)
	if len(cloud) <= params.Degree {
		return fail("fit", fmt.Errorf("%w: %d points for a degree %d fit", models.ErrInsufficientPoints, len(cloud), params.Degree))
	}
	logging.Debugf("[%s] %d points sampled, %d after filtering", name, res.Summary.Sampled, res.Summary.Filtered)

	// Step 2: Align on principal axes
	logging.Infof("[%s] Step 2: Aligning %d points on principal axes...", name, len(cloud))
	aligner := &align.Aligner{Scale: params.Scale, ComponentOrder: params.ComponentOrder}
	aligned, basis, err := aligner.Align(cloud)
	if err != nil {
		return fail("align", err)
	}
	res.Basis = basis

	// Step 3: Fit the curve and recenter on its vertex
	logging.Infof("[%s] Step 3: Fitting degree %d model...", name, params.Degree)
	fit, err := model.Center(aligned, params.Degree)
	if err != nil {
		return fail("fit", err)
	}
	res.Aligned, res.Model, res.Vertex, res.Flipped = fit.Cloud, fit.Model, fit.Vertex, fit.Flipped
	logging.Debugf("[%s] coefficients %v, vertex %+v, flipped %v", name, fit.Model.Coefficients(), fit.Vertex, fit.Flipped)

	if params.SaveIntermediaryResults {
		p.saveProjections(name, res)
	}

	// Step 4: Curvilinear coordinates
	logging.Infof("[%s] Step 4: Mapping points with %d workers...", name, params.Workers)
	mapper := &mapping.Mapper{
		Minimizer:       params.Minimizer,
		Workers:         params.Workers,
		QuadratureNodes: params.QuadratureNodes,
	}
	coords, err := mapper.Transform(ctx, res.Aligned, res.Model)
	if err != nil {
		return fail("map", err)
	}
	res.Coordinates = coords
	res.Summary.Unresolved = len(coords.Unresolved)
	res.Summary.Elapsed = time.Since(start)

	if n := res.Summary.Unresolved; n > 0 {
		logging.Warnf("[%s] %d of %d points unresolved; consider lowering the threshold or changing the degree",
			name, n, len(res.Aligned))
	}
	return res, nil
}

func (p *Pipeline) channelDir(name string) string {
	return filepath.Join(p.params.IntermediaryDir, name)
}

func (p *Pipeline) saveProjections(name string, res *ChannelResult) {
	sample, err := visualization.Sample(res.Aligned, p.params.SampleFraction, 1)
	if err != nil {
		logging.Warnf("[%s] failed to sample aligned cloud: %v", name, err)
		return
	}
	path := filepath.Join(p.channelDir(name), "02_aligned_projections.png")
	if err := visualization.SaveProjections(sample, res.Model, path); err != nil {
		logging.Warnf("[%s] failed to save projections: %v", name, err)
	}
}

// Channel is a named probability field of a specimen.
type Channel struct {
	Name  string
	Field *models.ScalarField
}

// ProcessSpecimen processes every channel concurrently. Results are returned
// in channel order; a failed channel leaves a nil entry and contributes its
// error to the joined error.
func (p *Pipeline) ProcessSpecimen(ctx context.Context, channels []Channel) ([]*ChannelResult, error) {
	results := make([]*ChannelResult, len(channels))
	errs := make([]error, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch Channel) {
			defer wg.Done()
			results[i], errs[i] = p.Process(ctx, ch.Name, ch.Field)
		}(i, ch)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}
