// Package config holds the YAML configuration of specimenmap: processing
// parameters, the outlier filter, channel selection cutoffs and outputs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"specimenmap/internal/models"
)

// Minimizer names accepted by Processing.Minimizer
const (
	MinimizerNelderMead = "nelder-mead"
	MinimizerBFGS       = "bfgs"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Threshold is the probability a voxel must exceed to become a point
		Threshold float64 `yaml:"threshold"`

		// SmoothSigma is the Gaussian smoothing width in voxels applied to the
		// field before sampling; 0 disables smoothing
		SmoothSigma float64 `yaml:"smoothSigma"`

		// Scale biases PCA toward a physical axis; it is removed after alignment
		Scale [3]float64 `yaml:"scale"`

		// VoxelSize converts voxel indices to physical units (e.g. microns)
		VoxelSize [3]float64 `yaml:"voxelSize"`

		// Degree of the polynomial fitted to the aligned cloud
		Degree int `yaml:"degree"`

		// ComponentOrder assigns principal components to the aligned x, y, z axes
		ComponentOrder [3]int `yaml:"componentOrder"`

		// Workers is the number of goroutines used by the coordinate mapper
		Workers int `yaml:"workers"`

		// Minimizer selects the closest-point search routine
		Minimizer string `yaml:"minimizer"`

		// MaxIterations caps the closest-point search for a single point
		MaxIterations int `yaml:"maxIterations"`

		// QuadratureNodes is the number of Gauss-Legendre nodes for arclength
		QuadratureNodes int `yaml:"quadratureNodes"`
	} `yaml:"processing"`

	// Outlier filter applied before alignment
	Filter struct {
		// Radius of the neighborhood searched around each point
		Radius float64 `yaml:"radius"`

		// MinNeighbors is the number of other points required inside Radius.
		// Zero disables the filter.
		MinNeighbors int `yaml:"minNeighbors"`
	} `yaml:"filter"`

	// Channel selection parameters for two-channel probability exports
	Channels struct {
		LowCutoff  float64 `yaml:"lowCutoff"`
		HighCutoff float64 `yaml:"highCutoff"`
	} `yaml:"channels"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save previews and plots
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// IncludeClosest adds the xc, yc, zc columns to exported tables
		IncludeClosest bool `yaml:"includeClosest"`

		// IncludeID adds the point id column to exported tables
		IncludeID bool `yaml:"includeID"`

		// DropUnresolved omits unresolved points from exported tables
		DropUnresolved bool `yaml:"dropUnresolved"`

		// SampleFraction of the aligned cloud drawn in projection plots
		SampleFraction float64 `yaml:"sampleFraction"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.Threshold = 0.5
	cfg.Processing.Scale = [3]float64{1, 1, 1}
	cfg.Processing.VoxelSize = [3]float64{1, 1, 1}
	cfg.Processing.Degree = 2
	cfg.Processing.ComponentOrder = [3]int{0, 1, 2}
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.Minimizer = MinimizerNelderMead
	cfg.Processing.MaxIterations = 500
	cfg.Processing.QuadratureNodes = 64

	// Filter disabled by default
	cfg.Filter.Radius = 20
	cfg.Filter.MinNeighbors = 0

	cfg.Channels.LowCutoff = 0.1
	cfg.Channels.HighCutoff = 0.9

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.IncludeClosest = false
	cfg.Output.IncludeID = false
	cfg.Output.DropUnresolved = true
	cfg.Output.SampleFraction = 0.01
	cfg.Output.Verbose = true

	return cfg
}

// Scale returns the configured scale as a ScaleVector.
func (c *Config) Scale() models.ScaleVector {
	s := c.Processing.Scale
	return models.ScaleVector{X: s[0], Y: s[1], Z: s[2]}
}

// VoxelSize returns the configured voxel size.
func (c *Config) VoxelSize() models.VoxelSize {
	v := c.Processing.VoxelSize
	return models.VoxelSize{X: v[0], Y: v[1], Z: v[2]}
}

// Validate checks every parameter and returns a *models.ConfigError for the
// first one out of range.
func (c *Config) Validate() error {
	p := c.Processing
	if !(p.Threshold >= 0 && p.Threshold <= 1) {
		return &models.ConfigError{Field: "processing.threshold", Reason: fmt.Sprintf("%v not in [0,1]", p.Threshold)}
	}
	if !(p.SmoothSigma >= 0) || math.IsInf(p.SmoothSigma, 1) {
		return &models.ConfigError{Field: "processing.smoothSigma", Reason: fmt.Sprintf("%v must be a finite, non-negative width", p.SmoothSigma)}
	}
	for i, s := range p.Scale {
		if !positive(s) {
			return &models.ConfigError{Field: fmt.Sprintf("processing.scale[%d]", i), Reason: fmt.Sprintf("%v must be positive", s)}
		}
	}
	for i, s := range p.VoxelSize {
		if !positive(s) {
			return &models.ConfigError{Field: fmt.Sprintf("processing.voxelSize[%d]", i), Reason: fmt.Sprintf("%v must be positive", s)}
		}
	}
	if p.Degree < 1 {
		return &models.ConfigError{Field: "processing.degree", Reason: fmt.Sprintf("%d must be at least 1", p.Degree)}
	}
	if err := ValidateComponentOrder(p.ComponentOrder); err != nil {
		return err
	}
	if p.Workers < 1 {
		return &models.ConfigError{Field: "processing.workers", Reason: fmt.Sprintf("%d must be at least 1", p.Workers)}
	}
	switch p.Minimizer {
	case MinimizerNelderMead, MinimizerBFGS:
	default:
		return &models.ConfigError{Field: "processing.minimizer", Reason: fmt.Sprintf("unknown minimizer %q", p.Minimizer)}
	}
	if p.MaxIterations < 1 {
		return &models.ConfigError{Field: "processing.maxIterations", Reason: fmt.Sprintf("%d must be at least 1", p.MaxIterations)}
	}
	if p.QuadratureNodes < 1 {
		return &models.ConfigError{Field: "processing.quadratureNodes", Reason: fmt.Sprintf("%d must be at least 1", p.QuadratureNodes)}
	}

	if c.Filter.MinNeighbors < 0 {
		return &models.ConfigError{Field: "filter.minNeighbors", Reason: "must not be negative"}
	}
	if c.Filter.MinNeighbors > 0 && !positive(c.Filter.Radius) {
		return &models.ConfigError{Field: "filter.radius", Reason: fmt.Sprintf("%v must be positive", c.Filter.Radius)}
	}

	lo, hi := c.Channels.LowCutoff, c.Channels.HighCutoff
	if !(lo >= 0 && lo < hi && hi <= 1) {
		return &models.ConfigError{Field: "channels", Reason: fmt.Sprintf("cutoffs %v/%v must satisfy 0 <= low < high <= 1", lo, hi)}
	}

	if f := c.Output.SampleFraction; !(f > 0 && f <= 1) {
		return &models.ConfigError{Field: "output.sampleFraction", Reason: fmt.Sprintf("%v not in (0,1]", f)}
	}
	return nil
}

// ValidateComponentOrder checks that order is a permutation of {0,1,2}.
func ValidateComponentOrder(order [3]int) error {
	var seen [3]bool
	for _, o := range order {
		if o < 0 || o > 2 || seen[o] {
			return &models.ConfigError{Field: "processing.componentOrder", Reason: fmt.Sprintf("%v is not a permutation of 0,1,2", order)}
		}
		seen[o] = true
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// LoadConfig overlays the YAML at configPath on DefaultConfig. Keys the
// file omits keep their defaults, and a missing file (or an empty path)
// yields the defaults unchanged. The result is not validated.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath so it can be
// edited by hand.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
