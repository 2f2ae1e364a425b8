package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specimenmap/internal/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Processing.Degree)
	assert.Equal(t, models.UnitScale, cfg.Scale())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Processing.Threshold, cfg.Processing.Threshold)
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Processing.Threshold = 0.75
	cfg.Processing.ComponentOrder = [3]int{0, 2, 1}
	cfg.Processing.VoxelSize = [3]float64{0.16, 0.16, 0.21}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, loaded.Processing.Threshold)
	assert.Equal(t, [3]int{0, 2, 1}, loaded.Processing.ComponentOrder)
	assert.Equal(t, models.VoxelSize{X: 0.16, Y: 0.16, Z: 0.21}, loaded.VoxelSize())
}

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing:\n  degree: 3\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Processing.Degree)
	assert.Equal(t, 0.5, cfg.Processing.Threshold)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing: [1, 2"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"threshold above one", func(c *Config) { c.Processing.Threshold = 1.5 }, "processing.threshold"},
		{"negative threshold", func(c *Config) { c.Processing.Threshold = -0.1 }, "processing.threshold"},
		{"zero scale", func(c *Config) { c.Processing.Scale[1] = 0 }, "processing.scale[1]"},
		{"negative voxel", func(c *Config) { c.Processing.VoxelSize[2] = -1 }, "processing.voxelSize[2]"},
		{"negative smoothing", func(c *Config) { c.Processing.SmoothSigma = -1 }, "processing.smoothSigma"},
		{"degree zero", func(c *Config) { c.Processing.Degree = 0 }, "processing.degree"},
		{"repeated component", func(c *Config) { c.Processing.ComponentOrder = [3]int{0, 0, 1} }, "processing.componentOrder"},
		{"no workers", func(c *Config) { c.Processing.Workers = 0 }, "processing.workers"},
		{"unknown minimizer", func(c *Config) { c.Processing.Minimizer = "anneal" }, "processing.minimizer"},
		{"filter without radius", func(c *Config) { c.Filter.MinNeighbors = 3; c.Filter.Radius = 0 }, "filter.radius"},
		{"inverted cutoffs", func(c *Config) { c.Channels.LowCutoff = 0.9; c.Channels.HighCutoff = 0.1 }, "channels"},
		{"zero sample fraction", func(c *Config) { c.Output.SampleFraction = 0 }, "output.sampleFraction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
			var ce *models.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}
