package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specimenmap/pkg/config"
	"specimenmap/pkg/export"
	"specimenmap/pkg/logging"
	"specimenmap/pkg/pipeline"
	"specimenmap/pkg/volume"
)

// channelSpec is a --channel argument
type channelSpec struct {
	Name string
	Dir  string
}

// processCmd runs the coordinate pipeline over every channel of a specimen
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Compute curvilinear coordinates for each channel of a specimen",
	Long: `
Each --channel names a directory of slice images (PNG, JPEG or TIFF) ordered
by the number in their filenames. The first channel is the structural one;
when --background is given the foreground of the pair is selected before
processing. One table is written per channel next to --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawSpecs, _ := cmd.Flags().GetStringArray("channel")
		background, _ := cmd.Flags().GetString("background")
		output, _ := cmd.Flags().GetString("output")

		specs, err := parseChannels(rawSpecs)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setLogMode(cfg)
		return runProcess(cfg, specs, background, output)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
	def := config.DefaultConfig()

	processCmd.Flags().StringArrayP("channel", "c", nil, "channel as name=dir, repeatable; the first is the structural channel")
	processCmd.Flags().StringP("background", "b", "", "directory holding the second probability channel of the structural channel")
	processCmd.Flags().StringP("output", "o", "coordinates.psi", "output table; the channel name is appended to the file stem")

	processCmd.Flags().Float64P("threshold", "t", def.Processing.Threshold, "probability a voxel must exceed to be sampled")
	processCmd.Flags().IntP("degree", "n", def.Processing.Degree, "degree of the fitted polynomial")
	processCmd.Flags().IntP("workers", "w", def.Processing.Workers, "goroutines used for the closest point search")
	processCmd.Flags().String("minimizer", def.Processing.Minimizer, "closest point minimizer: nelder-mead or bfgs")
	processCmd.Flags().Int("maxIterations", def.Processing.MaxIterations, "iteration cap of the closest point search")
	processCmd.Flags().Bool("save-intermediary", def.Output.SaveIntermediaryResults, "save field previews and projection plots")
	processCmd.Flags().String("intermediary-dir", def.Output.IntermediaryDir, "directory for intermediary results")
	processCmd.Flags().Bool("include-closest", def.Output.IncludeClosest, "write the xc, yc, zc columns")
	processCmd.Flags().Bool("include-id", def.Output.IncludeID, "write the point id column")
	processCmd.Flags().BoolP("verbose", "v", def.Output.Verbose, "log progress of each stage")

	for key, flag := range map[string]string{
		"processing.threshold":           "threshold",
		"processing.degree":              "degree",
		"processing.workers":             "workers",
		"processing.minimizer":           "minimizer",
		"processing.maxIterations":       "maxIterations",
		"output.saveIntermediaryResults": "save-intermediary",
		"output.intermediaryDir":         "intermediary-dir",
		"output.includeClosest":          "include-closest",
		"output.includeID":               "include-id",
		"output.verbose":                 "verbose",
	} {
		if err := viper.BindPFlag(key, processCmd.Flags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// parseChannels splits name=dir arguments. A bare directory is named after
// its base name.
func parseChannels(raw []string) ([]channelSpec, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --channel is required")
	}
	seen := make(map[string]bool)
	specs := make([]channelSpec, 0, len(raw))
	for _, r := range raw {
		var spec channelSpec
		if name, dir, ok := strings.Cut(r, "="); ok {
			spec = channelSpec{Name: strings.TrimSpace(name), Dir: strings.TrimSpace(dir)}
		} else {
			spec = channelSpec{Name: filepath.Base(filepath.Clean(r)), Dir: r}
		}
		if spec.Name == "" || spec.Dir == "" {
			return nil, fmt.Errorf("invalid channel %q, expected name=dir", r)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate channel name %q", spec.Name)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

// channelOutput inserts the channel name before the extension of output.
func channelOutput(output, channel string) string {
	ext := filepath.Ext(output)
	stem := strings.TrimSuffix(output, ext)
	if ext == "" {
		ext = ".psi"
	}
	return stem + "_" + channel + ext
}

func loadChannels(cfg *config.Config, specs []channelSpec, background string) ([]pipeline.Channel, error) {
	channels := make([]pipeline.Channel, 0, len(specs))
	for i, spec := range specs {
		logging.Infof("Loading channel %s from %s...", spec.Name, spec.Dir)
		field, err := volume.LoadSliceStack(spec.Dir, cfg.VoxelSize())
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", spec.Name, err)
		}
		if i == 0 && background != "" {
			second, err := volume.LoadSliceStack(background, cfg.VoxelSize())
			if err != nil {
				return nil, fmt.Errorf("background of %q: %w", spec.Name, err)
			}
			if field, err = volume.SelectForeground(field, second, cfg.Channels.LowCutoff, cfg.Channels.HighCutoff); err != nil {
				return nil, fmt.Errorf("channel %q: %w", spec.Name, err)
			}
		}
		channels = append(channels, pipeline.Channel{Name: spec.Name, Field: field})
	}
	return channels, nil
}

func runProcess(cfg *config.Config, specs []channelSpec, background, output string) error {
	params, err := pipeline.ParamsFromConfig(cfg)
	if err != nil {
		return err
	}
	channels, err := loadChannels(cfg, specs, background)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, procErr := pipeline.NewPipeline(params).ProcessSpecimen(ctx, channels)

	opts := export.Options{
		IncludeClosest: cfg.Output.IncludeClosest,
		IncludeID:      cfg.Output.IncludeID,
		DropUnresolved: cfg.Output.DropUnresolved,
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		path := channelOutput(output, res.Name)
		if err := export.WriteFile(path, res.Coordinates.Points, opts); err != nil {
			return fmt.Errorf("channel %q: %w", res.Name, err)
		}
		s := res.Summary
		logging.Infof("[%s] %d sampled, %d kept, %d unresolved in %.2fs -> %s",
			res.Name, s.Sampled, s.Filtered, s.Unresolved, s.Elapsed.Seconds(), path)
	}
	logging.Debugf("%s", logging.MemString())
	return procErr
}
