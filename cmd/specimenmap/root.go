package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"specimenmap/pkg/config"
	"specimenmap/pkg/logging"
)

var (
	cfgFile     string
	debug       bool
	profileMode string
	profiler    interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "specimenmap",
	Short: "Curvilinear coordinates for volumetric specimen probability maps",
	Long: `
Thresholds a probability volume into a point cloud, aligns it on its
principal axes, fits a parabolic model and expresses every point as
(arclength, radial distance, azimuth) relative to that model.

specimenmap process --channel AT=./at_slices --output specimen.psi`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch profileMode {
		case "":
		case "cpu":
			profiler = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		case "mem":
			profiler = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		default:
			return fmt.Errorf("unknown profile mode %q (want cpu or mem)", profileMode)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.specimenmap.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log fitted coefficients and per-stage point counts")
	rootCmd.PersistentFlags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile to the working directory")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".specimenmap")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("specimenmap")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing file is fine, defaults apply
	_ = viper.ReadInConfig()
}

// loadConfig reads the YAML file viper located, then applies any
// environment or flag overrides on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if path := viper.ConfigFileUsed(); path != "" {
		logging.Debugf("Using config file: %s", path)
	}
	applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config) {
	p := &cfg.Processing
	if viper.IsSet("processing.threshold") {
		p.Threshold = viper.GetFloat64("processing.threshold")
	}
	if viper.IsSet("processing.degree") {
		p.Degree = viper.GetInt("processing.degree")
	}
	if viper.IsSet("processing.workers") {
		p.Workers = viper.GetInt("processing.workers")
	}
	if viper.IsSet("processing.minimizer") {
		p.Minimizer = viper.GetString("processing.minimizer")
	}
	if viper.IsSet("processing.maxIterations") {
		p.MaxIterations = viper.GetInt("processing.maxIterations")
	}

	o := &cfg.Output
	if viper.IsSet("output.saveIntermediaryResults") {
		o.SaveIntermediaryResults = viper.GetBool("output.saveIntermediaryResults")
	}
	if viper.IsSet("output.intermediaryDir") {
		o.IntermediaryDir = viper.GetString("output.intermediaryDir")
	}
	if viper.IsSet("output.includeClosest") {
		o.IncludeClosest = viper.GetBool("output.includeClosest")
	}
	if viper.IsSet("output.includeID") {
		o.IncludeID = viper.GetBool("output.includeID")
	}
	if viper.IsSet("output.verbose") {
		o.Verbose = viper.GetBool("output.verbose")
	}
}

// setLogMode derives the logging mode from the config and --debug.
func setLogMode(cfg *config.Config) {
	switch {
	case debug:
		logging.Mode = logging.Debug
	case cfg.Output.Verbose:
		logging.Mode = logging.Info
	default:
		logging.Mode = logging.Nil
	}
}
