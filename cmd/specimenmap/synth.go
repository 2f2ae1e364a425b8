package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"specimenmap/internal/synth"
	"specimenmap/pkg/visualization"
)

// synthCmd renders the parabolic test ribbon as a slice stack
var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic parabolic ribbon as a slice stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		inverted, _ := cmd.Flags().GetBool("inverted")

		ribbon := synth.DefaultRibbon()
		ribbon.Inverted = inverted
		if err := visualization.NewViewer(ribbon.Field()).SaveSliceSequence("z", out); err != nil {
			return err
		}
		v := ribbon.Vertex()
		fmt.Printf("Ribbon with vertex (%.1f, %.1f, %.1f) written to %s\n", v.X, v.Y, v.Z, out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(synthCmd)
	synthCmd.Flags().StringP("out", "o", "ribbon_slices", "output directory")
	synthCmd.Flags().Bool("inverted", false, "open the ribbon toward -y")
}
