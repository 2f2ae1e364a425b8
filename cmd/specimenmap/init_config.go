package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"specimenmap/pkg/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config path",
	Short: "Write the default configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfigFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("Default configuration written to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}
