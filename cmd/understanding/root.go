package main

import "github.com/spf13/cobra"

// version is set with -ldflags at build time.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "understanding",
		Short:        "Utterance understanding service",
		Long:         "understanding classifies user messages, fills their slots, retrieves related memories and routes them to an action.",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides UNDERSTANDING_CONFIG)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newHandleCmd(&configPath),
		newMCPCmd(&configPath),
	)
	return rootCmd
}
