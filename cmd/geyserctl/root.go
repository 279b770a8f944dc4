package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the geyserctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geyserctl",
		Short: "geyserctl - drive the dragonslayer geyser plugin",
		Long: `geyserctl loads the dragonslayer geyser plugin the way a validator
would, so configs can be checked and sinks exercised without a node.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "plugin config file path")

	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewReplayCmd())

	return cmd
}
