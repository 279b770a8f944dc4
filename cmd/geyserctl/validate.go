package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/config"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a plugin config file",
		Long:  `Parse the config file with defaults and environment overrides applied, and report every problem found.`,
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if configFile == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--config is required")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("config_file", configFile).Wrap(err)
	}

	var sinks []string
	if cfg.Publishers.NATS.Enabled {
		sinks = append(sinks, "nats")
	}
	if cfg.Publishers.Redis.Enabled {
		sinks = append(sinks, "redis")
	}
	if cfg.Publishers.ClickHouse.Enabled {
		sinks = append(sinks, "clickhouse")
	}

	cmd.Printf("%s: ok\n", configFile)
	cmd.Printf("  workers:    %d\n", cfg.Workers())
	cmd.Printf("  queue_size: %d\n", cfg.Runtime.QueueSize)
	cmd.Printf("  affinity:   %v\n", cfg.Runtime.Affinity)
	cmd.Printf("  grace:      %s\n", cfg.Runtime.ShutdownTimeout)
	cmd.Printf("  sinks:      %v\n", sinks)
	return nil
}
