package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/message"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/plugin"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/publisher"
)

type replayOptions struct {
	pluginPath string
	events     int
	dryRun     bool
	hold       bool
}

// NewReplayCmd creates the replay subcommand.
func NewReplayCmd() *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Load the plugin and feed it synthetic events",
		Long: `Load the plugin from --config, deliver a stream of synthetic events of
every kind the way a validator would, unload it and print what happened.

By default the plugin is linked in. With --plugin the shared object is
opened instead, exercising the same entry point the validator uses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.pluginPath, "plugin", "", "path to a plugin shared object")
	cmd.Flags().IntVar(&opts.events, "events", 1000, "number of events to deliver")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "publish to memory instead of the configured sinks")
	cmd.Flags().BoolVar(&opts.hold, "hold", false, "stay loaded until interrupted, e.g. to scrape metrics")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *replayOptions) error {
	if configFile == "" {
		return oops.Code("CONFIG_INVALID").Errorf("--config is required")
	}
	if opts.events < 0 {
		return oops.Code("INVALID_ARGUMENT").Errorf("--events must be >= 0")
	}
	if opts.dryRun && opts.pluginPath != "" {
		return oops.Code("INVALID_ARGUMENT").Errorf("--dry-run cannot be combined with --plugin")
	}

	var (
		p   geyser.Plugin
		mem *publisher.Memory
	)
	switch {
	case opts.pluginPath != "":
		loaded, err := geyser.Load(opts.pluginPath)
		if err != nil {
			return oops.Code("PLUGIN_OPEN_FAILED").With("plugin", opts.pluginPath).Wrap(err)
		}
		p = loaded
	case opts.dryRun:
		mem = publisher.NewMemory()
		p = plugin.New(plugin.WithPublisher(mem))
	default:
		p = plugin.New()
	}

	if err := p.OnLoad(configFile, false); err != nil {
		return oops.Code("PLUGIN_LOAD_FAILED").With("plugin", p.Name()).Wrap(err)
	}
	cmd.Printf("loaded %s\n", p.Name())

	sent, failed := deliver(p, opts.events)

	if opts.hold {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		cmd.Println("holding; interrupt to unload")
		<-ctx.Done()
		stop()
	}

	p.OnUnload()

	cmd.Printf("delivered %d events, %d rejected\n", sent, failed)
	if mem != nil {
		counts := make(map[message.Kind]int)
		for _, m := range mem.Messages() {
			counts[m.Kind]++
		}
		cmd.Printf("published %d messages\n", mem.Len())
		for _, k := range message.Kinds {
			cmd.Printf("  %-14s %d\n", k, counts[k])
		}
	}
	return nil
}

// deliver plays events through p in a validator-like pattern: a startup
// snapshot of accounts, end of startup, then per slot some transactions,
// entries, account writes, block metadata and status transitions.
func deliver(p geyser.Plugin, n int) (sent, failed int) {
	call := func(err error) bool {
		sent++
		if err != nil {
			failed++
		}
		return sent < n
	}
	if n == 0 {
		return 0, 0
	}

	snapshot := n / 10
	for i := 0; i < snapshot; i++ {
		if !call(p.UpdateAccount(syntheticAccount(uint64(i), nil), 0, true)) {
			return sent, failed
		}
	}
	if !call(p.NotifyEndOfStartup()) {
		return sent, failed
	}

	for slot := uint64(1); ; slot++ {
		parent := slot - 1
		if !call(p.UpdateSlotStatus(slot, &parent, geyser.SlotProcessed)) {
			return sent, failed
		}
		for i := uint64(0); i < 4; i++ {
			tx := syntheticTransaction(slot, i)
			if !call(p.NotifyTransaction(tx, slot)) {
				return sent, failed
			}
			if !call(p.UpdateAccount(syntheticAccount(slot*4+i, tx.Transaction), slot, false)) {
				return sent, failed
			}
		}
		if !call(p.NotifyEntry(syntheticEntry(slot))) {
			return sent, failed
		}
		if !call(p.NotifyBlockMetadata(syntheticBlock(slot))) {
			return sent, failed
		}
		if !call(p.UpdateSlotStatus(slot, &parent, geyser.SlotConfirmed)) {
			return sent, failed
		}
	}
}
