// Command geyserctl drives the geyser plugin outside a validator: it checks
// config files and replays synthetic events through a loaded plugin.
package main

import (
	"fmt"
	"os"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/constants"
)

// Version information set at build time.
var (
	commit = "unknown"
	date   = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", constants.Version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
