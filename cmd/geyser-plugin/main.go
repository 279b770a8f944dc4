// Command geyser-plugin is the shared object the validator loads.
//
//	go build -buildmode=plugin -o libdragonslayer.so ./cmd/geyser-plugin
//
// The host opens the library, calls CreatePlugin once and owns the result
// from then on.
package main

import (
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/plugin"
)

// CreatePlugin returns a new, unloaded plugin instance.
func CreatePlugin() geyser.Plugin {
	return plugin.New()
}

func main() {}
