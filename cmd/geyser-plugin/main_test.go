package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlugin_ReturnsUnloadedInstance(t *testing.T) {
	p := CreatePlugin()
	require.NotNil(t, p)
	assert.Contains(t, p.Name(), "dragonslayer-nats-geyser-plugin")

	// Unload before load is a no-op.
	p.OnUnload()
	assert.Error(t, p.NotifyEndOfStartup())
}
