package main

import "github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"

// countingPlugin accepts everything and counts callbacks.
type countingPlugin struct{ calls int }

func (c *countingPlugin) Name() string              { return "counting" }
func (c *countingPlugin) OnLoad(string, bool) error { return nil }
func (c *countingPlugin) OnUnload()                 {}
func (c *countingPlugin) NotifyEndOfStartup() error { c.calls++; return nil }

func (c *countingPlugin) NotifyEntry(geyser.ReplicaEntryInfoVersions) error {
	c.calls++
	return nil
}

func (c *countingPlugin) UpdateAccount(geyser.ReplicaAccountInfoVersions, uint64, bool) error {
	c.calls++
	return nil
}

func (c *countingPlugin) UpdateSlotStatus(uint64, *uint64, geyser.SlotStatus) error {
	c.calls++
	return nil
}

func (c *countingPlugin) NotifyTransaction(geyser.ReplicaTransactionInfoVersions, uint64) error {
	c.calls++
	return nil
}

func (c *countingPlugin) NotifyBlockMetadata(geyser.ReplicaBlockInfoVersions) error {
	c.calls++
	return nil
}

func (c *countingPlugin) AccountDataNotificationsEnabled() bool         { return true }
func (c *countingPlugin) AccountDataSnapshotNotificationsEnabled() bool { return true }
func (c *countingPlugin) TransactionNotificationsEnabled() bool         { return true }
func (c *countingPlugin) EntryNotificationsEnabled() bool               { return true }
