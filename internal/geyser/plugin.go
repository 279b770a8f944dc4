package geyser

// Plugin is the capability set the host drives. The host calls OnLoad once
// before any event callback and OnUnload once after the last one, never
// concurrently with event delivery. Event callbacks arrive serially.
type Plugin interface {
	// Name identifies the plugin in host logs.
	Name() string

	// OnLoad activates the plugin from the config file the host was given.
	// An error makes the host refuse to start with this plugin.
	OnLoad(configFile string, isReload bool) error

	// OnUnload releases everything OnLoad acquired. It cannot fail.
	OnUnload()

	UpdateAccount(account ReplicaAccountInfoVersions, slot uint64, isStartup bool) error
	NotifyEndOfStartup() error
	UpdateSlotStatus(slot uint64, parent *uint64, status SlotStatus) error
	NotifyTransaction(transaction ReplicaTransactionInfoVersions, slot uint64) error
	NotifyEntry(entry ReplicaEntryInfoVersions) error
	NotifyBlockMetadata(blockInfo ReplicaBlockInfoVersions) error

	// The host consults these once to decide which callbacks to make.
	AccountDataNotificationsEnabled() bool
	AccountDataSnapshotNotificationsEnabled() bool
	TransactionNotificationsEnabled() bool
	EntryNotificationsEnabled() bool
}
