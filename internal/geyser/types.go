// Package geyser describes the validator host's plugin contract: the
// version-tagged payloads it replicates and the capability set a plugin
// implements. These shapes are owned by the host; the plugin consumes them.
package geyser

import "github.com/mr-tron/base58"

// Pubkey is a 32-byte account address.
type Pubkey [32]byte

func (p Pubkey) String() string { return base58.Encode(p[:]) }

// Signature is a 64-byte transaction signature.
type Signature [64]byte

func (s Signature) String() string { return base58.Encode(s[:]) }

// Hash is a 32-byte block or entry hash.
type Hash [32]byte

func (h Hash) String() string { return base58.Encode(h[:]) }

// Version is a payload schema version tag, e.g. "0.0.3".
type Version string

const (
	V0_0_1 Version = "0.0.1"
	V0_0_2 Version = "0.0.2"
	V0_0_3 Version = "0.0.3"
	V0_0_4 Version = "0.0.4"
)

// SlotStatus is the commitment state a slot has reached.
type SlotStatus uint8

const (
	SlotProcessed SlotStatus = iota
	SlotRooted
	SlotConfirmed
	SlotFirstShredReceived
	SlotCompleted
	SlotCreatedBank
	SlotDead
)

// String returns the host's name for the status.
func (s SlotStatus) String() string {
	switch s {
	case SlotProcessed:
		return "processed"
	case SlotRooted:
		return "rooted"
	case SlotConfirmed:
		return "confirmed"
	case SlotFirstShredReceived:
		return "first_shred_received"
	case SlotCompleted:
		return "completed"
	case SlotCreatedBank:
		return "created_bank"
	case SlotDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ─── Accounts ──────────────────────────────────────────────────────

// ReplicaAccountInfoVersions is implemented by every account payload version.
type ReplicaAccountInfoVersions interface {
	AccountVersion() Version
}

// ReplicaAccountInfo is the 0.0.1 account payload.
type ReplicaAccountInfo struct {
	Pubkey       Pubkey
	Lamports     uint64
	Owner        Pubkey
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
}

// ReplicaAccountInfoV2 adds the signature of the writing transaction.
type ReplicaAccountInfoV2 struct {
	ReplicaAccountInfo
	TxnSignature *Signature
}

// ReplicaAccountInfoV3 carries the writing transaction itself.
type ReplicaAccountInfoV3 struct {
	ReplicaAccountInfo
	Txn *SanitizedTransaction
}

func (*ReplicaAccountInfo) AccountVersion() Version   { return V0_0_1 }
func (*ReplicaAccountInfoV2) AccountVersion() Version { return V0_0_2 }
func (*ReplicaAccountInfoV3) AccountVersion() Version { return V0_0_3 }

// ─── Transactions ──────────────────────────────────────────────────

// SanitizedTransaction is the subset of a transaction the plugin forwards.
type SanitizedTransaction struct {
	Signatures  []Signature
	AccountKeys []Pubkey
	// Message is the serialized transaction message.
	Message []byte
}

// TransactionStatusMeta is the execution outcome of a transaction.
type TransactionStatusMeta struct {
	// Err is empty when the transaction succeeded.
	Err                  string
	Fee                  uint64
	PreBalances          []uint64
	PostBalances         []uint64
	LogMessages          []string
	ComputeUnitsConsumed *uint64
}

// ReplicaTransactionInfoVersions is implemented by every transaction
// payload version.
type ReplicaTransactionInfoVersions interface {
	TransactionVersion() Version
}

// ReplicaTransactionInfo is the 0.0.1 transaction payload.
type ReplicaTransactionInfo struct {
	Signature             Signature
	IsVote                bool
	Transaction           *SanitizedTransaction
	TransactionStatusMeta TransactionStatusMeta
}

// ReplicaTransactionInfoV2 adds the transaction's index within its block.
type ReplicaTransactionInfoV2 struct {
	ReplicaTransactionInfo
	Index uint64
}

func (*ReplicaTransactionInfo) TransactionVersion() Version   { return V0_0_1 }
func (*ReplicaTransactionInfoV2) TransactionVersion() Version { return V0_0_2 }

// ─── Entries ───────────────────────────────────────────────────────

// ReplicaEntryInfoVersions is implemented by every entry payload version.
type ReplicaEntryInfoVersions interface {
	EntryVersion() Version
}

// ReplicaEntryInfo is the 0.0.1 entry payload.
type ReplicaEntryInfo struct {
	Slot                     uint64
	Index                    uint64
	NumHashes                uint64
	Hash                     Hash
	ExecutedTransactionCount uint64
}

// ReplicaEntryInfoV2 adds the index of the entry's first transaction.
type ReplicaEntryInfoV2 struct {
	ReplicaEntryInfo
	StartingTransactionIndex uint64
}

func (*ReplicaEntryInfo) EntryVersion() Version   { return V0_0_1 }
func (*ReplicaEntryInfoV2) EntryVersion() Version { return V0_0_2 }

// ─── Block metadata ────────────────────────────────────────────────

// RewardType classifies a block reward.
type RewardType uint8

const (
	RewardUnspecified RewardType = iota
	RewardFee
	RewardRent
	RewardStaking
	RewardVoting
)

func (r RewardType) String() string {
	switch r {
	case RewardFee:
		return "fee"
	case RewardRent:
		return "rent"
	case RewardStaking:
		return "staking"
	case RewardVoting:
		return "voting"
	default:
		return "unspecified"
	}
}

// Reward is one lamport credit or debit recorded in a block.
type Reward struct {
	Pubkey      Pubkey
	Lamports    int64
	PostBalance uint64
	RewardType  RewardType
	Commission  *uint8
}

// RewardsAndNumPartitions groups block rewards with the epoch partition
// count introduced by partitioned rewards.
type RewardsAndNumPartitions struct {
	Rewards       []Reward
	NumPartitions *uint64
}

// ReplicaBlockInfoVersions is implemented by every block metadata version.
type ReplicaBlockInfoVersions interface {
	BlockVersion() Version
}

// ReplicaBlockInfo is the 0.0.1 block metadata payload.
type ReplicaBlockInfo struct {
	Slot        uint64
	Blockhash   string
	Rewards     []Reward
	BlockTime   *int64
	BlockHeight *uint64
}

// ReplicaBlockInfoV2 adds parent linkage and the executed transaction count.
type ReplicaBlockInfoV2 struct {
	ReplicaBlockInfo
	ParentSlot               uint64
	ParentBlockhash          string
	ExecutedTransactionCount uint64
}

// ReplicaBlockInfoV3 adds the entry count.
type ReplicaBlockInfoV3 struct {
	ReplicaBlockInfoV2
	EntryCount uint64
}

// ReplicaBlockInfoV4 replaces the flat reward list with partitioned rewards.
type ReplicaBlockInfoV4 struct {
	Slot                     uint64
	Blockhash                string
	Rewards                  RewardsAndNumPartitions
	BlockTime                *int64
	BlockHeight              *uint64
	ParentSlot               uint64
	ParentBlockhash          string
	ExecutedTransactionCount uint64
	EntryCount               uint64
}

func (*ReplicaBlockInfo) BlockVersion() Version   { return V0_0_1 }
func (*ReplicaBlockInfoV2) BlockVersion() Version { return V0_0_2 }
func (*ReplicaBlockInfoV3) BlockVersion() Version { return V0_0_3 }
func (*ReplicaBlockInfoV4) BlockVersion() Version { return V0_0_4 }
