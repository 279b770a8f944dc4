// Package message defines the outbound message: the version-independent
// form of a replicated event that publishers see. Conversion from host
// payloads happens here so nothing downstream depends on host schema
// versions.
package message

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
)

// Kind identifies the event kind a message was built from.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindAccount
	KindTransaction
	KindEntry
	KindBlockMeta
	KindSlot
	KindEndOfStartup
)

// Kinds lists every publishable kind.
var Kinds = []Kind{KindAccount, KindTransaction, KindEntry, KindBlockMeta, KindSlot, KindEndOfStartup}

// String returns the kind's wire name.
func (k Kind) String() string {
	switch k {
	case KindAccount:
		return "account"
	case KindTransaction:
		return "transaction"
	case KindEntry:
		return "entry"
	case KindBlockMeta:
		return "block_meta"
	case KindSlot:
		return "slot"
	case KindEndOfStartup:
		return "end_of_startup"
	default:
		return "unknown"
	}
}

// ErrUnsupportedVersion matches every *UnsupportedVersionError.
var ErrUnsupportedVersion = errors.New("unsupported payload version")

// UnsupportedVersionError reports a payload version the plugin does not
// accept. It means host and plugin disagree on the interface and the event
// must not be guessed at.
type UnsupportedVersionError struct {
	Kind    Kind
	Version geyser.Version
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("%s payload version %s is not supported", e.Kind, e.Version)
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrUnsupportedVersion }

// Message is one outbound unit. Exactly one body pointer is set, matching
// Kind; EndOfStartup has no body.
type Message struct {
	ID        uuid.UUID
	Kind      Kind
	CreatedAt time.Time

	Account     *Account
	Transaction *Transaction
	Entry       *Entry
	BlockMeta   *BlockMeta
	Slot        *Slot
}

// SlotNumber returns the slot the message belongs to, or 0 for end-of-startup.
func (m *Message) SlotNumber() uint64 {
	switch m.Kind {
	case KindAccount:
		return m.Account.Slot
	case KindTransaction:
		return m.Transaction.Slot
	case KindEntry:
		return m.Entry.Slot
	case KindBlockMeta:
		return m.BlockMeta.Slot
	case KindSlot:
		return m.Slot.Slot
	default:
		return 0
	}
}

func newMessage(kind Kind) *Message {
	return &Message{
		ID:        uuid.New(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// Account is an account write.
type Account struct {
	Slot         uint64
	IsStartup    bool
	Pubkey       geyser.Pubkey
	Lamports     uint64
	Owner        geyser.Pubkey
	Executable   bool
	RentEpoch    uint64
	Data         []byte
	WriteVersion uint64
	// TxnSignature is nil for writes not caused by a transaction,
	// e.g. snapshot restore.
	TxnSignature *geyser.Signature
}

// Transaction is an executed transaction.
type Transaction struct {
	Slot                 uint64
	Signature            geyser.Signature
	IsVote               bool
	Index                uint64
	AccountKeys          []geyser.Pubkey
	Message              []byte
	Err                  string
	Fee                  uint64
	PreBalances          []uint64
	PostBalances         []uint64
	LogMessages          []string
	ComputeUnitsConsumed *uint64
}

// Entry is a PoH entry.
type Entry struct {
	Slot                     uint64
	Index                    uint64
	NumHashes                uint64
	Hash                     geyser.Hash
	ExecutedTransactionCount uint64
	StartingTransactionIndex uint64
}

// Reward is a block reward.
type Reward struct {
	Pubkey      geyser.Pubkey
	Lamports    int64
	PostBalance uint64
	RewardType  string
	Commission  *uint8
}

// BlockMeta is a completed block's metadata.
type BlockMeta struct {
	Slot                     uint64
	Blockhash                string
	ParentSlot               uint64
	ParentBlockhash          string
	BlockTime                *int64
	BlockHeight              *uint64
	ExecutedTransactionCount uint64
	EntryCount               uint64
	Rewards                  []Reward
	NumPartitions            *uint64
}

// Slot is a slot status transition.
type Slot struct {
	Slot   uint64
	Parent *uint64
	Status string
}
