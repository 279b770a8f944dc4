package message

import (
	"encoding/json"
	"strings"
)

// wireMessage is the JSON wire format (flat, compact). Keys and hashes are
// base58, binary data is base64.
type wireMessage struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Timestamp int64  `json:"ts"`
	Slot      uint64 `json:"slot"`

	Account     *wireAccount     `json:"account,omitempty"`
	Transaction *wireTransaction `json:"transaction,omitempty"`
	Entry       *wireEntry       `json:"entry,omitempty"`
	BlockMeta   *wireBlockMeta   `json:"block_meta,omitempty"`
	SlotStatus  *wireSlot        `json:"slot_status,omitempty"`
}

type wireAccount struct {
	Pubkey       string `json:"pubkey"`
	Lamports     uint64 `json:"lamports"`
	Owner        string `json:"owner"`
	Executable   bool   `json:"executable"`
	RentEpoch    uint64 `json:"rent_epoch"`
	Data         []byte `json:"data"`
	WriteVersion uint64 `json:"write_version"`
	TxnSignature string `json:"txn_signature,omitempty"`
	IsStartup    bool   `json:"is_startup"`
}

type wireTransaction struct {
	Signature            string   `json:"signature"`
	IsVote               bool     `json:"is_vote"`
	Index                uint64   `json:"index"`
	AccountKeys          []string `json:"account_keys,omitempty"`
	Message              []byte   `json:"message,omitempty"`
	Err                  string   `json:"err,omitempty"`
	Fee                  uint64   `json:"fee"`
	PreBalances          []uint64 `json:"pre_balances,omitempty"`
	PostBalances         []uint64 `json:"post_balances,omitempty"`
	LogMessages          []string `json:"log_messages,omitempty"`
	ComputeUnitsConsumed *uint64  `json:"compute_units_consumed,omitempty"`
}

type wireEntry struct {
	Index                    uint64 `json:"index"`
	NumHashes                uint64 `json:"num_hashes"`
	Hash                     string `json:"hash"`
	ExecutedTransactionCount uint64 `json:"executed_transaction_count"`
	StartingTransactionIndex uint64 `json:"starting_transaction_index"`
}

type wireReward struct {
	Pubkey      string `json:"pubkey"`
	Lamports    int64  `json:"lamports"`
	PostBalance uint64 `json:"post_balance"`
	RewardType  string `json:"reward_type"`
	Commission  *uint8 `json:"commission,omitempty"`
}

type wireBlockMeta struct {
	Blockhash                string       `json:"blockhash"`
	ParentSlot               uint64       `json:"parent_slot"`
	ParentBlockhash          string       `json:"parent_blockhash"`
	BlockTime                *int64       `json:"block_time,omitempty"`
	BlockHeight              *uint64      `json:"block_height,omitempty"`
	ExecutedTransactionCount uint64       `json:"executed_transaction_count"`
	EntryCount               uint64       `json:"entry_count"`
	Rewards                  []wireReward `json:"rewards,omitempty"`
	NumPartitions            *uint64      `json:"num_partitions,omitempty"`
}

type wireSlot struct {
	Parent *uint64 `json:"parent,omitempty"`
	Status string  `json:"status"`
}

// Encode renders m in the JSON wire format.
func Encode(m *Message) ([]byte, error) {
	w := wireMessage{
		ID:        m.ID.String(),
		Kind:      m.Kind.String(),
		Timestamp: m.CreatedAt.UnixMilli(),
		Slot:      m.SlotNumber(),
	}

	switch m.Kind {
	case KindAccount:
		a := m.Account
		w.Account = &wireAccount{
			Pubkey:       a.Pubkey.String(),
			Lamports:     a.Lamports,
			Owner:        a.Owner.String(),
			Executable:   a.Executable,
			RentEpoch:    a.RentEpoch,
			Data:         a.Data,
			WriteVersion: a.WriteVersion,
			IsStartup:    a.IsStartup,
		}
		if a.TxnSignature != nil {
			w.Account.TxnSignature = a.TxnSignature.String()
		}
	case KindTransaction:
		tx := m.Transaction
		keys := make([]string, len(tx.AccountKeys))
		for i, k := range tx.AccountKeys {
			keys[i] = k.String()
		}
		w.Transaction = &wireTransaction{
			Signature:            tx.Signature.String(),
			IsVote:               tx.IsVote,
			Index:                tx.Index,
			AccountKeys:          keys,
			Message:              tx.Message,
			Err:                  tx.Err,
			Fee:                  tx.Fee,
			PreBalances:          tx.PreBalances,
			PostBalances:         tx.PostBalances,
			LogMessages:          tx.LogMessages,
			ComputeUnitsConsumed: tx.ComputeUnitsConsumed,
		}
	case KindEntry:
		e := m.Entry
		w.Entry = &wireEntry{
			Index:                    e.Index,
			NumHashes:                e.NumHashes,
			Hash:                     e.Hash.String(),
			ExecutedTransactionCount: e.ExecutedTransactionCount,
			StartingTransactionIndex: e.StartingTransactionIndex,
		}
	case KindBlockMeta:
		b := m.BlockMeta
		rewards := make([]wireReward, len(b.Rewards))
		for i, r := range b.Rewards {
			rewards[i] = wireReward{
				Pubkey:      r.Pubkey.String(),
				Lamports:    r.Lamports,
				PostBalance: r.PostBalance,
				RewardType:  r.RewardType,
				Commission:  r.Commission,
			}
		}
		w.BlockMeta = &wireBlockMeta{
			Blockhash:                b.Blockhash,
			ParentSlot:               b.ParentSlot,
			ParentBlockhash:          b.ParentBlockhash,
			BlockTime:                b.BlockTime,
			BlockHeight:              b.BlockHeight,
			ExecutedTransactionCount: b.ExecutedTransactionCount,
			EntryCount:               b.EntryCount,
			Rewards:                  rewards,
			NumPartitions:            b.NumPartitions,
		}
	case KindSlot:
		w.SlotStatus = &wireSlot{Parent: m.Slot.Parent, Status: m.Slot.Status}
	}

	return json.Marshal(w)
}

// Subject joins prefix and the kind name with sep, e.g. "geyser.account"
// for NATS or "geyser:account" for Redis.
func Subject(prefix, sep string, kind Kind) string {
	if prefix == "" {
		return kind.String()
	}
	return strings.TrimSuffix(prefix, sep) + sep + kind.String()
}
