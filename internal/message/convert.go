package message

import "github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"

// Supported payload versions. Only the newest version of each kind is
// accepted; older ones are excluded by the enable flags the plugin reports.
const (
	SupportedAccountVersion     = geyser.V0_0_3
	SupportedTransactionVersion = geyser.V0_0_2
	SupportedEntryVersion       = geyser.V0_0_2
	SupportedBlockVersion       = geyser.V0_0_4
)

// VersionNil tags a payload of a supported type whose pointer is nil.
const VersionNil geyser.Version = "nil"

func unsupported(kind Kind, v geyser.Version) *UnsupportedVersionError {
	return &UnsupportedVersionError{Kind: kind, Version: v}
}

// FromAccount converts an account update.
func FromAccount(account geyser.ReplicaAccountInfoVersions, slot uint64, isStartup bool) (*Message, error) {
	info, ok := account.(*geyser.ReplicaAccountInfoV3)
	if !ok {
		return nil, unsupported(KindAccount, versionOf(account))
	}
	if info == nil {
		return nil, unsupported(KindAccount, VersionNil)
	}

	m := newMessage(KindAccount)
	m.Account = &Account{
		Slot:         slot,
		IsStartup:    isStartup,
		Pubkey:       info.Pubkey,
		Lamports:     info.Lamports,
		Owner:        info.Owner,
		Executable:   info.Executable,
		RentEpoch:    info.RentEpoch,
		Data:         cloneBytes(info.Data),
		WriteVersion: info.WriteVersion,
	}
	if info.Txn != nil && len(info.Txn.Signatures) > 0 {
		sig := info.Txn.Signatures[0]
		m.Account.TxnSignature = &sig
	}
	return m, nil
}

// FromTransaction converts an executed transaction.
func FromTransaction(transaction geyser.ReplicaTransactionInfoVersions, slot uint64) (*Message, error) {
	info, ok := transaction.(*geyser.ReplicaTransactionInfoV2)
	if !ok {
		return nil, unsupported(KindTransaction, versionOf(transaction))
	}
	if info == nil {
		return nil, unsupported(KindTransaction, VersionNil)
	}

	meta := info.TransactionStatusMeta
	tx := &Transaction{
		Slot:                 slot,
		Signature:            info.Signature,
		IsVote:               info.IsVote,
		Index:                info.Index,
		Err:                  meta.Err,
		Fee:                  meta.Fee,
		PreBalances:          append([]uint64(nil), meta.PreBalances...),
		PostBalances:         append([]uint64(nil), meta.PostBalances...),
		LogMessages:          append([]string(nil), meta.LogMessages...),
		ComputeUnitsConsumed: clonePtr(meta.ComputeUnitsConsumed),
	}
	if info.Transaction != nil {
		tx.AccountKeys = append([]geyser.Pubkey(nil), info.Transaction.AccountKeys...)
		tx.Message = cloneBytes(info.Transaction.Message)
	}

	m := newMessage(KindTransaction)
	m.Transaction = tx
	return m, nil
}

// FromEntry converts a PoH entry.
func FromEntry(entry geyser.ReplicaEntryInfoVersions) (*Message, error) {
	info, ok := entry.(*geyser.ReplicaEntryInfoV2)
	if !ok {
		return nil, unsupported(KindEntry, versionOf(entry))
	}
	if info == nil {
		return nil, unsupported(KindEntry, VersionNil)
	}

	m := newMessage(KindEntry)
	m.Entry = &Entry{
		Slot:                     info.Slot,
		Index:                    info.Index,
		NumHashes:                info.NumHashes,
		Hash:                     info.Hash,
		ExecutedTransactionCount: info.ExecutedTransactionCount,
		StartingTransactionIndex: info.StartingTransactionIndex,
	}
	return m, nil
}

// FromBlockMetadata converts block metadata.
func FromBlockMetadata(block geyser.ReplicaBlockInfoVersions) (*Message, error) {
	info, ok := block.(*geyser.ReplicaBlockInfoV4)
	if !ok {
		return nil, unsupported(KindBlockMeta, versionOf(block))
	}
	if info == nil {
		return nil, unsupported(KindBlockMeta, VersionNil)
	}

	rewards := make([]Reward, 0, len(info.Rewards.Rewards))
	for _, r := range info.Rewards.Rewards {
		rewards = append(rewards, Reward{
			Pubkey:      r.Pubkey,
			Lamports:    r.Lamports,
			PostBalance: r.PostBalance,
			RewardType:  r.RewardType.String(),
			Commission:  clonePtr(r.Commission),
		})
	}

	m := newMessage(KindBlockMeta)
	m.BlockMeta = &BlockMeta{
		Slot:                     info.Slot,
		Blockhash:                info.Blockhash,
		ParentSlot:               info.ParentSlot,
		ParentBlockhash:          info.ParentBlockhash,
		BlockTime:                clonePtr(info.BlockTime),
		BlockHeight:              clonePtr(info.BlockHeight),
		ExecutedTransactionCount: info.ExecutedTransactionCount,
		EntryCount:               info.EntryCount,
		Rewards:                  rewards,
		NumPartitions:            clonePtr(info.Rewards.NumPartitions),
	}
	return m, nil
}

// FromSlotStatus converts a slot status transition.
func FromSlotStatus(slot uint64, parent *uint64, status geyser.SlotStatus) *Message {
	m := newMessage(KindSlot)
	m.Slot = &Slot{Slot: slot, Parent: clonePtr(parent), Status: status.String()}
	return m
}

// EndOfStartup builds the marker sent once the host finishes replaying its
// snapshot.
func EndOfStartup() *Message {
	return newMessage(KindEndOfStartup)
}

// versionOf reports the tag of any payload, or "unknown" for nil.
func versionOf(v any) geyser.Version {
	switch p := v.(type) {
	case geyser.ReplicaAccountInfoVersions:
		return p.AccountVersion()
	case geyser.ReplicaTransactionInfoVersions:
		return p.TransactionVersion()
	case geyser.ReplicaEntryInfoVersions:
		return p.EntryVersion()
	case geyser.ReplicaBlockInfoVersions:
		return p.BlockVersion()
	default:
		return "unknown"
	}
}

// cloneBytes copies host-owned buffers; the host may reuse them once the
// callback returns.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// clonePtr copies a host-owned optional value for the same reason.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
