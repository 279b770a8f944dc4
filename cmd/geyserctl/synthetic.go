package main

import (
	"encoding/binary"

	"github.com/AlaaZorkane/dragonslayer-nats-geyser/internal/geyser"
)

func pubkey(seed uint64) geyser.Pubkey {
	var k geyser.Pubkey
	binary.LittleEndian.PutUint64(k[:], seed)
	k[31] = 1
	return k
}

func signature(slot, index uint64) geyser.Signature {
	var s geyser.Signature
	binary.LittleEndian.PutUint64(s[:], slot)
	binary.LittleEndian.PutUint64(s[8:], index)
	return s
}

func syntheticAccount(seed uint64, txn *geyser.SanitizedTransaction) *geyser.ReplicaAccountInfoV3 {
	return &geyser.ReplicaAccountInfoV3{
		ReplicaAccountInfo: geyser.ReplicaAccountInfo{
			Pubkey:       pubkey(seed),
			Lamports:     1_000_000 + seed,
			Owner:        pubkey(0),
			RentEpoch:    ^uint64(0),
			Data:         make([]byte, 165),
			WriteVersion: seed,
		},
		Txn: txn,
	}
}

func syntheticTransaction(slot, index uint64) *geyser.ReplicaTransactionInfoV2 {
	sig := signature(slot, index)
	units := uint64(150 + index)
	return &geyser.ReplicaTransactionInfoV2{
		ReplicaTransactionInfo: geyser.ReplicaTransactionInfo{
			Signature: sig,
			IsVote:    index == 0,
			Transaction: &geyser.SanitizedTransaction{
				Signatures:  []geyser.Signature{sig},
				AccountKeys: []geyser.Pubkey{pubkey(slot*4 + index), pubkey(0)},
				Message:     []byte{1, 0, 1, 2},
			},
			TransactionStatusMeta: geyser.TransactionStatusMeta{
				Fee:                  5000,
				PreBalances:          []uint64{1_000_000, 1},
				PostBalances:         []uint64{995_000, 1},
				ComputeUnitsConsumed: &units,
			},
		},
		Index: index,
	}
}

func syntheticEntry(slot uint64) *geyser.ReplicaEntryInfoV2 {
	var h geyser.Hash
	binary.LittleEndian.PutUint64(h[:], slot)
	return &geyser.ReplicaEntryInfoV2{
		ReplicaEntryInfo: geyser.ReplicaEntryInfo{
			Slot:                     slot,
			Index:                    0,
			NumHashes:                12500,
			Hash:                     h,
			ExecutedTransactionCount: 4,
		},
		StartingTransactionIndex: 0,
	}
}

func syntheticBlock(slot uint64) *geyser.ReplicaBlockInfoV4 {
	height := slot
	partitions := uint64(1)
	return &geyser.ReplicaBlockInfoV4{
		Slot:      slot,
		Blockhash: syntheticEntry(slot).Hash.String(),
		Rewards: geyser.RewardsAndNumPartitions{
			Rewards: []geyser.Reward{{
				Pubkey:      pubkey(0),
				Lamports:    10_000,
				PostBalance: 1_010_000,
				RewardType:  geyser.RewardFee,
			}},
			NumPartitions: &partitions,
		},
		BlockHeight:              &height,
		ParentSlot:               slot - 1,
		ParentBlockhash:          syntheticEntry(slot - 1).Hash.String(),
		ExecutedTransactionCount: 4,
		EntryCount:               1,
	}
}
