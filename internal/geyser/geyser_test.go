package geyser

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotStatus_String(t *testing.T) {
	tests := []struct {
		s    SlotStatus
		want string
	}{
		{SlotProcessed, "processed"},
		{SlotRooted, "rooted"},
		{SlotConfirmed, "confirmed"},
		{SlotFirstShredReceived, "first_shred_received"},
		{SlotCompleted, "completed"},
		{SlotCreatedBank, "created_bank"},
		{SlotDead, "dead"},
		{SlotStatus(200), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.String())
	}
}

func TestPayloadVersions(t *testing.T) {
	tests := []struct {
		name string
		got  Version
		want Version
	}{
		{"account v1", (&ReplicaAccountInfo{}).AccountVersion(), V0_0_1},
		{"account v2", (&ReplicaAccountInfoV2{}).AccountVersion(), V0_0_2},
		{"account v3", (&ReplicaAccountInfoV3{}).AccountVersion(), V0_0_3},
		{"transaction v1", (&ReplicaTransactionInfo{}).TransactionVersion(), V0_0_1},
		{"transaction v2", (&ReplicaTransactionInfoV2{}).TransactionVersion(), V0_0_2},
		{"entry v1", (&ReplicaEntryInfo{}).EntryVersion(), V0_0_1},
		{"entry v2", (&ReplicaEntryInfoV2{}).EntryVersion(), V0_0_2},
		{"block v1", (&ReplicaBlockInfo{}).BlockVersion(), V0_0_1},
		{"block v2", (&ReplicaBlockInfoV2{}).BlockVersion(), V0_0_2},
		{"block v3", (&ReplicaBlockInfoV3{}).BlockVersion(), V0_0_3},
		{"block v4", (&ReplicaBlockInfoV4{}).BlockVersion(), V0_0_4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestKeys_Base58(t *testing.T) {
	var zero Pubkey
	assert.Equal(t, "11111111111111111111111111111111", zero.String())

	var h Hash
	h[31] = 1
	assert.Equal(t, "11111111111111111111111111111112", h.String())
}

func TestPluginError_Unwrap(t *testing.T) {
	cause := errors.New("no such file")
	err := NewError(ErrConfigFileOpen, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "config file open")
}

func TestLoad_MissingObject(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.so"))
	require.Error(t, err)
}
