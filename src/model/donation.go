package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// ZatoshiPerZec - multiplier from zatoshis to ZEC, matches the 8 decimal
// places zcashd reports amounts with
const ZatoshiPerZec = 100000000

const ZatoshiExponent = -8

// sapling extended full viewing key bech32 prefixes, per network, as
// emitted by z_exportviewingkey
const (
	mainnetKeyPrefix = "zxviews"
	testnetKeyPrefix = "zxviewtestsapling"
)

type ViewingKey struct {
	Key     string
	Network Network
}

func (vk ViewingKey) Valid() bool {
	if vk.Key == "" {
		return false
	}
	switch vk.Network {
	case NetworkMainnet:
		return strings.HasPrefix(vk.Key, mainnetKeyPrefix)
	case NetworkTestnet:
		return strings.HasPrefix(vk.Key, testnetKeyPrefix)
	}
	return false
}

// RawReceived is a single entry from z_listreceivedbyaddress, untouched
// beyond json decoding
type RawReceived struct {
	TxID          string      `json:"txid"`
	Amount        json.Number `json:"amount"`    // decimal ZEC
	AmountZat     int64       `json:"amountZat"` // base units, preferred when set
	Confirmations int         `json:"confirmations"`
	BlockTime     int64       `json:"blocktime"` // unix seconds, 0 for unconfirmed
	Memo          string      `json:"memo"`      // hex encoded
}

// Donation - canonical record for a single received shielded transaction.
// TxID is the primary key; re-observing a txid updates the existing record
// in place, it never duplicates.
type Donation struct {
	TxID          string
	Amount        decimal.Decimal
	Confirmations int
	Timestamp     *time.Time // nil until the entry lands in a block
	Memo          *string
	Pending       bool // below the confirmation threshold, excluded from Summary
}

// AmountZat returns the amount back in base units, for the snapshot table
func (d *Donation) AmountZat() int64 {
	return d.Amount.Shift(-ZatoshiExponent).IntPart()
}

type Summary struct {
	TotalAmount decimal.Decimal
	TxCount     int
	LastUpdated *time.Time
}

type NodeStatus struct {
	SyncedHeight int64
	IsSynced     bool
}
