// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// LockPoints holds the chain-state-dependent values a BIP68
// relative-locktime evaluation produces: the block height and
// median-time-past after which the transaction's sequence locks are
// satisfied, and the highest block height they depend on. Accept does not
// fill it in, and nothing in this package reads or recomputes it, so an
// Entry's LockPoints stays at its zero value.
type LockPoints struct {
	Height    int32
	Time      int64
	MaxHeight int32
}

// Entry is the mempool's per-transaction record: the transaction itself,
// its fixed shape-derived fields, and the mutable ancestor/descendant
// rollups that the aggregate updater (see aggregate.go) maintains
// incrementally as the pool around it changes.
//
// An Entry's Tx, VirtualSize, Weight, SigOpCost, EntryTime, EntryHeight,
// SpendsCoinbase and BaseFee fields are fixed at construction. FeeDelta and
// the two rollup groups are mutated only while the pool's lock is held.
type Entry struct {
	Tx *btcutil.Tx

	// TxHash and WitnessHash cache the transaction's id and witness id so
	// they need not be recomputed on every index comparison.
	TxHash      chainhash.Hash
	WitnessHash chainhash.Hash

	VirtualSize    int64
	Weight         int64
	SigOpCost      int64
	EntryTime      time.Time
	EntryHeight    int32
	SpendsCoinbase bool

	// BaseFee is the transaction's own fee in satoshi, fixed at entry.
	BaseFee btcutil.Amount

	// FeeDelta is the signed prioritisation adjustment applied on top of
	// BaseFee; see ModifiedFee.
	FeeDelta btcutil.Amount

	// LockPoints is the slot for a cached BIP68 evaluation; it is left at
	// its zero value (see LockPoints).
	LockPoints LockPoints

	// Descendant rollup, always including the entry itself.
	CountWithDescendants   int64
	SizeWithDescendants    int64
	ModFeesWithDescendants btcutil.Amount

	// Ancestor rollup, always including the entry itself.
	CountWithAncestors     int64
	SizeWithAncestors      int64
	ModFeesWithAncestors   btcutil.Amount
	SigOpCostWithAncestors int64
}

// ModifiedFee returns the entry's base fee plus its prioritisation delta.
// All fee comparisons and rollups operate on this value, never on BaseFee
// alone.
func (e *Entry) ModifiedFee() btcutil.Amount {
	return e.BaseFee + e.FeeDelta
}

// FeeRate returns the entry's own modified-fee-per-vsize in sat/kB,
// matching the scale calcMinRequiredTxRelayFee and the relay-fee checks
// use.
func (e *Entry) FeeRate() int64 {
	if e.VirtualSize == 0 {
		return 0
	}
	return int64(e.ModifiedFee()) * 1000 / e.VirtualSize
}

// DescendantFeeRate returns the package feerate: modified fee including
// descendants, divided by vsize including descendants. This is the
// "descendant score" ordering key and drives worst-package eviction.
func (e *Entry) DescendantFeeRate() int64 {
	if e.SizeWithDescendants == 0 {
		return 0
	}
	return int64(e.ModFeesWithDescendants) * 1000 / e.SizeWithDescendants
}

// AncestorFeeRate returns the ancestor-group feerate: modified fee
// including ancestors, divided by vsize including ancestors.
func (e *Entry) AncestorFeeRate() int64 {
	if e.SizeWithAncestors == 0 {
		return 0
	}
	return int64(e.ModFeesWithAncestors) * 1000 / e.SizeWithAncestors
}

// MiningScore returns min(self feerate, ancestor-group feerate) — the
// "ancestor score" ordering key. It is deliberately the minimum, not
// the ancestor-group rate alone: a high-fee parent should not lend its rate
// to a low-fee child it has no guarantee of actually carrying into a block
// together.
func (e *Entry) MiningScore() int64 {
	self := e.FeeRate()
	anc := e.AncestorFeeRate()
	if anc < self {
		return anc
	}
	return self
}
