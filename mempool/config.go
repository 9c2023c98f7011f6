// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// FeeEstimator is the optional observer hook for fee estimation. The
// mempool never consults it for admission decisions; it only notifies it of
// accepted and removed transactions so the estimator can build its own
// history. A nil FeeEstimator in Config disables these calls.
type FeeEstimator interface {
	// ProcessTransaction is called once, right after a transaction is
	// accepted, with validForFeeEstimation indicating whether the
	// transaction's acceptance context makes it suitable input for the
	// estimator's statistics.
	ProcessTransaction(entry *Entry, validForFeeEstimation bool)

	// ProcessBlock is called when a block is connected, right before the
	// now-mined entries are removed from the pool, so the estimator
	// observes their final rollups.
	ProcessBlock(blockHeight int32, entries []*Entry)

	// RemoveTx is called for every entry removed from the pool, whatever
	// the reason; inBlock is true when the reason is block inclusion.
	RemoveTx(txHash chainhash.Hash, inBlock bool)
}

// Limits bundles the ancestor/descendant chain-shape limits enforced by the
// admission controller's ancestor/descendant gate and the replacement
// validator.
// Defaults match Bitcoin Core.
type Limits struct {
	MaxAncestorCount   int
	MaxAncestorSize    int64
	MaxDescendantCount int
	MaxDescendantSize  int64
}

// DefaultLimits returns the Bitcoin Core defaults: 25 ancestors/descendants,
// 101 KB of ancestor/descendant vsize.
func DefaultLimits() Limits {
	return Limits{
		MaxAncestorCount:   25,
		MaxAncestorSize:    101000,
		MaxDescendantCount: 25,
		MaxDescendantSize:  101000,
	}
}

// Config is the descriptor passed to NewTxPool. Every collaborator the
// mempool needs is threaded through here as an explicit field rather than
// consulted via package-level global state, in place of the original
// source's gArgs/chainActive/pcoinsTip globals.
type Config struct {
	// ChainParams identifies the network the pool is validating for.
	ChainParams *chaincfg.Params

	// Policy bundles the tunable policy knobs (fee floors, chain limits,
	// RBF toggles) separate from collaborator handles.
	Policy PolicyConfig

	// Limits bundles the ancestor/descendant chain-shape limits.
	Limits Limits

	// MaxMempoolBytes is the hard memory bound trimTo enforces.
	MaxMempoolBytes int64

	// MempoolExpiry is the age past which an entry is evicted by the
	// expire pass regardless of fee.
	MempoolExpiry time.Duration

	// IncrementalRelayFee is the surcharge rate, in satoshi/kB of the
	// replacement's vsize, a replacement must clear over the sum of the
	// fees it displaces, and the rate added to an evicted package's
	// feerate when the rolling minimum is bumped on a size-triggered
	// eviction.
	IncrementalRelayFee btcutil.Amount

	// CheckFrequency is the probability, expressed as a fraction of
	// math.MaxUint32, that any given mutating call triggers the
	// consistency auditor. Zero disables it.
	CheckFrequency uint32

	// FetchUtxoView fetches confirmed UTXO data for a transaction's
	// inputs from the backing UTXO store collaborator, out of scope for
	// this package.
	FetchUtxoView func(*btcutil.Tx) (*blockchain.UtxoViewpoint, error)

	// BestHeight returns the current best chain height.
	BestHeight func() int32

	// MedianTimePast returns the median time past of the current best
	// chain tip.
	MedianTimePast func() time.Time

	// CalcSequenceLock computes a transaction's BIP68 sequence lock
	// against a given UTXO view.
	CalcSequenceLock func(*btcutil.Tx, *blockchain.UtxoViewpoint) (*blockchain.SequenceLock, error)

	// IsDeploymentActive reports whether a consensus deployment (e.g.
	// SegWit) is currently active.
	IsDeploymentActive func(deploymentID uint32) (bool, error)

	// SigCache and HashCache back script-verification, itself delegated
	// to an external collaborator this package does not implement.
	SigCache  *txscript.SigCache
	HashCache *txscript.HashCache

	// FeeEstimator is the optional observer hook; nil disables it.
	FeeEstimator FeeEstimator
}
