// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxRBFSequence is the maximum input sequence number that signals
	// BIP 125 replaceability: 0xfffffffd.
	MaxRBFSequence = 0xfffffffd

	// MaxReplacementEvictions is the default cap on how many mempool
	// transactions a single replacement may evict, matching Bitcoin Core.
	MaxReplacementEvictions = 100
)

// PolicyEnforcer bundles the mempool policy decisions that depend on
// configuration rather than on the resident graph's shape: relay fee floors,
// standardness, sigop cost, SegWit gating, and BIP125 replacement economics.
// Chain-shape limits (ancestor/descendant count and size) are enforced
// separately by computeAncestors, since they require walking the live graph
// rather than a fixed parameter set.
type PolicyEnforcer interface {
	// SignalsReplacement determines if a transaction signals that it can
	// be replaced using the Replace-By-Fee (RBF) policy. This includes
	// both explicit signaling (sequence number) and inherited signaling
	// (unconfirmed ancestors that signal RBF).
	SignalsReplacement(tx *btcutil.Tx, s *store, g *graph) bool

	// ValidateReplacement determines whether a transaction is a valid
	// replacement of its conflicts according to BIP 125 RBF rules.
	ValidateReplacement(tx *btcutil.Tx, txFee, txVSize int64,
		conflicts map[chainhash.Hash]*Entry,
		incrementalRelayFee btcutil.Amount, s *store, g *graph) error

	// ValidateRelayFee checks that a transaction meets the minimum relay
	// fee requirements, including priority checks and rate limiting for
	// free/low-fee transactions.
	ValidateRelayFee(tx *btcutil.Tx, fee int64, size int64,
		utxoView *blockchain.UtxoViewpoint, nextBlockHeight int32,
		isNew bool) error

	// ValidateStandardness checks that a transaction meets standardness
	// requirements for relay (version, size, scripts, dust outputs).
	ValidateStandardness(tx *btcutil.Tx, height int32,
		medianTimePast time.Time, utxoView *blockchain.UtxoViewpoint,
	) error

	// ValidateSigCost checks that a transaction's signature operation cost
	// does not exceed the maximum allowed for relay.
	ValidateSigCost(tx *btcutil.Tx,
		utxoView *blockchain.UtxoViewpoint) error

	// ValidateSegWitDeployment checks that if a transaction contains
	// witness data, the SegWit soft fork must be active.
	ValidateSegWitDeployment(tx *btcutil.Tx) error
}

// PolicyConfig defines mempool policy parameters. These settings control
// transaction acceptance, replacement, and relay behavior.
type PolicyConfig struct {
	// MaxRBFSequence is the maximum sequence number an input can use to
	// signal that the transaction can be replaced. Per BIP 125, this is
	// 0xfffffffd.
	MaxRBFSequence uint32

	// MaxReplacementEvictions is the maximum number of transactions that
	// can be evicted when accepting a replacement. Bitcoin Core uses 100.
	MaxReplacementEvictions int

	// RejectReplacement, if true, rejects all replacement transactions
	// regardless of RBF signaling.
	RejectReplacement bool

	// MinRelayTxFee defines the minimum transaction fee in satoshi/kB
	// required for relay and mining.
	MinRelayTxFee btcutil.Amount

	// FreeTxRelayLimit defines the rate limit in KB/minute for
	// transactions with fees below MinRelayTxFee.
	FreeTxRelayLimit float64

	// DisableRelayPriority, if true, disables relaying of low-fee
	// transactions based on priority.
	DisableRelayPriority bool

	// MaxTxVersion is the maximum transaction version to accept.
	// Transactions with versions above this are rejected as non-standard.
	MaxTxVersion int32

	// MaxSigOpCostPerTx is the cumulative maximum cost of all signature
	// operations in a single transaction that will be relayed or mined.
	MaxSigOpCostPerTx int

	// IsDeploymentActive checks if a consensus deployment is active.
	// This is used for validating SegWit transactions.
	IsDeploymentActive func(deploymentID uint32) (bool, error)

	// ChainParams identifies the blockchain network (mainnet, testnet,
	// etc). Used for network-specific validation rules.
	ChainParams *chaincfg.Params

	// BestHeight returns the current best block height.
	BestHeight func() int32

	// RequireStandard, if true, rejects transactions and inputs that do
	// not meet the node's standardness rules. Regression networks
	// typically set this false.
	RequireStandard bool
}

// DefaultPolicyConfig returns a PolicyConfig with default values matching
// Bitcoin Core's mempool policy.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MaxRBFSequence:          MaxRBFSequence,
		MaxReplacementEvictions: MaxReplacementEvictions,
		RejectReplacement:       false,

		MinRelayTxFee:        DefaultMinRelayTxFee,
		FreeTxRelayLimit:     15.0,
		DisableRelayPriority: false,

		MaxTxVersion:      2,
		MaxSigOpCostPerTx: 80000,
		RequireStandard:   true,

		IsDeploymentActive: func(deploymentID uint32) (bool, error) {
			return true, nil
		},

		ChainParams: &chaincfg.MainNetParams,

		BestHeight: func() int32 {
			return 700000
		},
	}
}

// StandardPolicyEnforcer implements PolicyEnforcer with Bitcoin Core
// compatible policy enforcement.
type StandardPolicyEnforcer struct {
	cfg PolicyConfig

	mu            sync.Mutex
	pennyTotal    float64
	lastPennyUnix int64
}

// NewStandardPolicyEnforcer creates a new policy enforcer with the given
// configuration.
func NewStandardPolicyEnforcer(cfg PolicyConfig) *StandardPolicyEnforcer {
	return &StandardPolicyEnforcer{
		cfg:           cfg,
		lastPennyUnix: time.Now().Unix(),
	}
}

// SignalsReplacement determines if a transaction is signaling that it can be
// replaced using the Replace-By-Fee (RBF) policy.
//
// Per BIP 125, a transaction signals replaceability in two ways:
//
//  1. Explicit signaling: any input has a sequence number <= MaxRBFSequence.
//  2. Inherited signaling: any unconfirmed ancestor signals replaceability.
func (p *StandardPolicyEnforcer) SignalsReplacement(
	tx *btcutil.Tx, s *store, g *graph) bool {

	for _, txIn := range tx.MsgTx().TxIn {
		if txIn.Sequence <= p.cfg.MaxRBFSequence {
			return true
		}
	}

	cache := make(map[chainhash.Hash]bool)
	for _, txIn := range tx.MsgTx().TxIn {
		if p.signalsReplacementRecursive(txIn.PreviousOutPoint.Hash, s, g, cache) {
			return true
		}
	}

	return false
}

func (p *StandardPolicyEnforcer) signalsReplacementRecursive(
	hash chainhash.Hash, s *store, g *graph, cache map[chainhash.Hash]bool) bool {

	if signals, ok := cache[hash]; ok {
		return signals
	}

	entry, exists := s.find(hash)
	if !exists {
		cache[hash] = false
		return false
	}

	for _, txIn := range entry.Tx.MsgTx().TxIn {
		if txIn.Sequence <= p.cfg.MaxRBFSequence {
			cache[hash] = true
			return true
		}
	}

	for parentHash := range g.parentsOf(hash) {
		if p.signalsReplacementRecursive(parentHash, s, g, cache) {
			cache[hash] = true
			return true
		}
	}

	cache[hash] = false
	return false
}

// ancestorsOfCandidate walks tx's inputs and returns tx's full transitive
// in-pool ancestor set. Unlike computeAncestors, this enforces no limits; it
// exists only to give ValidateReplacement the same closure allAncestors
// gives removal.
func ancestorsOfCandidate(tx *btcutil.Tx, s *store, g *graph) map[chainhash.Hash]*Entry {
	out := make(map[chainhash.Hash]*Entry)
	var queue []chainhash.Hash
	for _, txIn := range tx.MsgTx().TxIn {
		queue = append(queue, txIn.PreviousOutPoint.Hash)
	}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		entry, ok := s.find(h)
		if !ok {
			continue
		}
		if _, seen := out[h]; seen {
			continue
		}
		out[h] = entry

		for parentHash := range g.parentsOf(h) {
			queue = append(queue, parentHash)
		}
	}

	return out
}

// ValidateReplacement determines whether tx is a valid replacement of
// conflicts according to BIP 125 RBF rules:
//
//  1. The replacement evicts at most MaxReplacementEvictions transactions.
//  2. The replacement doesn't spend any outputs from the conflicts (no
//     spending parent).
//  3. The replacement has a strictly higher feerate than each conflict.
//  4. The replacement has a higher absolute fee than the sum of all
//     conflicts plus an incremental relay fee.
//  5. The replacement doesn't introduce new unconfirmed inputs beyond those
//     already present in the conflicts.
func (p *StandardPolicyEnforcer) ValidateReplacement(
	tx *btcutil.Tx, txFee, txVSize int64,
	conflicts map[chainhash.Hash]*Entry, incrementalRelayFee btcutil.Amount,
	s *store, g *graph) error {

	// Rule 1.
	if len(conflicts) > p.cfg.MaxReplacementEvictions {
		return fmt.Errorf("%w: %d conflicts (max %d)",
			ErrTooManyEvictions, len(conflicts),
			p.cfg.MaxReplacementEvictions)
	}

	// Rule 2.
	ancestors := ancestorsOfCandidate(tx, s, g)
	for conflictHash := range conflicts {
		if _, exists := ancestors[conflictHash]; exists {
			return fmt.Errorf("%w: %v", ErrReplacementSpendsParent,
				conflictHash)
		}
	}

	// Rule 3.
	txFeeRate := txFee * 1000 / txVSize
	for conflictHash, conflict := range conflicts {
		conflictFeeRate := int64(conflict.ModifiedFee()) * 1000 / conflict.VirtualSize
		if txFeeRate <= conflictFeeRate {
			return fmt.Errorf("%w: replacement fee rate %d sat/kB <= "+
				"conflict %v fee rate %d sat/kB",
				ErrInsufficientFeeRate, txFeeRate, conflictHash,
				conflictFeeRate)
		}
	}

	// Rule 4.
	var conflictsFee int64
	for _, conflict := range conflicts {
		conflictsFee += int64(conflict.ModifiedFee())
	}
	minFee := calcMinRequiredTxRelayFee(txVSize, incrementalRelayFee)
	if txFee < conflictsFee+minFee {
		return fmt.Errorf("%w: replacement fee %d < conflicts fee %d + "+
			"relay fee %d", ErrInsufficientAbsoluteFee, txFee,
			conflictsFee, minFee)
	}

	// Rule 5.
	conflictsInputs := make(map[chainhash.Hash]struct{})
	for _, conflict := range conflicts {
		for _, txIn := range conflict.Tx.MsgTx().TxIn {
			conflictsInputs[txIn.PreviousOutPoint.Hash] = struct{}{}
		}
	}

	for _, txIn := range tx.MsgTx().TxIn {
		parentHash := txIn.PreviousOutPoint.Hash
		if _, inConflicts := conflictsInputs[parentHash]; inConflicts {
			continue
		}
		if _, exists := s.find(parentHash); exists {
			return fmt.Errorf("%w: %v", ErrNewUnconfirmedInput, parentHash)
		}
	}

	return nil
}

// ValidateRelayFee checks that a transaction meets the minimum relay fee
// requirements, including priority checks and rate limiting for free/low-fee
// transactions.
func (p *StandardPolicyEnforcer) ValidateRelayFee(
	tx *btcutil.Tx, fee int64, size int64, utxoView *blockchain.UtxoViewpoint,
	nextBlockHeight int32, isNew bool) error {

	err := CheckRelayFee(
		tx, fee, size, utxoView, nextBlockHeight,
		p.cfg.MinRelayTxFee, p.cfg.DisableRelayPriority, isNew,
	)
	if err != nil {
		return err
	}

	minFee := calcMinRequiredTxRelayFee(size, p.cfg.MinRelayTxFee)
	if fee >= minFee {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	nowUnix := time.Now().Unix()
	p.pennyTotal *= math.Pow(1.0-1.0/600.0, float64(nowUnix-p.lastPennyUnix))
	p.lastPennyUnix = nowUnix

	limit := p.cfg.FreeTxRelayLimit * 10 * 1000
	if p.pennyTotal >= limit {
		return txRuleErrorf(wire.RejectInsufficientFee, "transaction %v rejected by rate "+
			"limiter: %.0f bytes (limit %.0f bytes per 10 minutes)",
			tx.Hash(), p.pennyTotal, limit)
	}

	p.pennyTotal += float64(size)

	return nil
}

// ValidateStandardness checks that a transaction meets standardness
// requirements for relay. This includes version checks, finalization, size
// limits, script checks, and dust checks.
func (p *StandardPolicyEnforcer) ValidateStandardness(
	tx *btcutil.Tx, height int32, medianTimePast time.Time,
	utxoView *blockchain.UtxoViewpoint) error {

	err := CheckTransactionStandard(
		tx, height, medianTimePast,
		p.cfg.MinRelayTxFee, p.cfg.MaxTxVersion,
	)
	if err != nil {
		return err
	}

	return checkInputsStandard(tx, utxoView)
}

// ValidateSigCost checks that a transaction's signature operation cost does
// not exceed the maximum allowed for relay.
func (p *StandardPolicyEnforcer) ValidateSigCost(
	tx *btcutil.Tx, utxoView *blockchain.UtxoViewpoint) error {

	return CheckTransactionSigCost(tx, utxoView, p.cfg.MaxSigOpCostPerTx)
}

// ValidateSegWitDeployment checks that if a transaction contains witness
// data, the SegWit soft fork must be active.
func (p *StandardPolicyEnforcer) ValidateSegWitDeployment(tx *btcutil.Tx) error {
	return CheckSegWitDeployment(
		tx, p.cfg.IsDeploymentActive, p.cfg.ChainParams,
		p.cfg.BestHeight(),
	)
}

// Ensure StandardPolicyEnforcer implements PolicyEnforcer.
var _ PolicyEnforcer = (*StandardPolicyEnforcer)(nil)
