// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// RemoveForBlock reconciles the pool against a block that just connected at
// blockHeight: every resident transaction in txs is removed with
// ReasonBlock, and the fee estimator (if
// configured) is given the chance to observe each entry's final rollups
// before it disappears. Any in-pool transaction left double-spending one of
// txs' inputs is then recursively removed with ReasonConflict.
func (p *TxPool) RemoveForBlock(txs []*btcutil.Tx, blockHeight int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.checkInvariants()

	var mined []*Entry
	for _, tx := range txs {
		if entry, ok := p.store.find(*tx.Hash()); ok {
			mined = append(mined, entry)
		}
	}

	if p.cfg.FeeEstimator != nil && len(mined) > 0 {
		p.cfg.FeeEstimator.ProcessBlock(blockHeight, mined)
	}

	if len(mined) > 0 {
		p.removeEntries(mined, ReasonBlock, true)
	}

	for _, tx := range txs {
		for _, txIn := range tx.MsgTx().TxIn {
			conflict, ok := p.store.spentBy(txIn.PreviousOutPoint)
			if !ok {
				continue
			}

			set := []*Entry{conflict}
			for _, d := range p.graph.descendants(conflict.TxHash) {
				set = append(set, d)
			}
			p.removeEntries(set, ReasonConflict, false)
		}
	}

	p.blockSinceLastRollingFeeBump = true
}

// UpdateForReorg reconciles the pool against a block that just disconnected.
// disconnected holds the block's transactions oldest first, and they are
// re-admitted in that same order: a transaction's own unconfirmed parent, if
// it was part of the same disconnected block, is re-admitted first and so is
// already resident by the time the child's turn comes, letting the normal
// admission path (via computeAncestors' parent scan) wire up the edge and
// rollups without any separate repair pass. A transaction that fails
// re-admission takes its in-pool descendants down with it, since they would
// otherwise be orphaned by its absence. Once every transaction has been
// attempted, a final pass evicts anything left non-final or spending a
// now-immature coinbase against the current tip.
func (p *TxPool) UpdateForReorg(disconnected []*btcutil.Tx, validator TxValidator) {
	for _, tx := range disconnected {
		result, err := p.Accept(tx, validator, false, true)
		if err != nil || result.Entry == nil {
			p.RemoveRecursive(tx, ReasonReorg)

			p.mu.Lock()
			for i := range tx.MsgTx().TxOut {
				op := wire.OutPoint{Hash: *tx.Hash(), Index: uint32(i)}
				if spender, ok := p.store.spentBy(op); ok {
					p.removeWithDescendantsLocked(spender, ReasonReorg)
				}
			}
			p.mu.Unlock()
		}
	}

	p.mu.Lock()
	p.reapNonFinal(validator)
	p.checkInvariants()
	p.mu.Unlock()
}

// reapNonFinal removes every resident transaction that is no longer final
// against the current tip, or that spends a coinbase output that is no
// longer mature. Maturity is delegated to the same
// blockchain.CheckTransactionInputs call the admission path uses, since it
// already enforces
// chaincfg.Params.CoinbaseMaturity against the UTXO view's recorded
// confirmation height. Must be called with p.mu held.
func (p *TxPool) reapNonFinal(validator TxValidator) {
	bestHeight := p.cfg.BestHeight()
	medianTimePast := p.cfg.MedianTimePast()

	for _, entry := range p.store.all() {
		if _, stillResident := p.store.find(entry.TxHash); !stillResident {
			continue
		}

		if !blockchain.IsFinalizedTransaction(
			entry.Tx, bestHeight+1, medianTimePast,
		) {
			p.removeWithDescendantsLocked(entry, ReasonReorg)
			continue
		}

		if !entry.SpendsCoinbase {
			continue
		}

		utxoView, err := p.fetchInputUtxos(entry.Tx)
		if err != nil {
			continue
		}
		if _, err := validator.ValidateInputs(
			entry.Tx, bestHeight+1, utxoView,
		); err != nil {
			p.removeWithDescendantsLocked(entry, ReasonReorg)
		}
	}
}

// removeWithDescendantsLocked removes entry and every in-pool descendant of
// it, with reason attached to all of them. Must be called with p.mu held;
// unlike RemoveRecursive, which takes its own lock, this is the variant
// reapNonFinal uses to avoid re-entering the pool's mutex.
func (p *TxPool) removeWithDescendantsLocked(entry *Entry, reason RemovalReason) {
	if _, ok := p.store.find(entry.TxHash); !ok {
		return
	}

	set := []*Entry{entry}
	for _, d := range p.graph.descendants(entry.TxHash) {
		set = append(set, d)
	}
	p.removeEntries(set, reason, false)
}
