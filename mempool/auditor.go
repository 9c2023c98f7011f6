// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
)

// checkInvariants is the probabilistic consistency auditor, ported
// from original_source/txmempool.cpp's check(). With probability
// CheckFrequency/2^32 it walks every resident entry and asserts the
// invariants the incremental aggregate updater (aggregate.go) is supposed to
// maintain: the spend-index agrees with each entry's inputs, the graph's
// parent/child adjacency agrees with the spend-index, the recomputed
// ancestor rollups equal the stored ones, and the cached memory and size
// totals equal their summed recomputation. A mismatch indicates the
// incremental bookkeeping has drifted from ground truth and is fatal: unlike
// an admission rejection, there is no value to return it as, so it panics
// with a spew dump of the offending entry. The caller must already hold
// p.mu, for either reading or writing.
func (p *TxPool) checkInvariants() {
	if p.cfg.CheckFrequency == 0 {
		return
	}
	if rand.Uint32() >= p.cfg.CheckFrequency {
		return
	}

	ctx := context.Background()
	log.DebugS(ctx, "running mempool consistency check",
		"entries", p.store.len())

	var totalVSize int64
	var totalUsage int64

	for _, entry := range p.store.all() {
		totalVSize += entry.VirtualSize
		totalUsage += entryMemUsage(entry)

		p.checkSpendIndex(entry)
		p.checkParentSet(entry)
		p.checkChildSet(entry)
		p.checkAncestorRollups(entry)
	}

	if totalVSize != p.totalVSizeUnlocked() {
		p.panicInvariant("total_tx_size mismatch", totalVSize,
			p.totalVSizeUnlocked())
	}
	if totalUsage != p.cachedInnerUsage {
		p.panicInvariant("cached_inner_usage mismatch", totalUsage,
			p.cachedInnerUsage)
	}
}

func (p *TxPool) totalVSizeUnlocked() int64 {
	var total int64
	for _, e := range p.store.all() {
		total += e.VirtualSize
	}
	return total
}

// checkSpendIndex asserts that every input of entry is claimed by entry in
// the spend-index, and that no third party claims it instead.
func (p *TxPool) checkSpendIndex(entry *Entry) {
	for _, txIn := range entry.Tx.MsgTx().TxIn {
		spender, ok := p.store.spentBy(txIn.PreviousOutPoint)
		if !ok || spender.TxHash != entry.TxHash {
			p.panicInvariant(fmt.Sprintf(
				"spend-index disagrees with input %v of %v",
				txIn.PreviousOutPoint, entry.TxHash), entry, spender)
		}
	}
}

// checkParentSet asserts that the graph's recorded parent set for entry
// equals the set of in-pool transactions entry's inputs actually spend from.
func (p *TxPool) checkParentSet(entry *Entry) {
	want := findParents(entry, p.store)
	got := p.graph.parentsOf(entry.TxHash)

	if len(want) != len(got) {
		p.panicInvariant("parent set size mismatch for "+
			entry.TxHash.String(), want, got)
	}
	for hash := range want {
		if _, ok := got[hash]; !ok {
			p.panicInvariant("parent set missing "+hash.String()+
				" for "+entry.TxHash.String(), want, got)
		}
	}
}

// checkChildSet asserts that the graph's recorded child set for entry
// equals the set of in-pool transactions that spend one of entry's outputs.
func (p *TxPool) checkChildSet(entry *Entry) {
	want := make(map[chainhash.Hash]*Entry)
	for i := range entry.Tx.MsgTx().TxOut {
		op := wire.OutPoint{Hash: entry.TxHash, Index: uint32(i)}
		if spender, ok := p.store.spentBy(op); ok {
			want[spender.TxHash] = spender
		}
	}
	got := p.graph.childrenOf(entry.TxHash)

	if len(want) != len(got) {
		p.panicInvariant("child set size mismatch for "+
			entry.TxHash.String(), want, got)
	}
	for hash := range want {
		if _, ok := got[hash]; !ok {
			p.panicInvariant("child set missing "+hash.String()+
				" for "+entry.TxHash.String(), want, got)
		}
	}
}

// checkAncestorRollups recomputes entry's ancestor set from scratch via the
// graph and asserts the stored rollups agree with the recomputation.
func (p *TxPool) checkAncestorRollups(entry *Entry) {
	ancestors := allAncestors(entry.TxHash, p.graph)

	wantCount := int64(len(ancestors)) + 1
	wantSize := entry.VirtualSize
	wantFees := entry.ModifiedFee()
	wantSigOps := entry.SigOpCost

	for _, anc := range ancestors {
		wantSize += anc.VirtualSize
		wantFees += anc.ModifiedFee()
		wantSigOps += anc.SigOpCost
	}

	if entry.CountWithAncestors != wantCount ||
		entry.SizeWithAncestors != wantSize ||
		entry.ModFeesWithAncestors != wantFees ||
		entry.SigOpCostWithAncestors != wantSigOps {

		p.panicInvariant("ancestor rollup mismatch for "+
			entry.TxHash.String(), entry, map[string]interface{}{
			"wantCount":  wantCount,
			"wantSize":   wantSize,
			"wantFees":   wantFees,
			"wantSigOps": wantSigOps,
		})
	}
}

// panicInvariant logs a spew dump of the mismatched values and panics. A
// failed invariant here means this package's own bookkeeping has drifted
// from ground truth, not that a caller passed bad input, so there is no
// sensible error to return instead.
func (p *TxPool) panicInvariant(msg string, got, want interface{}) {
	log.WarnS(context.Background(), "mempool consistency check failed",
		"reason", msg,
		"got", spew.Sdump(got),
		"want", spew.Sdump(want))
	panic("mempool: consistency check failed: " + msg)
}
