// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxPool is the unconfirmed-transaction mempool: a multi-indexed store of
// resident Entries, their parent/child graph, incrementally
// maintained ancestor/descendant aggregates, an admission controller,
// age- and size-based eviction, reorg reconciliation, a
// read-through coin view overlay, and a probabilistic consistency
// auditor. It is safe for concurrent use.
type TxPool struct {
	mu sync.RWMutex

	cfg Config

	store *store
	graph *graph

	// deltas retains prioritisation fee deltas by txid even when the
	// transaction is absent, so a future re-admission picks the delta
	// back up.
	deltas map[chainhash.Hash]btcutil.Amount

	// cachedInnerUsage tracks dynamic_memory_usage incrementally; see
	// eviction.go's dynamicMemoryUsage.
	cachedInnerUsage int64

	// Rolling minimum feerate state.
	rollingMinimumFeeRate        float64
	lastRollingFeeUpdate         time.Time
	blockSinceLastRollingFeeBump bool

	// lastUpdated is stored as UnixNano and accessed atomically.
	lastUpdated atomic.Int64

	policy PolicyEnforcer

	notifications   []EventCallback
	notificationsMu sync.RWMutex
}

// NewTxPool returns a new, empty TxPool configured per cfg.
func NewTxPool(cfg Config) *TxPool {
	p := &TxPool{
		cfg:    cfg,
		store:  newStore(),
		graph:  newGraph(),
		deltas: make(map[chainhash.Hash]btcutil.Amount),
		policy: NewStandardPolicyEnforcer(cfg.Policy),
	}
	p.lastUpdated.Store(int64(0))
	return p
}

// touch records that the pool's contents changed just now.
func (p *TxPool) touch(now time.Time) {
	p.lastUpdated.Store(now.UnixNano())
}

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
func (p *TxPool) LastUpdated() time.Time {
	nanos := p.lastUpdated.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Count returns the number of transactions resident in the pool.
func (p *TxPool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.len()
}

// Exists returns whether txid is resident in the pool.
func (p *TxPool) Exists(txid chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.store.find(txid)
	return ok
}

// HaveTransaction is an alias for Exists, matching the collaborator-facing
// name RPC and P2P collaborators expect.
func (p *TxPool) HaveTransaction(txid chainhash.Hash) bool {
	return p.Exists(txid)
}

// FetchTransaction returns the resident transaction for txid, or an error if
// it is not present.
func (p *TxPool) FetchTransaction(txid chainhash.Hash) (*btcutil.Tx, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.store.find(txid)
	if !ok {
		return nil, fmt.Errorf("transaction %v is not in the pool", txid)
	}
	return entry.Tx, nil
}

// Info returns the Entry for txid, or nil if it is not resident. The caller
// must not mutate the aggregates on the returned Entry directly; all
// mutation goes through the pool.
func (p *TxPool) Info(txid chainhash.Hash) *Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.store.find(txid)
	if !ok {
		return nil
	}
	return entry
}

// InfoAll returns every resident Entry, ordered by ascending descendant
// (package) score.
func (p *TxPool) InfoAll() []*Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.store.byDescendantScoreAscending()
}

// QueryHashes returns the txid of every resident entry, in unspecified
// order.
func (p *TxPool) QueryHashes() []chainhash.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := p.store.all()
	out := make([]chainhash.Hash, len(all))
	for i, e := range all {
		out[i] = e.TxHash
	}
	return out
}

// CheckSpend returns the resident transaction spending op, if any.
func (p *TxPool) CheckSpend(op wire.OutPoint) *btcutil.Tx {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.store.spentBy(op)
	if !ok {
		return nil
	}
	return entry.Tx
}

// Prioritise adjusts txid's fee delta by delta. If txid is resident, the
// delta is also applied to its own ancestor and descendant fee rollups, to
// the descendant fee rollup of each in-pool ancestor and to the ancestor fee
// rollup of each in-pool descendant, and every affected score ordering is
// re-indexed. The delta is retained in p.deltas even
// when txid is absent, so it applies to a future admission of the same
// txid.
func (p *TxPool) Prioritise(txid chainhash.Hash, delta btcutil.Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deltas[txid] += delta
	if p.deltas[txid] == 0 {
		delete(p.deltas, txid)
	}

	entry, ok := p.store.find(txid)
	if !ok {
		return
	}

	oldAncKey := p.store.ancScoreKey(entry)
	oldDescKey := p.store.descScoreKey(entry)
	entry.FeeDelta += delta
	entry.ModFeesWithAncestors += delta
	entry.ModFeesWithDescendants += delta
	p.store.reindexAncScore(entry, oldAncKey)
	p.store.reindexDescScore(entry, oldDescKey)

	for _, anc := range allAncestors(txid, p.graph) {
		key := p.store.descScoreKey(anc)
		anc.ModFeesWithDescendants += delta
		p.store.reindexDescScore(anc, key)
	}
	for _, desc := range p.graph.descendants(txid) {
		key := p.store.ancScoreKey(desc)
		desc.ModFeesWithAncestors += delta
		p.store.reindexAncScore(desc, key)
	}
}

// removeEntries unwinds every entry in set from the store, graph, and
// aggregate rollups, firing an NTEntryRemoved notification and a fee
// estimator RemoveTx call for each, and adjusting the cached memory usage
// counter. updateDescendants should be true whenever set does not already
// include every descendant of its members (the block-connect path, which
// removes only the mined entries); it should be false when the caller has
// already queued every affected entry (RemoveRecursive, expiry, trimming,
// replacement and conflict removal).
func (p *TxPool) removeEntries(set []*Entry, reason RemovalReason, updateDescendants bool) {
	if len(set) == 0 {
		return
	}

	applyRemove(set, updateDescendants, p.store, p.graph)

	for _, e := range set {
		p.store.remove(e)
		p.cachedInnerUsage -= entryMemUsage(e)

		if p.cfg.FeeEstimator != nil {
			p.cfg.FeeEstimator.RemoveTx(e.TxHash, reason == ReasonBlock)
		}

		p.notify(NTEntryRemoved, &EntryRemovedData{Tx: e.Tx, Reason: reason})
	}

	p.touch(time.Now())
}

// RemoveRecursive removes tx and every in-pool descendant of tx, with
// reason attached to all of them.
func (p *TxPool) RemoveRecursive(tx *btcutil.Tx, reason RemovalReason) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.checkInvariants()

	entry, ok := p.store.find(*tx.Hash())
	if !ok {
		return
	}

	set := []*Entry{entry}
	for _, d := range p.graph.descendants(entry.TxHash) {
		set = append(set, d)
	}

	p.removeEntries(set, reason, false)
}

// insertAccepted wires a freshly validated entry into the store and graph,
// bringing its own and its ancestors' rollups up to date, and fires the
// on_entry_added notification.
func (p *TxPool) insertAccepted(entry *Entry, ancestors map[chainhash.Hash]*Entry) {
	applyInsert(entry, ancestors, p.store, p.graph)
	p.store.insert(entry)
	p.cachedInnerUsage += entryMemUsage(entry)

	p.touch(entry.EntryTime)
	p.notify(NTEntryAdded, entry.Tx)
}
