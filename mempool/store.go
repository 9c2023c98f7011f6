// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/emirpasic/gods/trees/redblacktree"
)

// store is the indexed collection of resident Entries: O(1) lookup by txid
// plus three orderings maintained over the same entries; the map and all
// three orderings hold the same *Entry pointers. The three
// orderings are each a github.com/emirpasic/gods red-black tree keyed by a
// composite, never-equal sort key so ties always resolve deterministically
// by txid.
type store struct {
	byHash map[chainhash.Hash]*Entry

	byEntryTime *redblacktree.Tree
	byDescScore *redblacktree.Tree
	byAncScore  *redblacktree.Tree

	// spend indexes every outpoint currently spent by a resident entry.
	spend map[wire.OutPoint]*Entry
}

// entryTimeKey orders by entry time first, txid second.
type entryTimeKey struct {
	nanos int64
	hash  chainhash.Hash
}

// scoreKey orders by an int64 feerate-like score ascending, txid second.
// Used for both the descendant-score and ancestor-score orderings; lower
// score sorts first so the worst package/lowest mining score is always
// Left() on the tree.
type scoreKey struct {
	score int64
	hash  chainhash.Hash
}

func compareEntryTimeKey(a, b interface{}) int {
	ka, kb := a.(entryTimeKey), b.(entryTimeKey)
	switch {
	case ka.nanos < kb.nanos:
		return -1
	case ka.nanos > kb.nanos:
		return 1
	default:
		return compareHash(ka.hash, kb.hash)
	}
}

func compareScoreKey(a, b interface{}) int {
	ka, kb := a.(scoreKey), b.(scoreKey)
	switch {
	case ka.score < kb.score:
		return -1
	case ka.score > kb.score:
		return 1
	default:
		return compareHash(ka.hash, kb.hash)
	}
}

func compareHash(a, b chainhash.Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func newStore() *store {
	return &store{
		byHash:      make(map[chainhash.Hash]*Entry),
		byEntryTime: redblacktree.NewWith(compareEntryTimeKey),
		byDescScore: redblacktree.NewWith(compareScoreKey),
		byAncScore:  redblacktree.NewWith(compareScoreKey),
		spend:       make(map[wire.OutPoint]*Entry),
	}
}

func (s *store) entryTimeKey(e *Entry) entryTimeKey {
	return entryTimeKey{nanos: e.EntryTime.UnixNano(), hash: e.TxHash}
}

func (s *store) descScoreKey(e *Entry) scoreKey {
	return scoreKey{score: e.DescendantFeeRate(), hash: e.TxHash}
}

func (s *store) ancScoreKey(e *Entry) scoreKey {
	return scoreKey{score: e.MiningScore(), hash: e.TxHash}
}

// find returns the resident entry for txid, if any.
func (s *store) find(txid chainhash.Hash) (*Entry, bool) {
	e, ok := s.byHash[txid]
	return e, ok
}

// insert adds entry to every ordering and claims its inputs in the spend
// index. Callers must ensure no conflicting entry already claims any of
// entry's inputs.
func (s *store) insert(e *Entry) {
	s.byHash[e.TxHash] = e
	s.byEntryTime.Put(s.entryTimeKey(e), e)
	s.byDescScore.Put(s.descScoreKey(e), e)
	s.byAncScore.Put(s.ancScoreKey(e), e)

	for _, txIn := range e.Tx.MsgTx().TxIn {
		s.spend[txIn.PreviousOutPoint] = e
	}
}

// remove drops entry from every ordering and releases its claimed inputs.
func (s *store) remove(e *Entry) {
	delete(s.byHash, e.TxHash)
	s.byEntryTime.Remove(s.entryTimeKey(e))
	s.byDescScore.Remove(s.descScoreKey(e))
	s.byAncScore.Remove(s.ancScoreKey(e))

	for _, txIn := range e.Tx.MsgTx().TxIn {
		if cur, ok := s.spend[txIn.PreviousOutPoint]; ok && cur == e {
			delete(s.spend, txIn.PreviousOutPoint)
		}
	}
}

// reindexDescScore re-balances the descendant-score ordering for entry
// after its descendant rollup changed. Must be called under the pool lock
// with oldKey computed before the rollup mutation.
func (s *store) reindexDescScore(e *Entry, oldKey scoreKey) {
	s.byDescScore.Remove(oldKey)
	s.byDescScore.Put(s.descScoreKey(e), e)
}

// reindexAncScore re-balances the ancestor-score ordering for entry after
// its ancestor rollup or fee delta changed.
func (s *store) reindexAncScore(e *Entry, oldKey scoreKey) {
	s.byAncScore.Remove(oldKey)
	s.byAncScore.Put(s.ancScoreKey(e), e)
}

// spentBy returns the entry spending outpoint, if any.
func (s *store) spentBy(op wire.OutPoint) (*Entry, bool) {
	e, ok := s.spend[op]
	return e, ok
}

// len returns the number of resident entries.
func (s *store) len() int {
	return len(s.byHash)
}

// worstPackage returns the entry with the lowest descendant (package)
// feerate, used by trimTo to pick the next eviction victim.
func (s *store) worstPackage() (*Entry, bool) {
	node := s.byDescScore.Left()
	if node == nil {
		return nil, false
	}
	return node.Value.(*Entry), true
}

// oldestBefore returns every entry with entry_time strictly before cutoff,
// in ascending entry-time order, for age-based expiry.
func (s *store) oldestBefore(cutoffNanos int64) []*Entry {
	var out []*Entry
	it := s.byEntryTime.Iterator()
	for it.Next() {
		k := it.Key().(entryTimeKey)
		if k.nanos >= cutoffNanos {
			break
		}
		out = append(out, it.Value().(*Entry))
	}
	return out
}

// all returns every resident entry in unspecified order.
func (s *store) all() []*Entry {
	out := make([]*Entry, 0, len(s.byHash))
	for _, e := range s.byHash {
		out = append(out, e)
	}
	return out
}

// byDescendantScoreAscending returns every resident entry ordered by
// ascending package feerate (worst first) — the order eviction walks in.
func (s *store) byDescendantScoreAscending() []*Entry {
	out := make([]*Entry, 0, len(s.byHash))
	it := s.byDescScore.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*Entry))
	}
	return out
}
