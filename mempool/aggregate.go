// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// computeAncestors performs an ancestor-closure BFS, ported from
// original_source/txmempool.cpp's CalculateMemPoolAncestors. It is the one
// piece of this package with no direct btcd analogue:
// policy_enforcer.go's ValidateAncestorLimits/ValidateDescendantLimits
// recompute counts from a freshly-walked graph on every call instead of
// maintaining rollups incrementally, and neither function enforces the
// descendant-side limits while walking ancestors the way this does.
//
// If searchParents is true, entry's direct parents are discovered by
// scanning its inputs against s (used at admission time, before entry has
// been wired into g). If false, entry must already be resident and g's
// adjacency is used directly (used during reorg re-linking, where parents
// are already known and a missing one should not be treated as an error).
//
// On success the returned set contains every transitive in-pool ancestor of
// entry, not including entry itself.
func computeAncestors(
	entry *Entry, limits Limits, searchParents bool, s *store, g *graph,
) (map[chainhash.Hash]*Entry, error) {

	var direct map[chainhash.Hash]*Entry
	if searchParents {
		direct = findParents(entry, s)
		if len(direct)+1 > limits.MaxAncestorCount {
			return nil, fmt.Errorf(
				"%w: %d unconfirmed parents (limit %d)",
				ErrTooManyAncestors, len(direct), limits.MaxAncestorCount,
			)
		}
	} else {
		direct = g.parentsOf(entry.TxHash)
	}

	ancestors := make(map[chainhash.Hash]*Entry, len(direct))
	queue := make([]*Entry, 0, len(direct))
	for hash, p := range direct {
		ancestors[hash] = p
		queue = append(queue, p)
	}

	totalVSize := entry.VirtualSize

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		if p.SizeWithDescendants+entry.VirtualSize > limits.MaxDescendantSize {
			return nil, fmt.Errorf(
				"%w: ancestor %v would carry %d bytes of descendants "+
					"(limit %d)", ErrTooManyDescendants, p.TxHash,
				p.SizeWithDescendants+entry.VirtualSize,
				limits.MaxDescendantSize,
			)
		}
		if p.CountWithDescendants+1 > int64(limits.MaxDescendantCount) {
			return nil, fmt.Errorf(
				"%w: ancestor %v would carry %d descendants (limit %d)",
				ErrTooManyDescendants, p.TxHash, p.CountWithDescendants+1,
				limits.MaxDescendantCount,
			)
		}

		totalVSize += p.VirtualSize
		if totalVSize > limits.MaxAncestorSize {
			return nil, fmt.Errorf(
				"%w: %d ancestor bytes (limit %d)", ErrTooManyAncestors,
				totalVSize, limits.MaxAncestorSize,
			)
		}

		var grandparents map[chainhash.Hash]*Entry
		if searchParents {
			grandparents = findParents(p, s)
		} else {
			grandparents = g.parentsOf(p.TxHash)
		}

		for hash, gp := range grandparents {
			if _, seen := ancestors[hash]; seen {
				continue
			}
			ancestors[hash] = gp
			queue = append(queue, gp)

			if len(ancestors)+1 > limits.MaxAncestorCount {
				return nil, fmt.Errorf(
					"%w: %d ancestors (limit %d)", ErrTooManyAncestors,
					len(ancestors)+1, limits.MaxAncestorCount,
				)
			}
		}
	}

	return ancestors, nil
}

// allAncestors returns the full transitive ancestor set of hash via the
// graph's adjacency (no limit enforcement, tolerating a missing parent) —
// used by removal, where the set is needed for rollup bookkeeping rather
// than for gating admission.
func allAncestors(hash chainhash.Hash, g *graph) map[chainhash.Hash]*Entry {
	out := make(map[chainhash.Hash]*Entry)
	queue := []chainhash.Hash{hash}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for parentHash, parent := range g.parentsOf(cur) {
			if _, seen := out[parentHash]; seen {
				continue
			}
			out[parentHash] = parent
			queue = append(queue, parentHash)
		}
	}

	return out
}

// applyInsert wires entry into the graph against its ancestor set and
// brings its own ancestor rollup and every ancestor's descendant rollup up
// to date. Callers must have already validated entry via computeAncestors.
func applyInsert(entry *Entry, ancestors map[chainhash.Hash]*Entry, s *store, g *graph) {
	g.addEdges(entry, findParents(entry, s))

	entry.CountWithDescendants = 1
	entry.SizeWithDescendants = entry.VirtualSize
	entry.ModFeesWithDescendants = entry.ModifiedFee()

	entry.CountWithAncestors = 1
	entry.SizeWithAncestors = entry.VirtualSize
	entry.ModFeesWithAncestors = entry.ModifiedFee()
	entry.SigOpCostWithAncestors = entry.SigOpCost

	for _, anc := range ancestors {
		oldKey := s.descScoreKey(anc)
		anc.CountWithDescendants++
		anc.SizeWithDescendants += entry.VirtualSize
		anc.ModFeesWithDescendants += entry.ModifiedFee()
		s.reindexDescScore(anc, oldKey)

		entry.CountWithAncestors++
		entry.SizeWithAncestors += anc.VirtualSize
		entry.ModFeesWithAncestors += anc.ModifiedFee()
		entry.SigOpCostWithAncestors += anc.SigOpCost
	}
}

// applyRemove reverses applyInsert's bookkeeping for every entry in the
// removal set R, in any order. This runs as two full batch-wide passes over
// R rather than one interleaved per-entry loop, matching
// original_source/txmempool.cpp's UpdateForRemoveFromMempool (which runs
// UpdateAncestorsOf for the whole batch before UpdateChildrenForRemoval
// touches any edge): every e's surviving ancestors are decremented first,
// each computed against the graph as it stood before any edge in this batch
// was severed, and only once every e has been accounted for does the second
// pass sever edges. Interleaving the two (decrement-then-sever per entry)
// would, for a 3+ generation batch like [A, B] where A is B's parent and GP
// is A's surviving grandparent, sever the A-B edge while processing A before
// B's own allAncestors walk ever reaches GP — leaving GP's descendant
// rollup permanently short of B's contribution. updateDescendants
// additionally walks e's descendants (outside of R) and decrements their
// ancestor rollups — used by the block-connect path, where a mined entry's
// in-pool descendants stay resident, and skipped by callers such as
// RemoveRecursive that have already queued every descendant into R.
func applyRemove(removalSet []*Entry, updateDescendants bool, s *store, g *graph) {
	inR := make(map[chainhash.Hash]bool, len(removalSet))
	for _, e := range removalSet {
		inR[e.TxHash] = true
	}

	if updateDescendants {
		for _, e := range removalSet {
			for descHash, desc := range g.descendants(e.TxHash) {
				if inR[descHash] {
					continue
				}
				oldKey := s.ancScoreKey(desc)
				desc.CountWithAncestors--
				desc.SizeWithAncestors -= e.VirtualSize
				desc.ModFeesWithAncestors -= e.ModifiedFee()
				desc.SigOpCostWithAncestors -= e.SigOpCost
				s.reindexAncScore(desc, oldKey)
			}
		}
	}

	for _, e := range removalSet {
		for ancHash, anc := range allAncestors(e.TxHash, g) {
			if inR[ancHash] {
				continue
			}
			oldKey := s.descScoreKey(anc)
			anc.CountWithDescendants--
			anc.SizeWithDescendants -= e.VirtualSize
			anc.ModFeesWithDescendants -= e.ModifiedFee()
			s.reindexDescScore(anc, oldKey)
		}
	}

	for _, e := range removalSet {
		g.removeEdges(e)
	}
}

