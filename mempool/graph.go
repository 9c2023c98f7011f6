// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// graph is the parent/child adjacency over resident entries, kept in
// one-to-one correspondence with the store's spend index. Cycles are
// impossible by construction: an input can only reference a transaction
// hash that already exists, and hashes cannot be produced before the data
// they commit to, so the reference graph is a DAG —
// no cycle-detection bookkeeping is needed on the write path.
type graph struct {
	// parents maps a child's hash to the set of its in-pool parent
	// entries.
	parents map[chainhash.Hash]map[chainhash.Hash]*Entry

	// children maps a parent's hash to the set of its in-pool child
	// entries.
	children map[chainhash.Hash]map[chainhash.Hash]*Entry
}

func newGraph() *graph {
	return &graph{
		parents:  make(map[chainhash.Hash]map[chainhash.Hash]*Entry),
		children: make(map[chainhash.Hash]map[chainhash.Hash]*Entry),
	}
}

// findParents scans e's inputs against s and returns every resident entry
// that e directly spends from.
func findParents(e *Entry, s *store) map[chainhash.Hash]*Entry {
	out := make(map[chainhash.Hash]*Entry)
	for _, txIn := range e.Tx.MsgTx().TxIn {
		if p, ok := s.find(txIn.PreviousOutPoint.Hash); ok {
			out[p.TxHash] = p
		}
	}
	return out
}

// addEdges wires child to every entry in parentSet, on both sides of the
// adjacency.
func (g *graph) addEdges(child *Entry, parentSet map[chainhash.Hash]*Entry) {
	if len(parentSet) == 0 {
		return
	}

	cp, ok := g.parents[child.TxHash]
	if !ok {
		cp = make(map[chainhash.Hash]*Entry)
		g.parents[child.TxHash] = cp
	}

	for hash, parent := range parentSet {
		cp[hash] = parent

		pc, ok := g.children[hash]
		if !ok {
			pc = make(map[chainhash.Hash]*Entry)
			g.children[hash] = pc
		}
		pc[child.TxHash] = child
	}
}

// removeEdges severs every edge touching e, on both sides.
func (g *graph) removeEdges(e *Entry) {
	for parentHash := range g.parents[e.TxHash] {
		if pc, ok := g.children[parentHash]; ok {
			delete(pc, e.TxHash)
			if len(pc) == 0 {
				delete(g.children, parentHash)
			}
		}
	}
	delete(g.parents, e.TxHash)

	for childHash := range g.children[e.TxHash] {
		if cp, ok := g.parents[childHash]; ok {
			delete(cp, e.TxHash)
			if len(cp) == 0 {
				delete(g.parents, childHash)
			}
		}
	}
	delete(g.children, e.TxHash)
}

// parentsOf returns e's direct in-pool parents.
func (g *graph) parentsOf(hash chainhash.Hash) map[chainhash.Hash]*Entry {
	return g.parents[hash]
}

// childrenOf returns e's direct in-pool children.
func (g *graph) childrenOf(hash chainhash.Hash) map[chainhash.Hash]*Entry {
	return g.children[hash]
}

// descendants returns the full transitive descendant set of hash (not
// including hash itself), via iterative BFS over children.
func (g *graph) descendants(hash chainhash.Hash) map[chainhash.Hash]*Entry {
	out := make(map[chainhash.Hash]*Entry)
	queue := []chainhash.Hash{hash}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for childHash, child := range g.children[cur] {
			if _, seen := out[childHash]; seen {
				continue
			}
			out[childHash] = child
			queue = append(queue, childHash)
		}
	}

	return out
}
