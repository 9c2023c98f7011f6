// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestStoreInsertAndFind verifies that an inserted entry is retrievable by
// hash and claims its inputs in the spend index.
func TestStoreInsertAndFind(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	tx := createTxWithSequence([]uint32{0})
	entry := residentEntry(tx, 1000, 200, s, g)

	found, ok := s.find(*tx.Hash())
	require.True(t, ok)
	require.Same(t, entry, found)

	spender, ok := s.spentBy(tx.MsgTx().TxIn[0].PreviousOutPoint)
	require.True(t, ok)
	require.Same(t, entry, spender)
}

// TestStoreRemoveReleasesSpendIndex verifies that removing an entry drops it
// from every ordering and releases its claimed inputs.
func TestStoreRemoveReleasesSpendIndex(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	tx := createTxWithSequence([]uint32{0})
	entry := residentEntry(tx, 1000, 200, s, g)

	s.remove(entry)

	_, ok := s.find(*tx.Hash())
	require.False(t, ok)

	_, ok = s.spentBy(tx.MsgTx().TxIn[0].PreviousOutPoint)
	require.False(t, ok)

	require.Equal(t, 0, s.len())
}

// TestStoreWorstPackageReturnsLowestDescendantScore verifies that
// worstPackage picks the entry with the lowest package feerate, not merely
// the first one inserted.
func TestStoreWorstPackageReturnsLowestDescendantScore(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	low := createTxWithSequence([]uint32{0})
	lowEntry := residentEntry(low, 100, 200, s, g)

	high := createTxWithSequence([]uint32{1})
	highEntry := residentEntry(high, 10000, 200, s, g)

	worst, ok := s.worstPackage()
	require.True(t, ok)
	require.Equal(t, lowEntry.TxHash, worst.TxHash)
	require.NotEqual(t, highEntry.TxHash, worst.TxHash)
}

// TestStoreOldestBeforeOrdersByEntryTime verifies that oldestBefore returns
// only entries strictly older than the cutoff, in ascending entry-time
// order.
func TestStoreOldestBeforeOrdersByEntryTime(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	older := createTxWithSequence([]uint32{0})
	olderEntry := &Entry{
		Tx: older, TxHash: *older.Hash(), VirtualSize: 200,
		BaseFee: 1000, EntryTime: time.Now().Add(-time.Hour),
	}
	s.insert(olderEntry)
	g.addEdges(olderEntry, findParents(olderEntry, s))

	newer := createTxWithSequence([]uint32{1})
	newerEntry := &Entry{
		Tx: newer, TxHash: *newer.Hash(), VirtualSize: 200,
		BaseFee: 1000, EntryTime: time.Now(),
	}
	s.insert(newerEntry)
	g.addEdges(newerEntry, findParents(newerEntry, s))

	cutoff := time.Now().Add(-30 * time.Minute)
	out := s.oldestBefore(cutoff.UnixNano())

	require.Len(t, out, 1)
	require.Equal(t, olderEntry.TxHash, out[0].TxHash)
}

// TestStoreReindexDescScoreKeepsOrderingConsistent verifies that
// reindexDescScore correctly moves an entry to its new position after its
// descendant rollup changes, rather than leaving a stale tree node behind.
func TestStoreReindexDescScoreKeepsOrderingConsistent(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	tx := createTxWithSequence([]uint32{0})
	entry := residentEntry(tx, 1000, 200, s, g)

	oldKey := s.descScoreKey(entry)
	entry.ModFeesWithDescendants += 100000
	s.reindexDescScore(entry, oldKey)

	ordered := s.byDescendantScoreAscending()
	require.Len(t, ordered, 1)
	require.Equal(t, entry.TxHash, ordered[0].TxHash)
}
