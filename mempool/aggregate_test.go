// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestComputeAncestorsRejectsTooManyAncestors verifies that admitting a
// transaction whose unconfirmed parent count exceeds the configured limit
// fails with ErrTooManyAncestors before any rollup is touched.
func TestComputeAncestorsRejectsTooManyAncestors(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	parentA := createTxWithSequence([]uint32{0})
	parentB := createTxWithSequence([]uint32{1})
	residentEntry(parentA, 1000, 200, s, g)
	residentEntry(parentB, 1000, 200, s, g)

	child := createTxWithInputs([]wire.OutPoint{
		{Hash: *parentA.Hash(), Index: 0},
		{Hash: *parentB.Hash(), Index: 0},
	})
	entry := &Entry{
		Tx:          child,
		TxHash:      *child.Hash(),
		VirtualSize: 200,
		BaseFee:     1000,
	}

	limits := Limits{MaxAncestorCount: 1, MaxAncestorSize: 1 << 20, MaxDescendantCount: 25, MaxDescendantSize: 1 << 20}
	_, err := computeAncestors(entry, limits, true, s, g)
	require.ErrorIs(t, err, ErrTooManyAncestors)
}

// TestComputeAncestorsRejectsTooManyDescendants verifies that admitting a
// child whose new parent is already at its descendant-count limit fails
// with ErrTooManyDescendants.
func TestComputeAncestorsRejectsTooManyDescendants(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	parent := createTxWithSequence([]uint32{0})
	parentEntry := residentEntry(parent, 1000, 200, s, g)
	parentEntry.CountWithDescendants = 25

	child := createTxWithInputs([]wire.OutPoint{{Hash: *parent.Hash(), Index: 0}})
	entry := &Entry{
		Tx:          child,
		TxHash:      *child.Hash(),
		VirtualSize: 200,
		BaseFee:     1000,
	}

	limits := Limits{MaxAncestorCount: 25, MaxAncestorSize: 1 << 20, MaxDescendantCount: 25, MaxDescendantSize: 1 << 20}
	_, err := computeAncestors(entry, limits, true, s, g)
	require.ErrorIs(t, err, ErrTooManyDescendants)
}

// TestComputeAncestorsWalksMultipleGenerations verifies that the ancestor
// closure includes a grandparent reached only through a parent.
func TestComputeAncestorsWalksMultipleGenerations(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	grandparent := createTxWithSequence([]uint32{0})
	residentEntry(grandparent, 1000, 200, s, g)

	parent := createTxWithInputs([]wire.OutPoint{{Hash: *grandparent.Hash(), Index: 0}})
	residentEntry(parent, 1000, 200, s, g)

	child := createTxWithInputs([]wire.OutPoint{{Hash: *parent.Hash(), Index: 0}})
	entry := &Entry{
		Tx:          child,
		TxHash:      *child.Hash(),
		VirtualSize: 200,
		BaseFee:     1000,
	}

	limits := DefaultLimits()
	ancestors, err := computeAncestors(entry, limits, true, s, g)
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	require.Contains(t, ancestors, *grandparent.Hash())
	require.Contains(t, ancestors, *parent.Hash())
}

// TestApplyInsertUpdatesBothRollups verifies that inserting a child updates
// its own ancestor rollup and its parent's descendant rollup in the same
// call, matching applyInsert's documented contract.
func TestApplyInsertUpdatesBothRollups(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	parent := createTxWithSequence([]uint32{0})
	parentEntry := residentEntry(parent, 1000, 200, s, g)

	child := createTxWithInputs([]wire.OutPoint{{Hash: *parent.Hash(), Index: 0}})
	childEntry := &Entry{
		Tx:          child,
		TxHash:      *child.Hash(),
		VirtualSize: 300,
		BaseFee:     2000,
	}

	ancestors := findParents(childEntry, s)
	applyInsert(childEntry, ancestors, s, g)
	s.insert(childEntry)

	require.Equal(t, int64(2), childEntry.CountWithAncestors)
	require.Equal(t, int64(500), childEntry.SizeWithAncestors)
	require.Equal(t, int64(2), parentEntry.CountWithDescendants)
	require.Equal(t, int64(500), parentEntry.SizeWithDescendants)
}

// TestApplyRemoveReversesRollups verifies that removing a child restores its
// parent's descendant rollup to what it was before the child was inserted.
func TestApplyRemoveReversesRollups(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	parent := createTxWithSequence([]uint32{0})
	parentEntry := residentEntry(parent, 1000, 200, s, g)

	child := createTxWithInputs([]wire.OutPoint{{Hash: *parent.Hash(), Index: 0}})
	childEntry := &Entry{
		Tx:          child,
		TxHash:      *child.Hash(),
		VirtualSize: 300,
		BaseFee:     2000,
	}
	ancestors := findParents(childEntry, s)
	applyInsert(childEntry, ancestors, s, g)
	s.insert(childEntry)

	require.Equal(t, int64(2), parentEntry.CountWithDescendants)

	applyRemove([]*Entry{childEntry}, false, s, g)
	s.remove(childEntry)

	require.Equal(t, int64(1), parentEntry.CountWithDescendants)
	require.Equal(t, parentEntry.VirtualSize, parentEntry.SizeWithDescendants)
}

// TestApplyRemoveBatchDecrementsSurvivingGrandparent verifies that removing
// a multi-generation batch [A, B] (A is B's parent) correctly decrements a
// surviving grandparent GP's descendant rollup for BOTH A's and B's
// contribution, even though the A-B edge is severed as part of the same
// call. A per-entry interleaving of decrement-then-sever would lose B's
// contribution to GP, since B's ancestor walk would no longer be able to
// reach GP through the already-severed A-B edge.
func TestApplyRemoveBatchDecrementsSurvivingGrandparent(t *testing.T) {
	t.Parallel()

	s := newStore()
	g := newGraph()

	gp := createTxWithSequence([]uint32{0})
	gpEntry := residentEntry(gp, 1000, 200, s, g)

	a := createTxWithInputs([]wire.OutPoint{{Hash: *gp.Hash(), Index: 0}})
	aEntry := &Entry{Tx: a, TxHash: *a.Hash(), VirtualSize: 250, BaseFee: 1000}
	applyInsert(aEntry, findParents(aEntry, s), s, g)
	s.insert(aEntry)

	b := createTxWithInputs([]wire.OutPoint{{Hash: *a.Hash(), Index: 0}})
	bEntry := &Entry{Tx: b, TxHash: *b.Hash(), VirtualSize: 300, BaseFee: 1000}
	bAncestors, err := computeAncestors(bEntry, DefaultLimits(), true, s, g)
	require.NoError(t, err)
	applyInsert(bEntry, bAncestors, s, g)
	s.insert(bEntry)

	// GP now carries itself plus A and B as descendants.
	require.Equal(t, int64(3), gpEntry.CountWithDescendants)
	require.Equal(t, gpEntry.VirtualSize+250+300, gpEntry.SizeWithDescendants)

	applyRemove([]*Entry{aEntry, bEntry}, false, s, g)
	s.remove(aEntry)
	s.remove(bEntry)

	require.Equal(t, int64(1), gpEntry.CountWithDescendants)
	require.Equal(t, gpEntry.VirtualSize, gpEntry.SizeWithDescendants)
	require.Equal(t, gpEntry.ModifiedFee(), gpEntry.ModFeesWithDescendants)
}
