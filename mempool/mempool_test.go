// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestAcceptBasicTransaction verifies that a well-formed transaction
// spending a mature coinbase output is accepted and becomes resident.
func TestAcceptBasicTransaction(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	tx, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)

	result, err := harness.accept(tx)
	require.NoError(t, err)
	require.NotNil(t, result.Entry)
	require.Empty(t, result.MissingParents)

	require.True(t, harness.pool.Exists(*tx.Hash()))
	require.Equal(t, 1, harness.pool.Count())
}

// TestAcceptDuplicateRejected verifies that re-submitting an already-resident
// transaction is rejected with RejectDuplicate.
func TestAcceptDuplicateRejected(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	tx, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)

	_, err = harness.accept(tx)
	require.NoError(t, err)

	_, err = harness.accept(tx)
	require.Error(t, err)

	code, ok := extractRejectCode(err)
	require.True(t, ok)
	require.Equal(t, wire.RejectDuplicate, code)
}

// TestAcceptMissingParentReturned verifies that a transaction spending an
// outpoint the pool has never seen comes back as a MissingParents result
// rather than an error, since it may simply be an orphan awaiting its
// parent.
func TestAcceptMissingParentReturned(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	parent, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)

	child, err := harness.CreateSignedTx(
		[]spendableOutput{txOutToSpendableOut(parent, 0)}, 1,
	)
	require.NoError(t, err)

	// parent was never submitted, so child's only input is unknown to the
	// pool and to the fake chain's confirmed UTXO set.
	result, err := harness.accept(child)
	require.NoError(t, err)
	require.Nil(t, result.Entry)
	require.Len(t, result.MissingParents, 1)
	require.False(t, harness.pool.Exists(*child.Hash()))
}

// TestChildAcceptedAfterParent verifies that submitting the parent first,
// then its child, results in both becoming resident with the child's
// ancestor rollup reflecting the parent.
func TestChildAcceptedAfterParent(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	parent, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(parent)
	require.NoError(t, err)

	child, err := harness.CreateSignedTx(
		[]spendableOutput{txOutToSpendableOut(parent, 0)}, 1,
	)
	require.NoError(t, err)
	result, err := harness.accept(child)
	require.NoError(t, err)
	require.NotNil(t, result.Entry)

	require.Equal(t, int64(2), result.Entry.CountWithAncestors)

	parentEntry := harness.pool.Info(*parent.Hash())
	require.NotNil(t, parentEntry)
	require.Equal(t, int64(2), parentEntry.CountWithDescendants)
}

// TestRemoveRecursiveTakesDescendants verifies that RemoveRecursive removes
// not just the named transaction but every in-pool descendant of it.
func TestRemoveRecursiveTakesDescendants(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	parent, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(parent)
	require.NoError(t, err)

	child, err := harness.CreateSignedTx(
		[]spendableOutput{txOutToSpendableOut(parent, 0)}, 1,
	)
	require.NoError(t, err)
	_, err = harness.accept(child)
	require.NoError(t, err)

	require.Equal(t, 2, harness.pool.Count())

	harness.pool.RemoveRecursive(parent, ReasonReorg)

	require.Equal(t, 0, harness.pool.Count())
	require.False(t, harness.pool.Exists(*parent.Hash()))
	require.False(t, harness.pool.Exists(*child.Hash()))
}

// TestPrioritiseAdjustsFeeDelta verifies that Prioritise changes a resident
// entry's modified fee, and that an opposite delta restores it.
func TestPrioritiseAdjustsFeeDelta(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	tx, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(tx)
	require.NoError(t, err)

	baseline := harness.pool.Info(*tx.Hash()).ModifiedFee()

	harness.pool.Prioritise(*tx.Hash(), 5000)
	require.Equal(t, baseline+5000, harness.pool.Info(*tx.Hash()).ModifiedFee())

	harness.pool.Prioritise(*tx.Hash(), -5000)
	require.Equal(t, baseline, harness.pool.Info(*tx.Hash()).ModifiedFee())
}

// TestCheckSpendReturnsSpender verifies that CheckSpend reports the resident
// transaction spending a given outpoint.
func TestCheckSpendReturnsSpender(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	tx, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(tx)
	require.NoError(t, err)

	spender := harness.pool.CheckSpend(outs[0].outPoint)
	require.NotNil(t, spender)
	require.Equal(t, tx.Hash(), spender.Hash())

	unknown := harness.pool.CheckSpend(
		wire.OutPoint{Index: 99},
	)
	require.Nil(t, unknown)
}
