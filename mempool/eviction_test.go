// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestExpireRemovesOldEntries verifies that expire evicts every entry older
// than maxAge relative to the given now, regardless of fee.
func TestExpireRemovesOldEntries(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	tx, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(tx)
	require.NoError(t, err)
	require.Equal(t, 1, harness.pool.Count())

	// Every resident entry was just created, so shifting "now" forward
	// past the expiry window makes all of them stale without needing to
	// control EntryTime directly.
	future := time.Now().Add(2 * time.Hour)

	harness.pool.mu.Lock()
	removed := harness.pool.expire(future, time.Hour)
	harness.pool.mu.Unlock()

	require.Equal(t, 1, removed)
	require.Equal(t, 0, harness.pool.Count())
}

// TestExpireTakesDescendantsWithIt verifies that expiring a parent also
// evicts its in-pool child, since the child would otherwise be orphaned.
func TestExpireTakesDescendantsWithIt(t *testing.T) {
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

	future := time.Now().Add(2 * time.Hour)
	harness.pool.mu.Lock()
	removed := harness.pool.expire(future, time.Hour)
	harness.pool.mu.Unlock()

	require.Equal(t, 2, removed)
	require.Equal(t, 0, harness.pool.Count())
}

// TestTrimToEvictsWorstPackageFirst verifies that trimTo evicts the
// lowest-feerate package before a higher-feerate one when forced to shed
// entries to fit a memory bound.
func TestTrimToEvictsWorstPackageFirst(t *testing.T) {
	t.Parallel()

	harness, outs, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	// Mint a second, independent coinbase output so an unrelated
	// transaction can be built and prioritised apart from the first.
	curHeight := harness.chain.BestHeight()
	coinbase, err := harness.CreateCoinbaseTx(curHeight+1, 1)
	require.NoError(t, err)
	harness.chain.utxos.AddTxOuts(coinbase, curHeight+1)
	extraOut := txOutToSpendableOut(coinbase, 0)

	// Advance the tip so the new coinbase output is mature for the next
	// block; the harness's original output stays mature as well.
	harness.chain.SetHeight(curHeight + int32(harness.chainParams.CoinbaseMaturity))

	txLow, err := harness.CreateSignedTx(outs, 1)
	require.NoError(t, err)
	_, err = harness.accept(txLow)
	require.NoError(t, err)

	txHigh, err := harness.CreateSignedTx([]spendableOutput{extraOut}, 1)
	require.NoError(t, err)
	_, err = harness.accept(txHigh)
	require.NoError(t, err)

	require.Equal(t, 2, harness.pool.Count())

	// Both start at zero fee; prioritising txHigh makes it strictly the
	// better package, so trimTo must take txLow first.
	harness.pool.Prioritise(*txHigh.Hash(), 10000)

	harness.pool.mu.Lock()
	limit := harness.pool.dynamicMemoryUsage() - 1
	_, trimmed := harness.pool.trimTo(limit)
	harness.pool.mu.Unlock()

	require.True(t, trimmed[*txLow.Hash()])
	require.False(t, trimmed[*txHigh.Hash()])
	require.True(t, harness.pool.Exists(*txHigh.Hash()))
	require.False(t, harness.pool.Exists(*txLow.Hash()))
}

// TestBumpRollingFeeRaisesFloorAndDecays verifies that bumpRollingFee raises
// the rolling minimum and marks a size-triggered bump, and that enough
// elapsed time with headroom below the memory limit relaxes it again.
func TestBumpRollingFeeRaisesFloorAndDecays(t *testing.T) {
	t.Parallel()

	harness, _, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	pool := harness.pool
	pool.mu.Lock()
	pool.bumpRollingFee(5000)
	require.Equal(t, float64(5000), pool.rollingMinimumFeeRate)
	require.True(t, pool.blockSinceLastRollingFeeBump)
	pool.mu.Unlock()

	now := time.Now()
	pool.mu.Lock()
	pool.decayRollingFee(now, 1000) // first call only seeds lastRollingFeeUpdate
	pool.mu.Unlock()

	later := now.Add(rollingFeeHalfLife * time.Second)
	pool.mu.Lock()
	pool.decayRollingFee(later, 1000)
	decayed := pool.rollingMinimumFeeRate
	pool.mu.Unlock()

	require.Less(t, decayed, 5000.0)
}

// TestGetMinFeeZeroWithoutRecentBump verifies that getMinFee returns zero
// when no size-triggered eviction has happened since the last sample.
func TestGetMinFeeZeroWithoutRecentBump(t *testing.T) {
	t.Parallel()

	harness, _, err := newPoolHarness(&chaincfg.MainNetParams)
	require.NoError(t, err)

	pool := harness.pool
	pool.mu.Lock()
	defer pool.mu.Unlock()

	require.Equal(t, btcutil.Amount(0), pool.getMinFee(time.Now(), 1000))
}
