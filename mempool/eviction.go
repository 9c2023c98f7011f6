// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"math"
	"reflect"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// rollingFeeHalfLife is the base half-life, in seconds, of the rolling
// minimum feerate's exponential decay — ten minutes, matching Bitcoin
// Core's default. The effective half-life shortens as pool usage falls
// below fractions of its configured bound; see decayRollingFee.
const rollingFeeHalfLife = 60 * 10

// Expire evicts every entry older than the configured MempoolExpiry,
// relative to now. It is a maintenance operation, not part of the admission
// or reorg paths, and callers are expected to invoke it periodically (the
// source runs it once per incoming block). Returns the number of entries
// removed.
func (p *TxPool) Expire(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.checkInvariants()

	return p.expire(now, p.cfg.MempoolExpiry)
}

// expire evicts every entry with an entry time older than now.Add(-maxAge).
// Descendants of an expiring entry are evicted with it, with the same
// reason, since an expired ancestor cannot be mined without its descendants
// becoming orphans. Returns the number of entries removed.
func (p *TxPool) expire(now time.Time, maxAge time.Duration) int {
	cutoff := now.Add(-maxAge)
	stale := p.store.oldestBefore(cutoff.UnixNano())
	if len(stale) == 0 {
		return 0
	}

	removed := make(map[chainhash.Hash]struct{})
	var all []*Entry
	for _, e := range stale {
		if _, already := removed[e.TxHash]; already {
			continue
		}
		all = append(all, e)
		removed[e.TxHash] = struct{}{}
		for _, d := range p.graph.descendants(e.TxHash) {
			if _, already := removed[d.TxHash]; !already {
				all = append(all, d)
				removed[d.TxHash] = struct{}{}
			}
		}
	}

	p.removeEntries(all, ReasonExpiry, false)
	return len(all)
}

// trimTo evicts, worst package first, until the pool's dynamic memory usage
// is at or below limit. It returns the
// outpoints of evicted entries that no longer have any spender left in the
// pool, so the caller can ask the UTXO store collaborator to uncache them,
// and the set of every evicted txid (used by the admission controller to
// reject a transaction that was immediately trimmed back out).
func (p *TxPool) trimTo(limit int64) (droppedOutpoints []wire.OutPoint, trimmedSelf map[chainhash.Hash]bool) {
	trimmedSelf = make(map[chainhash.Hash]bool)

	for p.dynamicMemoryUsage() > limit && p.store.len() > 0 {
		worst, ok := p.store.worstPackage()
		if !ok {
			break
		}

		descendants := p.graph.descendants(worst.TxHash)
		set := make([]*Entry, 0, len(descendants)+1)
		set = append(set, worst)
		for _, d := range descendants {
			set = append(set, d)
		}

		removedRate := worst.DescendantFeeRate() + int64(p.cfg.IncrementalRelayFee)
		p.bumpRollingFee(removedRate)

		for _, e := range set {
			trimmedSelf[e.TxHash] = true
			for _, txIn := range e.Tx.MsgTx().TxIn {
				droppedOutpoints = append(droppedOutpoints, txIn.PreviousOutPoint)
			}
		}

		p.removeEntries(set, ReasonSizeLimit, false)
	}

	// Any outpoint still spent by a survivor shouldn't be uncached.
	kept := droppedOutpoints[:0]
	for _, op := range droppedOutpoints {
		if _, stillSpent := p.store.spentBy(op); !stillSpent {
			kept = append(kept, op)
		}
	}

	return kept, trimmedSelf
}

// dynamicMemoryUsage returns the pool's cached inner-usage counter, kept
// incrementally by insert/remove rather than recomputed on every call —
// see memusage.go's dynamicMemUsage, which computes the per-entry
// contribution this counter accumulates.
func (p *TxPool) dynamicMemoryUsage() int64 {
	return p.cachedInnerUsage
}

func entryMemUsage(e *Entry) int64 {
	return int64(_dynamicMemUsage(reflect.ValueOf(e).Elem(), false, 0))
}

// bumpRollingFee lifts the rolling minimum feerate to at least rate, and
// records that a size-triggered bump has happened since the last decay
// sample — mirroring trackPackageRemoved in
// original_source/txmempool.cpp.
func (p *TxPool) bumpRollingFee(rate int64) {
	if float64(rate) > p.rollingMinimumFeeRate {
		p.rollingMinimumFeeRate = float64(rate)
		p.blockSinceLastRollingFeeBump = true
	}
}

// decayRollingFee applies exponential decay to the rolling minimum: the
// half-life shortens by a factor of 4 when usage is below a quarter of
// limit, and by a factor of 2 when below half of limit, so the rolling
// floor relaxes faster while the pool has headroom. The rate snaps to zero
// once it falls under half the incremental relay feerate, since a rate that
// small no longer meaningfully discourages anything.
func (p *TxPool) decayRollingFee(now time.Time, limit int64) {
	if p.lastRollingFeeUpdate.IsZero() {
		p.lastRollingFeeUpdate = now
		return
	}

	elapsed := now.Sub(p.lastRollingFeeUpdate).Seconds()
	if elapsed < 1 {
		return
	}

	halfLife := float64(rollingFeeHalfLife)
	usage := p.dynamicMemoryUsage()
	switch {
	case usage < limit/4:
		halfLife /= 4
	case usage < limit/2:
		halfLife /= 2
	}

	p.rollingMinimumFeeRate *= math.Pow(2, -elapsed/halfLife)
	p.lastRollingFeeUpdate = now

	if p.rollingMinimumFeeRate < float64(p.cfg.IncrementalRelayFee)/2 {
		p.rollingMinimumFeeRate = 0
		p.blockSinceLastRollingFeeBump = false
	}
}

// getMinFee returns the current mempool fee floor the admission fee gate
// enforces: the decayed rolling minimum, floored at the incremental relay
// feerate, or zero when no size-triggered eviction has bumped the rate yet
// or the decayed rate has since snapped to zero.
func (p *TxPool) getMinFee(now time.Time, limit int64) btcutil.Amount {
	p.decayRollingFee(now, limit)

	if !p.blockSinceLastRollingFeeBump || p.rollingMinimumFeeRate == 0 {
		return 0
	}

	min := p.rollingMinimumFeeRate
	if float64(p.cfg.IncrementalRelayFee) > min {
		min = float64(p.cfg.IncrementalRelayFee)
	}
	return btcutil.Amount(min)
}
