// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// TxMempool is the interface other subsystems use to interact with the
// unconfirmed-transaction pool, named after the operations
// exposes to RPC and P2P collaborators. Orphan management is deliberately
// absent: a transaction with missing inputs is reported back to the caller
// via AcceptResult.MissingParents rather than tracked internally, so routing
// it to an out-of-band orphan pool (if the embedding node wants one at all)
// is the caller's responsibility.
type TxMempool interface {
	// LastUpdated returns the last time a transaction was added to or
	// removed from the pool.
	LastUpdated() time.Time

	// Count returns the number of transactions resident in the pool.
	Count() int

	// Exists returns whether txid is resident in the pool.
	Exists(txid chainhash.Hash) bool

	// HaveTransaction is an alias for Exists.
	HaveTransaction(txid chainhash.Hash) bool

	// FetchTransaction returns the resident transaction for txid, or an
	// error if it is not present.
	FetchTransaction(txid chainhash.Hash) (*btcutil.Tx, error)

	// Info returns the Entry for txid, or nil if it is not resident.
	Info(txid chainhash.Hash) *Entry

	// InfoAll returns every resident Entry, ordered by ascending
	// descendant (package) score.
	InfoAll() []*Entry

	// QueryHashes returns the txid of every resident entry.
	QueryHashes() []chainhash.Hash

	// CheckSpend returns the resident transaction spending op, if any.
	CheckSpend(op wire.OutPoint) *btcutil.Tx

	// Prioritise adjusts txid's fee delta by delta.
	Prioritise(txid chainhash.Hash, delta btcutil.Amount)

	// Accept runs the admission gate sequence against tx and, on
	// success, inserts it as a resident entry.
	Accept(tx *btcutil.Tx, validator TxValidator, isNew,
		overrideSizeBound bool) (*AcceptResult, error)

	// RemoveRecursive removes tx and every in-pool descendant of tx.
	RemoveRecursive(tx *btcutil.Tx, reason RemovalReason)

	// RemoveForBlock reconciles the pool against a block that just
	// connected at blockHeight.
	RemoveForBlock(txs []*btcutil.Tx, blockHeight int32)

	// UpdateForReorg reconciles the pool against a block that just
	// disconnected.
	UpdateForReorg(disconnected []*btcutil.Tx, validator TxValidator)

	// Expire evicts every entry older than the configured expiry age,
	// relative to now. Returns the number of entries removed.
	Expire(now time.Time) int

	// Subscribe registers callback to receive future add/remove
	// notifications.
	Subscribe(callback EventCallback)
}

var _ TxMempool = (*TxPool)(nil)
