// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/mock"
)

// MockTxMempool is a mock implementation of the TxMempool interface.
type MockTxMempool struct {
	mock.Mock
}

// Ensure the MockTxMempool implements the TxMempool interface.
var _ TxMempool = (*MockTxMempool)(nil)

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
func (m *MockTxMempool) LastUpdated() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}

// Count returns the number of transactions resident in the pool.
func (m *MockTxMempool) Count() int {
	args := m.Called()
	return args.Get(0).(int)
}

// Exists returns whether txid is resident in the pool.
func (m *MockTxMempool) Exists(txid chainhash.Hash) bool {
	args := m.Called(txid)
	return args.Get(0).(bool)
}

// HaveTransaction is an alias for Exists.
func (m *MockTxMempool) HaveTransaction(txid chainhash.Hash) bool {
	args := m.Called(txid)
	return args.Get(0).(bool)
}

// FetchTransaction returns the resident transaction for txid, or an error if
// it is not present.
func (m *MockTxMempool) FetchTransaction(
	txid chainhash.Hash) (*btcutil.Tx, error) {

	args := m.Called(txid)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*btcutil.Tx), args.Error(1)
}

// Info returns the Entry for txid, or nil if it is not resident.
func (m *MockTxMempool) Info(txid chainhash.Hash) *Entry {
	args := m.Called(txid)

	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*Entry)
}

// InfoAll returns every resident Entry, ordered by ascending descendant
// (package) score.
func (m *MockTxMempool) InfoAll() []*Entry {
	args := m.Called()
	return args.Get(0).([]*Entry)
}

// QueryHashes returns the txid of every resident entry.
func (m *MockTxMempool) QueryHashes() []chainhash.Hash {
	args := m.Called()
	return args.Get(0).([]chainhash.Hash)
}

// CheckSpend checks whether the passed outpoint is already spent by a
// transaction in the mempool. If that's the case the spending transaction
// will be returned, otherwise nil will be returned.
func (m *MockTxMempool) CheckSpend(op wire.OutPoint) *btcutil.Tx {
	args := m.Called(op)

	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*btcutil.Tx)
}

// Prioritise adjusts txid's fee delta by delta.
func (m *MockTxMempool) Prioritise(txid chainhash.Hash, delta btcutil.Amount) {
	m.Called(txid, delta)
}

// Accept runs the admission gate sequence against tx and, on success,
// inserts it as a resident entry.
func (m *MockTxMempool) Accept(tx *btcutil.Tx, validator TxValidator, isNew,
	overrideSizeBound bool) (*AcceptResult, error) {

	args := m.Called(tx, validator, isNew, overrideSizeBound)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AcceptResult), args.Error(1)
}

// RemoveRecursive removes tx and every in-pool descendant of tx.
func (m *MockTxMempool) RemoveRecursive(tx *btcutil.Tx, reason RemovalReason) {
	m.Called(tx, reason)
}

// RemoveForBlock reconciles the pool against a block that just connected at
// blockHeight.
func (m *MockTxMempool) RemoveForBlock(txs []*btcutil.Tx, blockHeight int32) {
	m.Called(txs, blockHeight)
}

// UpdateForReorg reconciles the pool against a block that just disconnected.
func (m *MockTxMempool) UpdateForReorg(disconnected []*btcutil.Tx,
	validator TxValidator) {

	m.Called(disconnected, validator)
}

// Expire evicts every entry older than the configured expiry age, relative
// to now. Returns the number of entries removed.
func (m *MockTxMempool) Expire(now time.Time) int {
	args := m.Called(now)
	return args.Get(0).(int)
}

// Subscribe registers callback to receive future add/remove notifications.
func (m *MockTxMempool) Subscribe(callback EventCallback) {
	m.Called(callback)
}
