// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// fakeChain backs the harness's chain-dependent Config callbacks, giving
// tests a controllable height, median time past, and UTXO set without a real
// block database.
type fakeChain struct {
	sync.RWMutex
	utxos          *blockchain.UtxoViewpoint
	currentHeight  int32
	medianTimePast time.Time
}

func (s *fakeChain) FetchUtxoView(tx *btcutil.Tx) (*blockchain.UtxoViewpoint, error) {
	s.RLock()
	defer s.RUnlock()

	view := blockchain.NewUtxoViewpoint()

	prevOut := wire.OutPoint{Hash: *tx.Hash()}
	for idx := range tx.MsgTx().TxOut {
		prevOut.Index = uint32(idx)
		if entry := s.utxos.LookupEntry(prevOut); entry != nil {
			view.Entries()[prevOut] = entry.Clone()
		}
	}

	// An input missing from the fake UTXO set is recorded as a nil entry,
	// as a real chain view records it, so ValidateUtxoAvailability can
	// report it as a missing parent.
	for _, txIn := range tx.MsgTx().TxIn {
		entry := s.utxos.LookupEntry(txIn.PreviousOutPoint)
		if entry != nil {
			entry = entry.Clone()
		}
		view.Entries()[txIn.PreviousOutPoint] = entry
	}

	return view, nil
}

func (s *fakeChain) BestHeight() int32 {
	s.RLock()
	defer s.RUnlock()
	return s.currentHeight
}

func (s *fakeChain) SetHeight(height int32) {
	s.Lock()
	defer s.Unlock()
	s.currentHeight = height
}

func (s *fakeChain) MedianTimePast() time.Time {
	s.RLock()
	defer s.RUnlock()
	return s.medianTimePast
}

func (s *fakeChain) SetMedianTimePast(mtp time.Time) {
	s.Lock()
	defer s.Unlock()
	s.medianTimePast = mtp
}

func (s *fakeChain) CalcSequenceLock(tx *btcutil.Tx,
	view *blockchain.UtxoViewpoint) (*blockchain.SequenceLock, error) {

	return &blockchain.SequenceLock{Seconds: -1, BlockHeight: -1}, nil
}

// spendableOutput names a single output a harness-generated transaction can
// still spend from.
type spendableOutput struct {
	outPoint wire.OutPoint
	amount   btcutil.Amount
}

func txOutToSpendableOut(tx *btcutil.Tx, index uint32) spendableOutput {
	return spendableOutput{
		outPoint: wire.OutPoint{Hash: *tx.Hash(), Index: index},
		amount:   btcutil.Amount(tx.MsgTx().TxOut[index].Value),
	}
}

// poolHarness bundles a TxPool with a fake chain and a signing key, so tests
// can build, sign, and submit realistic transactions without a real wallet
// or block database.
type poolHarness struct {
	signKey     *btcec.PrivateKey
	payScript   []byte
	chainParams *chaincfg.Params

	chain     *fakeChain
	validator TxValidator
	pool      *TxPool
}

// CreateCoinbaseTx returns a coinbase transaction paying numOutputs ways to
// the harness's payment script, for the given block height's subsidy.
func (p *poolHarness) CreateCoinbaseTx(blockHeight int32, numOutputs uint32) (*btcutil.Tx, error) {
	coinbaseScript, err := txscript.NewScriptBuilder().
		AddInt64(int64(blockHeight)).AddInt64(0).Script()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  coinbaseScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})

	totalInput := blockchain.CalcBlockSubsidy(blockHeight, p.chainParams)
	amountPerOutput := totalInput / int64(numOutputs)
	remainder := totalInput - amountPerOutput*int64(numOutputs)
	for i := uint32(0); i < numOutputs; i++ {
		amount := amountPerOutput
		if i == numOutputs-1 {
			amount += remainder
		}
		tx.AddTxOut(&wire.TxOut{PkScript: p.payScript, Value: amount})
	}

	return btcutil.NewTx(tx), nil
}

// CreateSignedTx spends inputs, evenly splitting their total value across
// numOutputs outputs paid to the harness's script, and signs every input.
func (p *poolHarness) CreateSignedTx(inputs []spendableOutput, numOutputs uint32) (*btcutil.Tx, error) {
	var totalInput btcutil.Amount
	for _, in := range inputs {
		totalInput += in.amount
	}
	amountPerOutput := int64(totalInput) / int64(numOutputs)
	remainder := int64(totalInput) - amountPerOutput*int64(numOutputs)

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.outPoint,
			Sequence:         wire.MaxTxInSequenceNum,
		})
	}
	for i := uint32(0); i < numOutputs; i++ {
		amount := amountPerOutput
		if i == numOutputs-1 {
			amount += remainder
		}
		tx.AddTxOut(&wire.TxOut{PkScript: p.payScript, Value: amount})
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(
			tx, i, p.payScript, txscript.SigHashAll, p.signKey, true,
		)
		if err != nil {
			return nil, err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	return btcutil.NewTx(tx), nil
}

// CreateSignedTxWithSequence behaves like CreateSignedTx but sets every
// input's sequence number, for exercising BIP125 signaling and BIP68
// sequence-lock checks.
func (p *poolHarness) CreateSignedTxWithSequence(
	inputs []spendableOutput, numOutputs uint32, sequence uint32,
) (*btcutil.Tx, error) {

	var totalInput btcutil.Amount
	for _, in := range inputs {
		totalInput += in.amount
	}
	amountPerOutput := int64(totalInput) / int64(numOutputs)
	remainder := int64(totalInput) - amountPerOutput*int64(numOutputs)

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, in := range inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.outPoint,
			Sequence:         sequence,
		})
	}
	for i := uint32(0); i < numOutputs; i++ {
		amount := amountPerOutput
		if i == numOutputs-1 {
			amount += remainder
		}
		tx.AddTxOut(&wire.TxOut{PkScript: p.payScript, Value: amount})
	}

	for i := range tx.TxIn {
		sigScript, err := txscript.SignatureScript(
			tx, i, p.payScript, txscript.SigHashAll, p.signKey, true,
		)
		if err != nil {
			return nil, err
		}
		tx.TxIn[i].SignatureScript = sigScript
	}

	return btcutil.NewTx(tx), nil
}

// newPoolHarness returns a harness with a fake chain pre-populated with a
// single, already-mature coinbase output the caller can build transactions
// from.
func newPoolHarness(chainParams *chaincfg.Params) (*poolHarness, []spendableOutput, error) {
	keyBytes, err := hex.DecodeString(
		"700868df1838811ffbdf918fb482c1f7ead62db4b97bd7012c23e726485e577d")
	if err != nil {
		return nil, nil, err
	}
	signKey, signPub := btcec.PrivKeyFromBytes(keyBytes)

	payAddr, err := btcutil.NewAddressPubKey(
		signPub.SerializeCompressed(), chainParams,
	)
	if err != nil {
		return nil, nil, err
	}
	payScript, err := txscript.PayToAddrScript(payAddr.AddressPubKeyHash())
	if err != nil {
		return nil, nil, err
	}

	chain := &fakeChain{utxos: blockchain.NewUtxoViewpoint()}

	harness := &poolHarness{
		signKey:     signKey,
		payScript:   payScript,
		chainParams: chainParams,
		chain:       chain,
	}

	validator := NewStandardTxValidator(TxValidatorConfig{
		CalcSequenceLock: chain.CalcSequenceLock,
		ChainParams:      chainParams,
	})
	harness.validator = validator

	policyCfg := DefaultPolicyConfig()
	policyCfg.MinRelayTxFee = 1000
	policyCfg.DisableRelayPriority = true
	policyCfg.MaxTxVersion = 1
	policyCfg.ChainParams = chainParams
	policyCfg.BestHeight = chain.BestHeight
	policyCfg.IsDeploymentActive = func(uint32) (bool, error) { return true, nil }

	harness.pool = NewTxPool(Config{
		ChainParams:      chainParams,
		Policy:           policyCfg,
		Limits:           DefaultLimits(),
		MaxMempoolBytes:  300 * 1000 * 1000,
		MempoolExpiry:    14 * 24 * time.Hour,
		FetchUtxoView:    chain.FetchUtxoView,
		BestHeight:       chain.BestHeight,
		MedianTimePast:   chain.MedianTimePast,
		CalcSequenceLock: chain.CalcSequenceLock,
	})

	numOutputs := uint32(1)
	curHeight := chain.BestHeight()
	coinbase, err := harness.CreateCoinbaseTx(curHeight+1, numOutputs)
	if err != nil {
		return nil, nil, err
	}
	chain.utxos.AddTxOuts(coinbase, curHeight+1)

	outputs := make([]spendableOutput, 0, numOutputs)
	for i := uint32(0); i < numOutputs; i++ {
		outputs = append(outputs, txOutToSpendableOut(coinbase, i))
	}

	chain.SetHeight(int32(chainParams.CoinbaseMaturity) + curHeight)
	chain.SetMedianTimePast(time.Now())

	return harness, outputs, nil
}

// accept is a convenience wrapper around the harness's pool and validator for
// the common case of submitting a freshly-relayed transaction.
func (p *poolHarness) accept(tx *btcutil.Tx) (*AcceptResult, error) {
	return p.pool.Accept(tx, p.validator, true, false)
}
