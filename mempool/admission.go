// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// AcceptResult is returned by a successful call to Accept. Exactly one of
// Entry or MissingParents is populated: a non-nil Entry means tx is now
// resident; a non-empty MissingParents means tx looks like an orphan and the
// caller may route it to an out-of-band orphan pool; this package does not
// manage orphans itself.
type AcceptResult struct {
	Entry          *Entry
	MissingParents []*chainhash.Hash
}

// Accept runs the full admission gate sequence against tx and, on success,
// inserts it as a resident Entry. isNew distinguishes a
// freshly relayed transaction from one being re-admitted during reorg
// reconciliation (which relaxes the relay-fee/priority gate and overrides
// the size bound). overrideSizeBound skips gate 15's post-insertion trim,
// used by the same reorg path.
func (p *TxPool) Accept(
	tx *btcutil.Tx, validator TxValidator, isNew, overrideSizeBound bool,
) (*AcceptResult, error) {

	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.checkInvariants()

	txHash := tx.Hash()

	// Gate 1: shape checks.
	if err := validator.ValidateSanity(tx); err != nil {
		return nil, err
	}
	if blockchain.IsCoinBase(tx) {
		return nil, txRuleError(wire.RejectInvalid, fmt.Sprintf(
			"transaction %v is an individual coinbase", txHash))
	}

	// Gate 2: policy flags.
	if err := p.policy.ValidateSegWitDeployment(tx); err != nil {
		return nil, err
	}
	bestHeight := p.cfg.BestHeight()
	nextBlockHeight := bestHeight + 1
	medianTimePast := p.cfg.MedianTimePast()
	if err := CheckTransactionStandard(
		tx, nextBlockHeight, medianTimePast,
		p.cfg.Policy.MinRelayTxFee, p.cfg.Policy.MaxTxVersion,
	); err != nil {
		return nil, err
	}

	// Gate 3: duplicate.
	if p.store.len() > 0 {
		if _, exists := p.store.find(*txHash); exists {
			return nil, txRuleError(wire.RejectDuplicate, fmt.Sprintf(
				"already have transaction in mempool %v", txHash))
		}
	}

	// Gate 4: conflict detection.
	conflicts := make(map[chainhash.Hash]*Entry)
	for _, txIn := range tx.MsgTx().TxIn {
		conflict, ok := p.store.spentBy(txIn.PreviousOutPoint)
		if !ok {
			continue
		}

		optedOut := true
		for _, conflictIn := range conflict.Tx.MsgTx().TxIn {
			if conflictIn.Sequence <= MaxRBFSequence {
				optedOut = false
				break
			}
		}
		if optedOut {
			return nil, txRuleError(wire.RejectDuplicate, fmt.Sprintf(
				"output %v already spent by transaction %v in the "+
					"memory pool", txIn.PreviousOutPoint, conflict.TxHash))
		}

		conflicts[conflict.TxHash] = conflict
	}
	isReplacement := len(conflicts) > 0

	// Gate 5: input presence via the coin view overlay.
	utxoView, err := p.fetchInputUtxos(tx)
	if err != nil {
		if cerr, ok := err.(blockchain.RuleError); ok {
			return nil, chainRuleError(cerr)
		}
		return nil, err
	}
	missingParents, err := validator.ValidateUtxoAvailability(tx, utxoView)
	if err != nil {
		return nil, err
	}
	if len(missingParents) > 0 {
		return &AcceptResult{MissingParents: missingParents}, nil
	}

	txFee, err := validator.ValidateInputs(tx, nextBlockHeight, utxoView)
	if err != nil {
		return nil, err
	}

	// Gate 6: sequence-lock check (BIP68).
	if err := validator.ValidateSequenceLocks(
		tx, utxoView, nextBlockHeight, medianTimePast,
	); err != nil {
		return nil, err
	}

	// Gate 7: non-standard inputs.
	if p.cfg.Policy.RequireStandard {
		if err := checkInputsStandard(tx, utxoView); err != nil {
			return nil, err
		}
	}

	// Gate 8: sigops bound.
	if err := CheckTransactionSigCost(
		tx, utxoView, p.cfg.Policy.MaxSigOpCostPerTx,
	); err != nil {
		return nil, err
	}

	// Gate 9: fee floors.
	txVSize := GetTxVirtualSize(tx)
	modifiedFee := txFee + int64(p.deltas[*txHash])

	if err := p.policy.ValidateRelayFee(
		tx, modifiedFee, txVSize, utxoView, nextBlockHeight, isNew,
	); err != nil {
		return nil, err
	}
	minMempoolFee := int64(p.getMinFee(
		time.Now(), p.cfg.MaxMempoolBytes,
	))
	if minMempoolFee > 0 && modifiedFee < calcMinRequiredTxRelayFee(
		txVSize, btcutil.Amount(minMempoolFee),
	) {
		return nil, txRuleError(wire.RejectInsufficientFee, fmt.Sprintf(
			"transaction %v has fee below the current mempool minimum",
			txHash))
	}

	spendsCoinbase := false
	for _, txIn := range tx.MsgTx().TxIn {
		entry := utxoView.LookupEntry(txIn.PreviousOutPoint)
		if entry != nil && entry.IsCoinBase() {
			spendsCoinbase = true
			break
		}
	}

	sigOpCost, err := blockchain.GetSigOpCost(tx, false, utxoView, true, true)
	if err != nil {
		if cerr, ok := err.(blockchain.RuleError); ok {
			return nil, chainRuleError(cerr)
		}
		return nil, err
	}

	entry := &Entry{
		Tx:             tx,
		TxHash:         *txHash,
		WitnessHash:    tx.MsgTx().WitnessHash(),
		VirtualSize:    txVSize,
		Weight:         blockchain.GetTransactionWeight(tx),
		SigOpCost:      int64(sigOpCost),
		EntryTime:      time.Now(),
		EntryHeight:    nextBlockHeight - 1,
		SpendsCoinbase: spendsCoinbase,
		BaseFee:        btcutil.Amount(txFee),
		FeeDelta:       p.deltas[*txHash],
	}

	// Gate 10: ancestor/descendant closure.
	ancestors, err := computeAncestors(
		entry, p.cfg.Limits, true, p.store, p.graph,
	)
	if err != nil {
		return nil, err
	}

	// Gate 11: replacement economics.
	if isReplacement {
		if !p.policy.SignalsReplacement(tx, p.store, p.graph) {
			return nil, txRuleError(wire.RejectDuplicate, fmt.Sprintf(
				"transaction %v spends conflicting transactions without "+
					"signaling BIP 125 replacement", txHash))
		}

		descUnion := make(map[chainhash.Hash]struct{})
		for h := range conflicts {
			descUnion[h] = struct{}{}
			for d := range p.graph.descendants(h) {
				descUnion[d] = struct{}{}
			}
		}
		if len(descUnion) > p.cfg.Policy.MaxReplacementEvictions {
			return nil, fmt.Errorf("%w: %d potential replacements",
				ErrTooManyEvictions, len(descUnion))
		}

		if err := p.policy.ValidateReplacement(
			tx, modifiedFee, txVSize, conflicts, p.cfg.IncrementalRelayFee,
			p.store, p.graph,
		); err != nil {
			return nil, err
		}

		for h := range conflicts {
			if _, inAncestors := ancestors[h]; inAncestors {
				return nil, fmt.Errorf("%w: %v", ErrConflictsWithAncestor, h)
			}
		}
	}

	// Gate 12-13: script checks, delegated to the external verifier.
	if err := validator.ValidateScripts(tx, utxoView); err != nil {
		return nil, err
	}

	// Gate 14: remove displaced conflicts, insert the new entry.
	if isReplacement {
		var removalSet []*Entry
		seen := make(map[chainhash.Hash]bool)
		for h, c := range conflicts {
			if !seen[h] {
				removalSet = append(removalSet, c)
				seen[h] = true
			}
			for dh, d := range p.graph.descendants(h) {
				if !seen[dh] {
					removalSet = append(removalSet, d)
					seen[dh] = true
				}
			}
		}
		p.removeEntries(removalSet, ReasonReplaced, false)
	}

	p.insertAccepted(entry, ancestors)

	validForFeeEstimation := false
	if p.cfg.FeeEstimator != nil {
		p.cfg.FeeEstimator.ProcessTransaction(entry, validForFeeEstimation)
	}

	// Gate 15: trim to the configured memory bound.
	if !overrideSizeBound {
		_, trimmedSelf := p.trimTo(p.cfg.MaxMempoolBytes)
		if trimmedSelf[*txHash] {
			return nil, fmt.Errorf("%w: %v", ErrMempoolFull, txHash)
		}
	}

	return &AcceptResult{Entry: entry}, nil
}
