// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mining"
)

// fetchInputUtxos builds a read-through view over tx's inputs: it fetches
// confirmed UTXO data from the backing store collaborator, then, for each
// input the base view does not hold as an unspent entry, adds the output of
// the resident mempool transaction it spends, if there is one. Overlaid
// outputs carry the sentinel mempool height (mining.UnminedHeight) rather
// than a real confirmation height. An input the base view already holds
// unspent is left as the base view has it. The overlay never mutates the
// mempool.
func (p *TxPool) fetchInputUtxos(tx *btcutil.Tx) (*blockchain.UtxoViewpoint, error) {
	utxoView, err := p.cfg.FetchUtxoView(tx)
	if err != nil {
		return nil, err
	}

	for _, txIn := range tx.MsgTx().TxIn {
		prevOut := &txIn.PreviousOutPoint
		if entry := utxoView.LookupEntry(*prevOut); entry != nil && !entry.IsSpent() {
			continue
		}

		if parent, ok := p.store.find(prevOut.Hash); ok {
			utxoView.AddTxOut(parent.Tx, prevOut.Index, mining.UnminedHeight)
		}
	}

	return utxoView, nil
}
