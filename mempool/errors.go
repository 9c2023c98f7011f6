// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
)

// RuleError carries an admission failure as a value: the wire.RejectCode a
// peer-facing reject message should carry, an optional DoS score for the
// peer that relayed the offending transaction, and a human-readable
// explanation. Admission never panics for a policy rejection. Standardness,
// fee, duplicate and consensus rejections come back as a *RuleError so
// callers can branch on RejectCode without parsing strings; chain-limit,
// replacement-economics and mempool-full rejections come back as the
// sentinel errors below, wrapped with fmt.Errorf, and carry no RejectCode.
type RuleError struct {
	RejectCode wire.RejectCode
	DoSScore   int
	Text       string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return e.Text
}

// txRuleError creates a RuleError for a policy-level or standardness
// violation local to this transaction, with the given reject code and
// message.
func txRuleError(c wire.RejectCode, str string) *RuleError {
	return &RuleError{RejectCode: c, Text: str}
}

// txRuleErrorf is txRuleError with fmt.Sprintf-style formatting.
func txRuleErrorf(c wire.RejectCode, format string, args ...interface{}) *RuleError {
	return txRuleError(c, fmt.Sprintf(format, args...))
}

// dosRuleError creates a RejectInvalid RuleError that also carries a DoS
// score, for use when the violation is severe enough that the peer relaying
// it should be penalized.
func dosRuleError(score int, str string) *RuleError {
	return &RuleError{RejectCode: wire.RejectInvalid, DoSScore: score, Text: str}
}

// chainRuleError converts a blockchain.RuleError (raised by the external
// consensus-validation collaborator) into this package's own RuleError. The
// consensus layer's violations are always DoS-scored since they indicate a
// transaction that could never be valid.
func chainRuleError(err blockchain.RuleError) *RuleError {
	return &RuleError{
		RejectCode: wire.RejectInvalid,
		DoSScore:   100,
		Text:       err.Error(),
	}
}

// extractRejectCode pulls the wire.RejectCode out of err if it is (or wraps)
// a *RuleError.
func extractRejectCode(err error) (wire.RejectCode, bool) {
	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr.RejectCode, true
	}
	return 0, false
}

// Sentinel errors returned by the replacement and ancestor/descendant
// validation paths. These are wrapped with fmt.Errorf("%w: ...") at the call
// site so callers can still match on the sentinel via errors.Is.
var (
	// ErrTooManyEvictions indicates a replacement transaction would evict
	// too many transactions from the mempool.
	ErrTooManyEvictions = errors.New("replacement evicts too many transactions")

	// ErrReplacementSpendsParent indicates a replacement transaction
	// attempts to spend an output from a transaction it is replacing.
	ErrReplacementSpendsParent = errors.New("replacement spends parent transaction")

	// ErrInsufficientFeeRate indicates a replacement transaction has an
	// insufficient fee rate compared to the transactions it is replacing.
	ErrInsufficientFeeRate = errors.New("insufficient fee rate for replacement")

	// ErrInsufficientAbsoluteFee indicates a replacement transaction has
	// an insufficient absolute fee compared to the transactions it is
	// replacing.
	ErrInsufficientAbsoluteFee = errors.New("insufficient absolute fee for replacement")

	// ErrNewUnconfirmedInput indicates a replacement transaction
	// introduces new unconfirmed inputs not present in the conflicts.
	ErrNewUnconfirmedInput = errors.New("replacement has new unconfirmed input")

	// ErrConflictsWithAncestor indicates the new transaction's ancestor
	// set intersects the set of transactions it conflicts with.
	ErrConflictsWithAncestor = errors.New("transaction spends conflicting transaction")

	// ErrTooManyAncestors indicates a transaction's ancestor count or size
	// exceeds the configured chain limits.
	ErrTooManyAncestors = errors.New("too-long-mempool-chain")

	// ErrTooManyDescendants indicates a transaction's descendant count or
	// size exceeds the configured chain limits.
	ErrTooManyDescendants = errors.New("too-long-mempool-chain")

	// ErrMempoolFull indicates that, after admission, trimming the pool
	// to its configured memory bound evicted the entry that was just
	// inserted.
	ErrMempoolFull = errors.New("mempool full")
)
