// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import "github.com/btcsuite/btcd/btcutil"

// RemovalReason identifies why an entry left the pool, matching the
// reason-code vocabulary exactly.
type RemovalReason int

const (
	// ReasonUnknown is the zero value; it should never be observed by a
	// caller.
	ReasonUnknown RemovalReason = iota

	// ReasonExpiry means the entry aged out per MempoolExpiry.
	ReasonExpiry

	// ReasonSizeLimit means the entry was evicted by trim_to to respect
	// MaxMempoolBytes.
	ReasonSizeLimit

	// ReasonReorg means the entry was dropped during reorg reconciliation
	// (became non-final or immature on disconnect).
	ReasonReorg

	// ReasonBlock means the entry was removed because its transaction was
	// included in a connected block.
	ReasonBlock

	// ReasonConflict means the entry was removed because a block included
	// a conflicting transaction.
	ReasonConflict

	// ReasonReplaced means the entry was displaced by a valid BIP125
	// replacement.
	ReasonReplaced
)

// String implements fmt.Stringer.
func (r RemovalReason) String() string {
	switch r {
	case ReasonExpiry:
		return "expiry"
	case ReasonSizeLimit:
		return "size-limit"
	case ReasonReorg:
		return "reorg"
	case ReasonBlock:
		return "block"
	case ReasonConflict:
		return "conflict"
	case ReasonReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// NotificationType identifies the kind of event an EventCallback receives.
type NotificationType int

const (
	// NTEntryAdded fires once an entry is fully resident in the pool.
	NTEntryAdded NotificationType = iota

	// NTEntryRemoved fires once an entry has been fully unwound from the
	// pool, with its removal reason attached.
	NTEntryRemoved
)

// EntryRemovedData is the Data payload of an NTEntryRemoved notification.
type EntryRemovedData struct {
	Tx     *btcutil.Tx
	Reason RemovalReason
}

// Notification is delivered to every subscribed EventCallback. Data is
// *btcutil.Tx for NTEntryAdded and *EntryRemovedData for NTEntryRemoved.
type Notification struct {
	Type NotificationType
	Data interface{}
}

// EventCallback is the subscriber function signature for the
// on_entry_added/on_entry_removed hooks.
type EventCallback func(*Notification)

// Subscribe registers callback to receive future notifications. Subscribers
// are invoked synchronously, in the order they were registered.
func (p *TxPool) Subscribe(callback EventCallback) {
	p.notificationsMu.Lock()
	p.notifications = append(p.notifications, callback)
	p.notificationsMu.Unlock()
}

func (p *TxPool) notify(typ NotificationType, data interface{}) {
	n := Notification{Type: typ, Data: data}

	p.notificationsMu.RLock()
	defer p.notificationsMu.RUnlock()
	for _, callback := range p.notifications {
		callback(&n)
	}
}
