package application

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Notifier is the out-of-band channel used to reach a user outside of the
// request that triggered the notification. It is implemented by the chat
// transport layer; delivery is best-effort.
type Notifier interface {
	Notify(userId int64, message string)
}

// Forwarder delivers relayed payloads to the counterpart of an active
// pairing. Implemented by the chat transport layer.
type Forwarder interface {
	ForwardText(userId int64, text string) error
	ForwardDocument(userId int64, fileId, caption string) error
}

// RelayPayload is a message or file attachment passed through the relay
// verbatim, without content inspection.
type RelayPayload struct {
	Text     string
	FileId   string
	FileName string
}

// FeePolicy holds the commission configuration of the escrow service. The
// flat network fee is subtracted before the percentage rate applies.
type FeePolicy struct {
	// NormalRate is the commission withheld from the seller payout.
	NormalRate decimal.Decimal
	// ReducedRate is the commission withheld when refunding an overpaid
	// escrow, half of the normal rate by default.
	ReducedRate decimal.Decimal
	// NetworkFee is a flat amount covering the settlement network cost.
	NetworkFee decimal.Decimal
}

// VerificationOutcome is the result of checking a claimed deposit against
// the chain. ActualAmount is zero whenever the transaction could not be
// attributed to the escrow at all (unreachable, unconfirmed, foreign token,
// memo mismatch).
type VerificationOutcome struct {
	Matched      bool
	ActualAmount decimal.Decimal
	Sender       string
	TxId         string
}

// keyedMutex serializes operations per escrow reference, so that an
// explicit buyer command racing the background sweep cannot issue two
// settlements for the same escrow.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) {
	m, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	m.(*sync.Mutex).Lock()
}

func (k *keyedMutex) unlock(key string) {
	if m, ok := k.locks.Load(key); ok {
		m.(*sync.Mutex).Unlock()
	}
}
