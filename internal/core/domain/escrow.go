package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/thanhpk/randstr"
)

const (
	// EscrowStatusCodePending is the status of a freshly created offer,
	// waiting for the seller to accept or reject it.
	EscrowStatusCodePending = iota
	// EscrowStatusCodeAccepted means the seller accepted and supplied a
	// payout address; the buyer is expected to deposit.
	EscrowStatusCodeAccepted
	// EscrowStatusCodeDepositConfirmed means a deposit exactly matching the
	// escrow amount was verified on chain.
	EscrowStatusCodeDepositConfirmed
	// EscrowStatusCodeDepositOverpaid means a genuine deposit exceeding the
	// escrow amount was detected; the buyer must request a refund.
	EscrowStatusCodeDepositOverpaid
	// EscrowStatusCodeCompleted is the terminal status of a settled escrow.
	EscrowStatusCodeCompleted
	// EscrowStatusCodeRejected is the terminal status of an offer refused by
	// the seller.
	EscrowStatusCodeRejected
	// EscrowStatusCodeCancelled is the terminal status of an abandoned or
	// force-terminated escrow.
	EscrowStatusCodeCancelled
)

// EscrowReferenceLength is the length of the numeric reference that
// correlates an escrow with the memo of its on-chain deposit.
const EscrowReferenceLength = 10

// Escrow is the data structure representing the lifecycle record of one
// buyer-seller deal. Item, parties and amount are immutable once created.
type Escrow struct {
	Reference      string
	ItemId         string
	BuyerId        int64
	SellerId       int64
	Amount         decimal.Decimal
	PayoutAddress  string
	Status         int
	DepositTxId    string
	SettlementTxId string
	CreatedAt      int64
	UpdatedAt      int64
}

// NewEscrow returns a pending escrow for the given item and buyer, with a
// freshly generated numeric reference. The amount is copied from the item
// price, later price changes do not affect the escrow.
func NewEscrow(item *Item, buyerId int64) (*Escrow, error) {
	if !item.IsAvailable() {
		return nil, ErrItemUnavailable
	}

	now := time.Now().Unix()
	return &Escrow{
		Reference: randstr.String(EscrowReferenceLength, digits),
		ItemId:    item.Id,
		BuyerId:   buyerId,
		SellerId:  item.SellerId,
		Amount:    item.Price,
		Status:    EscrowStatusCodePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Accept brings the escrow from Pending to Accepted and sets the seller
// payout address. Only the seller of the parent item is allowed.
func (e *Escrow) Accept(actor int64, payoutAddress string) error {
	if actor != e.SellerId {
		return ErrUnauthorized
	}
	if e.Status != EscrowStatusCodePending {
		return ErrEscrowInvalidStatus
	}
	if len(payoutAddress) <= 0 {
		return ErrPayoutAddressNotSet
	}

	e.PayoutAddress = payoutAddress
	e.setStatus(EscrowStatusCodeAccepted)
	return nil
}

// Reject brings the escrow from Pending to the terminal Rejected status.
// Only the seller is allowed.
func (e *Escrow) Reject(actor int64) error {
	if actor != e.SellerId {
		return ErrUnauthorized
	}
	if e.Status != EscrowStatusCodePending {
		return ErrEscrowInvalidStatus
	}

	e.setStatus(EscrowStatusCodeRejected)
	return nil
}

// ConfirmDeposit brings the escrow from Accepted to DepositConfirmed and
// records the chain transaction of the exactly matching deposit.
func (e *Escrow) ConfirmDeposit(txid string) error {
	if e.Status != EscrowStatusCodeAccepted {
		return ErrEscrowInvalidStatus
	}

	e.DepositTxId = txid
	e.setStatus(EscrowStatusCodeDepositConfirmed)
	return nil
}

// MarkOverpaid brings the escrow from Accepted to DepositOverpaid. The
// deposit is genuine but exceeds the expected amount, no seller payout may
// happen until the buyer explicitly requests the refund.
func (e *Escrow) MarkOverpaid(txid string) error {
	if e.Status != EscrowStatusCodeAccepted {
		return ErrEscrowInvalidStatus
	}

	e.DepositTxId = txid
	e.setStatus(EscrowStatusCodeDepositOverpaid)
	return nil
}

// Complete brings the escrow to the terminal Completed status after a
// settlement transfer was confirmed, either the seller payout from
// DepositConfirmed or the buyer refund from DepositOverpaid.
func (e *Escrow) Complete(settlementTxId string) error {
	if e.Status != EscrowStatusCodeDepositConfirmed &&
		e.Status != EscrowStatusCodeDepositOverpaid {
		return ErrEscrowInvalidStatus
	}
	if len(e.PayoutAddress) <= 0 && e.Status == EscrowStatusCodeDepositConfirmed {
		return ErrPayoutAddressNotSet
	}

	e.SettlementTxId = settlementTxId
	e.setStatus(EscrowStatusCodeCompleted)
	return nil
}

// Cancel brings the escrow to the terminal Cancelled status at the request
// of either party. Allowed from any non-terminal status.
func (e *Escrow) Cancel(actor int64) error {
	if actor != e.BuyerId && actor != e.SellerId {
		return ErrUnauthorized
	}
	if e.IsTerminal() {
		return ErrEscrowInvalidStatus
	}

	e.setStatus(EscrowStatusCodeCancelled)
	return nil
}

// ForceCancel is the administrative override that brings any non-terminal
// escrow to Cancelled, bypassing the actor restriction. Any pending refund
// is expected to be resolved manually out-of-band.
func (e *Escrow) ForceCancel() error {
	if e.IsTerminal() {
		return ErrEscrowInvalidStatus
	}

	e.setStatus(EscrowStatusCodeCancelled)
	return nil
}

// NetPayout returns the amount owed to the seller on completion: the flat
// network fee is subtracted first, then the percentage commission applies.
func (e *Escrow) NetPayout(commissionRate, networkFee decimal.Decimal) decimal.Decimal {
	return netOfFees(e.Amount, commissionRate, networkFee)
}

// RefundAmount returns the amount owed back to the buyer when refunding an
// overpaid escrow: the whole deposited amount net of fees, computed with
// the reduced commission rate.
func (e *Escrow) RefundAmount(
	depositedAmount, reducedRate, networkFee decimal.Decimal,
) decimal.Decimal {
	return netOfFees(depositedAmount, reducedRate, networkFee)
}

// IsPending returns whether the escrow is in Pending status.
func (e *Escrow) IsPending() bool {
	return e.Status == EscrowStatusCodePending
}

// IsAccepted returns whether the escrow is in Accepted status.
func (e *Escrow) IsAccepted() bool {
	return e.Status == EscrowStatusCodeAccepted
}

// IsDepositConfirmed returns whether the escrow is in DepositConfirmed status.
func (e *Escrow) IsDepositConfirmed() bool {
	return e.Status == EscrowStatusCodeDepositConfirmed
}

// IsDepositOverpaid returns whether the escrow is in DepositOverpaid status.
func (e *Escrow) IsDepositOverpaid() bool {
	return e.Status == EscrowStatusCodeDepositOverpaid
}

// IsCompleted returns whether the escrow is in Completed status.
func (e *Escrow) IsCompleted() bool {
	return e.Status == EscrowStatusCodeCompleted
}

// IsTerminal returns whether the escrow reached a status with no outgoing
// transitions.
func (e *Escrow) IsTerminal() bool {
	return e.Status == EscrowStatusCodeCompleted ||
		e.Status == EscrowStatusCodeRejected ||
		e.Status == EscrowStatusCodeCancelled
}

// InvolvesParty returns whether the given actor is the buyer or the seller.
func (e *Escrow) InvolvesParty(actor int64) bool {
	return actor == e.BuyerId || actor == e.SellerId
}

// Counterpart returns the other party of the deal, or false if the actor is
// not part of it.
func (e *Escrow) Counterpart(actor int64) (int64, bool) {
	switch actor {
	case e.BuyerId:
		return e.SellerId, true
	case e.SellerId:
		return e.BuyerId, true
	default:
		return 0, false
	}
}

func (e *Escrow) setStatus(code int) {
	e.Status = code
	e.UpdatedAt = time.Now().Unix()
}

func netOfFees(amount, rate, networkFee decimal.Decimal) decimal.Decimal {
	base := amount.Sub(networkFee)
	if base.IsNegative() {
		base = decimal.Zero
	}
	return base.Mul(decimal.NewFromInt(1).Sub(rate))
}
