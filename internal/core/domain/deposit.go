package domain

import "github.com/shopspring/decimal"

// Deposit is the persisted record of a chain transaction consumed by a
// successful verification. It is the source of truth of the no-double-spend
// invariant: one chain txid can be applied to at most one escrow, across
// process restarts.
type Deposit struct {
	TxId            string `badgerhold:"unique"`
	EscrowReference string
	Amount          decimal.Decimal
	SenderAddress   string
	Timestamp       int64
}
