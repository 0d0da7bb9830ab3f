package explorer

import "github.com/shopspring/decimal"

// Transaction represents a token transfer transaction fetched from the
// blockchain data provider. Amounts are expressed in token units, already
// scaled by the token precision.
type Transaction interface {
	Hash() string
	Contract() string
	Sender() string
	Recipient() string
	Amount() decimal.Decimal
	Memo() string
	Confirmed() bool
	Timestamp() int64
}

// Transfer summarizes an incoming token transfer as returned by the
// provider's per-address history endpoint. The memo is not part of the
// summary, callers needing it must fetch the full transaction.
type Transfer struct {
	TxId      string
	From      string
	To        string
	Amount    decimal.Decimal
	Timestamp int64
}

// Service is the representation of an explorer that allows to fetch token
// transaction data from the blockchain.
type Service interface {
	// GetTransaction fetches the token transaction identified by its txid.
	GetTransaction(txid string) (Transaction, error)
	// GetRecentTransfers returns the latest token transfers received by the
	// given address.
	GetRecentTransfers(address string) ([]Transfer, error)
	// GetBlockHeight returns the current number of blocks of the chain.
	GetBlockHeight() (int, error)
}
