package domain

import "context"

// DepositRepository is the abstraction for any kind of database intended to
// persist consumed deposits.
type DepositRepository interface {
	// AddDeposit reserves the chain txid of the given deposit. It returns
	// ErrDepositAlreadyConsumed if the txid is already present; the
	// reservation must be atomic with respect to concurrent verifications.
	AddDeposit(ctx context.Context, deposit Deposit) error
	// GetDepositByTxId returns the deposit consuming the given chain txid,
	// or ErrDepositNotFound.
	GetDepositByTxId(ctx context.Context, txid string) (*Deposit, error)
	// GetAllDeposits returns the paginated list of all consumed deposits.
	GetAllDeposits(ctx context.Context, page Page) ([]Deposit, error)
}
