package ports

import (
	"context"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

// DbManager interface gives access to the repositories of the escrow ledger
// and lets callers group writes in a single database transaction.
type DbManager interface {
	ItemRepository() domain.ItemRepository
	EscrowRepository() domain.EscrowRepository
	DepositRepository() domain.DepositRepository
	RatingRepository() domain.RatingRepository

	// RunTransaction runs the handler within one transaction of the ledger
	// store (items, escrows, consumed deposits). Writes from any of those
	// repositories performed through the handler's context are committed
	// atomically, or discarded altogether if the handler errors.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)
	// RunRatingsTransaction is the equivalent of RunTransaction for the
	// rating store.
	RunRatingsTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)

	Close() error
}
