package domain

import "context"

// EscrowRepository is the abstraction for any kind of database intended to
// persist escrow transactions.
type EscrowRepository interface {
	// AddEscrow stores a new escrow transaction.
	AddEscrow(ctx context.Context, escrow *Escrow) error
	// GetEscrowByReference returns the escrow with the given reference, or
	// ErrEscrowNotFound.
	GetEscrowByReference(ctx context.Context, reference string) (*Escrow, error)
	// GetEscrowsForStatus returns all escrows in the given status.
	GetEscrowsForStatus(ctx context.Context, statusCode int) ([]Escrow, error)
	// GetOpenEscrowForItem returns the non-terminal escrow referencing the
	// given item, or nil if there is none. At most one can exist at a time.
	GetOpenEscrowForItem(ctx context.Context, itemId string) (*Escrow, error)
	// UpdateEscrow commits the changes applied by updateFn to the stored
	// escrow in a transactional way. The status guards of the entity must be
	// re-evaluated by updateFn against the freshly loaded escrow, since the
	// status may have changed between read and write.
	UpdateEscrow(
		ctx context.Context,
		reference string,
		updateFn func(e *Escrow) (*Escrow, error),
	) error
}
