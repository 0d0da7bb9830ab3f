package domain

import "errors"

var (
	// ErrItemNotFound ...
	ErrItemNotFound = errors.New("item not found")
	// ErrItemUnavailable is thrown when making an offer on an item that is
	// sold, cancelled or already locked by an open escrow.
	ErrItemUnavailable = errors.New("item is not available")
	// ErrItemInvalidKind ...
	ErrItemInvalidKind = errors.New("item kind must be either digital or physical")
	// ErrItemInvalidPrice ...
	ErrItemInvalidPrice = errors.New("item price must be a positive amount")
	// ErrEscrowNotFound ...
	ErrEscrowNotFound = errors.New("escrow transaction not found")
	// ErrEscrowInvalidStatus is thrown when an operation is attempted against
	// an escrow that is not in the required status.
	ErrEscrowInvalidStatus = errors.New("escrow transaction is not in the required status")
	// ErrUnauthorized is thrown when the actor is not the party entitled to
	// perform the requested transition.
	ErrUnauthorized = errors.New("actor is not allowed to perform this operation")
	// ErrPayoutAddressNotSet ...
	ErrPayoutAddressNotSet = errors.New("seller payout address is not set")
	// ErrDepositAlreadyConsumed is thrown when a chain transaction id was
	// already applied to a previous successful verification.
	ErrDepositAlreadyConsumed = errors.New("chain transaction already consumed by another escrow")
	// ErrDepositNotFound ...
	ErrDepositNotFound = errors.New("deposit not found")
	// ErrRatingExists is thrown when the rater already rated the given escrow.
	ErrRatingExists = errors.New("escrow already rated by this user")
	// ErrRatingInvalidScore ...
	ErrRatingInvalidScore = errors.New("rating score must be in range [1, 5]")
)
