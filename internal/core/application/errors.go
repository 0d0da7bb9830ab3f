package application

import "errors"

var (
	// ErrVerificationFailed is returned when the claimed deposit did not
	// match expectations: unreachable chain data, wrong amount, or a memo
	// not containing the escrow reference.
	ErrVerificationFailed = errors.New("deposit verification failed")
	// ErrSettlementFailed is returned when the settlement transfer was not
	// confirmed; the escrow remains in its pre-settlement status.
	ErrSettlementFailed = errors.New("settlement transfer not confirmed")
	// ErrRelayNotActive is returned when relaying with no open session.
	ErrRelayNotActive = errors.New("no active relay session")
	// ErrRelayNotAllowed is returned when opening a relay on an escrow the
	// user is not a party of.
	ErrRelayNotAllowed = errors.New("user is not a party of this escrow")
)
