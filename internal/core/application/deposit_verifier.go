package application

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/circuitbreaker"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"
)

// DepositVerifier decides whether a claimed deposit is genuine, exactly
// matching, insufficient or in excess. It never mutates the escrow; network
// and parsing failures degrade to a non-matching outcome with a zero amount.
type DepositVerifier struct {
	explorerSvc    explorer.Service
	depositRepo    domain.DepositRepository
	depositAddress string
	cb             *gobreaker.CircuitBreaker
}

// NewDepositVerifier returns a verifier that accepts only deposits received
// by the given operator address.
func NewDepositVerifier(
	explorerSvc explorer.Service,
	depositRepo domain.DepositRepository,
	depositAddress string,
) *DepositVerifier {
	return &DepositVerifier{
		explorerSvc:    explorerSvc,
		depositRepo:    depositRepo,
		depositAddress: depositAddress,
		cb:             circuitbreaker.NewCircuitBreaker("explorer"),
	}
}

// Verify checks the referenced chain transaction against the expected
// amount and the escrow reference. The consumed-reference set is checked
// before any chain lookup: a txid already applied to another escrow yields
// ErrDepositAlreadyConsumed, while re-checking the txid of the same escrow
// is allowed (idempotent re-verification).
func (v *DepositVerifier) Verify(
	ctx context.Context,
	expectedAmount decimal.Decimal,
	txid, memoReference string,
) (VerificationOutcome, error) {
	failed := VerificationOutcome{ActualAmount: decimal.Zero}

	if len(txid) <= 0 {
		return failed, nil
	}

	deposit, err := v.depositRepo.GetDepositByTxId(ctx, txid)
	if err != nil && !errors.Is(err, domain.ErrDepositNotFound) {
		return failed, err
	}
	if deposit != nil && deposit.EscrowReference != memoReference {
		return failed, domain.ErrDepositAlreadyConsumed
	}

	itx, err := v.cb.Execute(func() (interface{}, error) {
		return v.explorerSvc.GetTransaction(txid)
	})
	if err != nil {
		log.WithError(err).Debugf("verifier: failed to fetch tx %s", txid)
		return failed, nil
	}
	tx := itx.(explorer.Transaction)

	if !tx.Confirmed() {
		return failed, nil
	}
	if tx.Recipient() != v.depositAddress {
		return failed, nil
	}
	if !strings.Contains(
		strings.ToLower(tx.Memo()), strings.ToLower(memoReference),
	) {
		return failed, nil
	}

	return VerificationOutcome{
		Matched:      tx.Amount().Equal(expectedAmount),
		ActualAmount: tx.Amount(),
		Sender:       tx.Sender(),
		TxId:         txid,
	}, nil
}
