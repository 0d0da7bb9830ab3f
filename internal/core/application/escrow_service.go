package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/tronutil"
	"github.com/tradeguard-network/tradeguard-daemon/pkg/wallet"
)

// EscrowService orchestrates every status transition of an escrow
// transaction, invoking the deposit verifier and the settlement wallet at
// the right points and enforcing which actor may trigger which transition.
type EscrowService interface {
	// CreateOffer opens a pending escrow on an available item on behalf of
	// the buyer and notifies the seller.
	CreateOffer(ctx context.Context, itemId string, buyerId int64) (*domain.Escrow, error)
	// Accept lets the seller accept a pending offer, supplying the payout
	// address; the buyer receives the deposit instructions.
	Accept(ctx context.Context, reference string, actor int64, payoutAddress string) (*domain.Escrow, error)
	// Reject lets the seller refuse a pending offer.
	Reject(ctx context.Context, reference string, actor int64) error
	// VerifyDeposit checks the claimed chain transaction against the escrow
	// and routes to the exact-match, over-payment or under-payment branch.
	// It is invoked by the buyer command and by the background sweep alike.
	VerifyDeposit(ctx context.Context, reference string, actor int64, txid string) (*domain.Escrow, error)
	// ConfirmCompletion re-verifies the deposit and settles the net amount
	// to the seller payout address.
	ConfirmCompletion(ctx context.Context, reference string, actor int64, txid string) (*wallet.TransferResult, error)
	// RefundOverpayment refunds an overpaid escrow to the buyer at the
	// reduced commission rate. With an empty destination the refund goes
	// back to the recorded deposit sender.
	RefundOverpayment(ctx context.Context, reference string, actor int64, destination string) (*wallet.TransferResult, error)
	// Cancel terminates a non-terminal escrow at the request of either
	// party.
	Cancel(ctx context.Context, reference string, actor int64) error
	// ForceCancel is the administrative override terminating any
	// non-terminal escrow; refunds are resolved manually out-of-band.
	ForceCancel(ctx context.Context, reference string, actor int64) error
}

// RelayCloser tears down the relay pairing of an escrow when it terminates.
type RelayCloser interface {
	CloseForReference(reference string)
}

type escrowService struct {
	dbManager   ports.DbManager
	verifier    *DepositVerifier
	walletSvc   wallet.Service
	notifier    Notifier
	relayCloser RelayCloser
	fees        FeePolicy
	adminId     int64
	locker      keyedMutex
}

// NewEscrowService returns an EscrowService with all the needed
// collaborators.
func NewEscrowService(
	dbManager ports.DbManager,
	verifier *DepositVerifier,
	walletSvc wallet.Service,
	notifier Notifier,
	relayCloser RelayCloser,
	fees FeePolicy,
	adminId int64,
) EscrowService {
	return &escrowService{
		dbManager:   dbManager,
		verifier:    verifier,
		walletSvc:   walletSvc,
		notifier:    notifier,
		relayCloser: relayCloser,
		fees:        fees,
		adminId:     adminId,
	}
}

func (s *escrowService) CreateOffer(
	ctx context.Context, itemId string, buyerId int64,
) (*domain.Escrow, error) {
	item, err := s.dbManager.ItemRepository().GetItemById(ctx, itemId)
	if err != nil {
		return nil, err
	}
	if buyerId == item.SellerId {
		return nil, domain.ErrUnauthorized
	}

	escrow, err := domain.NewEscrow(item, buyerId)
	if err != nil {
		return nil, err
	}

	// the one-open-escrow-per-item check and the insert run in the same
	// store transaction so that two simultaneous offers cannot both pass.
	if _, err := s.dbManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			open, err := s.dbManager.EscrowRepository().GetOpenEscrowForItem(ctx, itemId)
			if err != nil {
				return nil, err
			}
			if open != nil {
				return nil, domain.ErrItemUnavailable
			}
			return nil, s.dbManager.EscrowRepository().AddEscrow(ctx, escrow)
		},
	); err != nil {
		return nil, err
	}

	s.notifier.Notify(item.SellerId, fmt.Sprintf(
		"New offer %s on item '%s' for %s USDT. Use /accept %s <payout address> or /refusal %s.",
		escrow.Reference, item.Name, escrow.Amount, escrow.Reference, escrow.Reference,
	))
	return escrow, nil
}

func (s *escrowService) Accept(
	ctx context.Context, reference string, actor int64, payoutAddress string,
) (*domain.Escrow, error) {
	if err := tronutil.ValidateAddress(payoutAddress); err != nil {
		return nil, err
	}

	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	var updated *domain.Escrow
	if err := s.dbManager.EscrowRepository().UpdateEscrow(
		ctx, reference, func(e *domain.Escrow) (*domain.Escrow, error) {
			if err := e.Accept(actor, payoutAddress); err != nil {
				return nil, err
			}
			updated = e
			return e, nil
		},
	); err != nil {
		return nil, err
	}

	s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
		"Offer %s accepted. Deposit exactly %s USDT to %s and include %s in the transfer memo, "+
			"then run /checkdeposit %s <txid>.",
		reference, updated.Amount, s.walletSvc.Address(), reference, reference,
	))
	return updated, nil
}

func (s *escrowService) Reject(
	ctx context.Context, reference string, actor int64,
) error {
	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	var rejected *domain.Escrow
	if err := s.dbManager.EscrowRepository().UpdateEscrow(
		ctx, reference, func(e *domain.Escrow) (*domain.Escrow, error) {
			if err := e.Reject(actor); err != nil {
				return nil, err
			}
			rejected = e
			return e, nil
		},
	); err != nil {
		return err
	}

	s.notifier.Notify(rejected.BuyerId, fmt.Sprintf(
		"Offer %s was refused by the seller.", reference,
	))
	return nil
}

func (s *escrowService) VerifyDeposit(
	ctx context.Context, reference string, actor int64, txid string,
) (*domain.Escrow, error) {
	escrow, err := s.dbManager.EscrowRepository().GetEscrowByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actor != escrow.BuyerId {
		return nil, domain.ErrUnauthorized
	}
	if !escrow.IsAccepted() {
		return nil, domain.ErrEscrowInvalidStatus
	}

	// the chain lookup happens before taking the per-escrow lock, only the
	// status transition below runs under it.
	outcome, err := s.verifier.Verify(ctx, escrow.Amount, txid, reference)
	if err != nil {
		return nil, err
	}
	if outcome.ActualAmount.IsZero() {
		return nil, ErrVerificationFailed
	}

	deposit := domain.Deposit{
		TxId:            txid,
		EscrowReference: reference,
		Amount:          outcome.ActualAmount,
		SenderAddress:   outcome.Sender,
		Timestamp:       time.Now().Unix(),
	}

	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	switch {
	case outcome.Matched:
		updated, err := s.consumeAndTransition(
			ctx, reference, &deposit, func(e *domain.Escrow) error {
				return e.ConfirmDeposit(txid)
			},
		)
		if err != nil {
			return nil, err
		}
		s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
			"Deposit for escrow %s confirmed. Run /confirm %s <txid> once you received the goods to release the payment.",
			reference, reference,
		))
		s.notifier.Notify(updated.SellerId, fmt.Sprintf(
			"Deposit for escrow %s confirmed. Deliver the goods to the buyer.", reference,
		))
		return updated, nil

	case outcome.ActualAmount.GreaterThan(escrow.Amount):
		updated, err := s.consumeAndTransition(
			ctx, reference, &deposit, func(e *domain.Escrow) error {
				return e.MarkOverpaid(txid)
			},
		)
		if err != nil {
			return nil, err
		}
		s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
			"Deposit for escrow %s exceeds the expected %s USDT (received %s). "+
				"Run /refund %s to get the amount back at the reduced commission.",
			reference, escrow.Amount, outcome.ActualAmount, reference,
		))
		s.notifier.Notify(updated.SellerId, fmt.Sprintf(
			"Escrow %s received an over-payment; waiting for the buyer to request the refund.",
			reference,
		))
		return updated, nil

	default:
		// under-payment: terminate the escrow and send the partial amount
		// back to the depositing address, best-effort.
		updated, err := s.consumeAndTransition(
			ctx, reference, &deposit, func(e *domain.Escrow) error {
				return e.Cancel(e.BuyerId)
			},
		)
		if err != nil {
			return nil, err
		}
		s.relayCloser.CloseForReference(reference)

		if _, err := s.walletSvc.Transfer(
			ctx, outcome.Sender, outcome.ActualAmount, reference,
		); err != nil {
			log.WithError(err).Errorf(
				"failed to refund under-payment of escrow %s to %s",
				reference, outcome.Sender,
			)
		}
		s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
			"Deposit for escrow %s is below the expected %s USDT (received %s). "+
				"The escrow was cancelled and the partial amount refunded.",
			reference, escrow.Amount, outcome.ActualAmount,
		))
		s.notifier.Notify(updated.SellerId, fmt.Sprintf(
			"Escrow %s was cancelled because of an insufficient deposit.", reference,
		))
		return updated, nil
	}
}

func (s *escrowService) ConfirmCompletion(
	ctx context.Context, reference string, actor int64, txid string,
) (*wallet.TransferResult, error) {
	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	escrow, err := s.dbManager.EscrowRepository().GetEscrowByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actor != escrow.BuyerId {
		return nil, domain.ErrUnauthorized
	}
	if !escrow.IsDepositConfirmed() {
		return nil, domain.ErrEscrowInvalidStatus
	}
	if txid != escrow.DepositTxId {
		return nil, ErrVerificationFailed
	}

	// replay defense: the deposit must still verify against the chain.
	outcome, err := s.verifier.Verify(ctx, escrow.Amount, txid, reference)
	if err != nil {
		return nil, err
	}
	if !outcome.Matched {
		return nil, ErrVerificationFailed
	}

	net := escrow.NetPayout(s.fees.NormalRate, s.fees.NetworkFee)
	result, err := s.walletSvc.Transfer(ctx, escrow.PayoutAddress, net, reference)
	if err != nil {
		log.WithError(err).Errorf(
			"settlement of escrow %s to %s failed, escrow left in deposit_confirmed",
			reference, escrow.PayoutAddress,
		)
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, err)
	}

	updated, err := s.consumeAndTransition(
		ctx, reference, nil, func(e *domain.Escrow) error {
			return e.Complete(result.TxId)
		},
	)
	if err != nil {
		return nil, err
	}
	s.markItemSold(ctx, updated.ItemId)

	s.notifier.Notify(updated.SellerId, fmt.Sprintf(
		"Escrow %s completed: %s USDT sent to %s (tx %s). You can rate the buyer with /rate %s <1-5>.",
		reference, net, escrow.PayoutAddress, result.TxId, reference,
	))
	s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
		"Escrow %s completed. You can rate the seller with /rate %s <1-5>.",
		reference, reference,
	))
	return result, nil
}

func (s *escrowService) RefundOverpayment(
	ctx context.Context, reference string, actor int64, destination string,
) (*wallet.TransferResult, error) {
	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	escrow, err := s.dbManager.EscrowRepository().GetEscrowByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if actor != escrow.BuyerId {
		return nil, domain.ErrUnauthorized
	}
	if !escrow.IsDepositOverpaid() {
		return nil, domain.ErrEscrowInvalidStatus
	}

	deposit, err := s.dbManager.DepositRepository().GetDepositByTxId(
		ctx, escrow.DepositTxId,
	)
	if err != nil {
		return nil, err
	}
	if len(destination) <= 0 {
		destination = deposit.SenderAddress
	} else if err := tronutil.ValidateAddress(destination); err != nil {
		return nil, err
	}

	refund := escrow.RefundAmount(
		deposit.Amount, s.fees.ReducedRate, s.fees.NetworkFee,
	)
	result, err := s.walletSvc.Transfer(ctx, destination, refund, reference)
	if err != nil {
		log.WithError(err).Errorf(
			"refund of escrow %s to %s failed, escrow left in deposit_overpaid",
			reference, destination,
		)
		return nil, fmt.Errorf("%w: %s", ErrSettlementFailed, err)
	}

	updated, err := s.consumeAndTransition(
		ctx, reference, nil, func(e *domain.Escrow) error {
			return e.Complete(result.TxId)
		},
	)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(updated.BuyerId, fmt.Sprintf(
		"Refund of escrow %s sent: %s USDT to %s (tx %s).",
		reference, refund, destination, result.TxId,
	))
	s.notifier.Notify(updated.SellerId, fmt.Sprintf(
		"Escrow %s was closed with a refund to the buyer, no payout occurred.",
		reference,
	))
	return result, nil
}

func (s *escrowService) Cancel(
	ctx context.Context, reference string, actor int64,
) error {
	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	var cancelled *domain.Escrow
	if err := s.dbManager.EscrowRepository().UpdateEscrow(
		ctx, reference, func(e *domain.Escrow) (*domain.Escrow, error) {
			if err := e.Cancel(actor); err != nil {
				return nil, err
			}
			cancelled = e
			return e, nil
		},
	); err != nil {
		return err
	}

	s.relayCloser.CloseForReference(reference)

	if counterpart, ok := cancelled.Counterpart(actor); ok {
		s.notifier.Notify(counterpart, fmt.Sprintf(
			"Escrow %s was cancelled by the other party.", reference,
		))
	}
	return nil
}

func (s *escrowService) ForceCancel(
	ctx context.Context, reference string, actor int64,
) error {
	if actor != s.adminId {
		return domain.ErrUnauthorized
	}

	s.locker.lock(reference)
	defer s.locker.unlock(reference)

	var cancelled *domain.Escrow
	if err := s.dbManager.EscrowRepository().UpdateEscrow(
		ctx, reference, func(e *domain.Escrow) (*domain.Escrow, error) {
			if err := e.ForceCancel(); err != nil {
				return nil, err
			}
			cancelled = e
			return e, nil
		},
	); err != nil {
		return err
	}

	s.relayCloser.CloseForReference(reference)

	for _, userId := range []int64{cancelled.BuyerId, cancelled.SellerId} {
		s.notifier.Notify(userId, fmt.Sprintf(
			"Escrow %s was terminated by the administrator.", reference,
		))
	}
	log.Warnf("escrow %s force-cancelled by admin", reference)
	return nil
}

// consumeAndTransition applies the given transition to the stored escrow
// and, if a deposit is passed, reserves its chain txid in the same store
// transaction, so that the no-double-spend mark and the status write are
// committed atomically.
func (s *escrowService) consumeAndTransition(
	ctx context.Context,
	reference string,
	deposit *domain.Deposit,
	transition func(e *domain.Escrow) error,
) (*domain.Escrow, error) {
	var updated *domain.Escrow
	if _, err := s.dbManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			if deposit != nil {
				if err := s.dbManager.DepositRepository().AddDeposit(ctx, *deposit); err != nil {
					return nil, err
				}
			}
			return nil, s.dbManager.EscrowRepository().UpdateEscrow(
				ctx, reference, func(e *domain.Escrow) (*domain.Escrow, error) {
					if err := transition(e); err != nil {
						return nil, err
					}
					updated = e
					return e, nil
				},
			)
		},
	); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *escrowService) markItemSold(ctx context.Context, itemId string) {
	if err := s.dbManager.ItemRepository().UpdateItem(
		ctx, itemId, func(i *domain.Item) (*domain.Item, error) {
			if err := i.MarkSold(); err != nil {
				return nil, err
			}
			return i, nil
		},
	); err != nil {
		log.WithError(err).Warnf("failed to mark item %s as sold", itemId)
	}
}
