package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/application"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
	"github.com/tradeguard-network/tradeguard-daemon/internal/infrastructure/storage/db/inmemory"
)

const (
	buyerId  int64 = 1001
	sellerId int64 = 2002
	otherId  int64 = 3003
	adminId  int64 = 9999

	payoutAddress = "TN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9"
	senderAddress = "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy"
	depositTxId   = "aa11bb22cc33dd44ee55ff66aa77bb88cc99dd00ee11ff22aa33bb44cc55dd66"
)

type testHarness struct {
	dbManager ports.DbManager
	explorer  *mockExplorer
	wallet    *mockWallet
	notifier  *mockNotifier
	escrowSvc application.EscrowService
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	dbManager := inmemory.NewDbManager()
	explorerSvc := newMockExplorer()
	walletSvc := newMockWallet()
	notifier := newMockNotifier()

	verifier := application.NewDepositVerifier(
		explorerSvc, dbManager.DepositRepository(), operatorAddress,
	)
	escrowSvc := application.NewEscrowService(
		dbManager, verifier, walletSvc, notifier, noopRelayCloser{},
		application.FeePolicy{
			NormalRate:  decimal.RequireFromString("0.05"),
			ReducedRate: decimal.RequireFromString("0.025"),
			NetworkFee:  decimal.Zero,
		},
		adminId,
	)

	return &testHarness{
		dbManager: dbManager,
		explorer:  explorerSvc,
		wallet:    walletSvc,
		notifier:  notifier,
		escrowSvc: escrowSvc,
	}
}

func (h *testHarness) listItem(t *testing.T) *domain.Item {
	t.Helper()
	item, err := domain.NewItem(
		"vintage synthesizer", decimal.RequireFromString("100"),
		sellerId, domain.ItemKindPhysical,
	)
	require.NoError(t, err)
	require.NoError(t, h.dbManager.ItemRepository().AddItem(context.Background(), item))
	return item
}

func (h *testHarness) acceptedEscrow(t *testing.T) *domain.Escrow {
	t.Helper()
	ctx := context.Background()
	item := h.listItem(t)
	escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
	require.NoError(t, err)
	accepted, err := h.escrowSvc.Accept(ctx, escrow.Reference, sellerId, payoutAddress)
	require.NoError(t, err)
	return accepted
}

func (h *testHarness) confirmedEscrow(t *testing.T) *domain.Escrow {
	t.Helper()
	escrow := h.acceptedEscrow(t)
	h.explorer.addTx(mockTransaction{
		hash:      depositTxId,
		sender:    senderAddress,
		recipient: operatorAddress,
		amount:    escrow.Amount,
		memo:      "payment " + escrow.Reference,
		confirmed: true,
	})
	updated, err := h.escrowSvc.VerifyDeposit(
		context.Background(), escrow.Reference, buyerId, depositTxId,
	)
	require.NoError(t, err)
	require.True(t, updated.IsDepositConfirmed())
	return updated
}

func TestCreateOffer(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending escrow and notifies the seller", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)

		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)
		require.True(t, escrow.IsPending())
		require.Equal(t, item.Id, escrow.ItemId)
		require.True(t, escrow.Amount.Equal(item.Price))
		require.Equal(t, 1, h.notifier.countFor(sellerId))
	})

	t.Run("rejects a second offer while one is open", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)

		_, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)
		_, err = h.escrowSvc.CreateOffer(ctx, item.Id, otherId)
		require.ErrorIs(t, err, domain.ErrItemUnavailable)
	})

	t.Run("rejects the seller buying their own item", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)

		_, err := h.escrowSvc.CreateOffer(ctx, item.Id, sellerId)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("fails on unknown item", func(t *testing.T) {
		h := newTestHarness(t)

		_, err := h.escrowSvc.CreateOffer(ctx, "00000000", buyerId)
		require.ErrorIs(t, err, domain.ErrItemNotFound)
	})
}

func TestAcceptAndReject(t *testing.T) {
	ctx := context.Background()

	t.Run("seller accepts with a valid payout address", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		accepted, err := h.escrowSvc.Accept(ctx, escrow.Reference, sellerId, payoutAddress)
		require.NoError(t, err)
		require.True(t, accepted.IsAccepted())
		require.Equal(t, payoutAddress, accepted.PayoutAddress)
		require.Equal(t, 1, h.notifier.countFor(buyerId))
	})

	t.Run("accept fails with a malformed payout address", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		_, err = h.escrowSvc.Accept(ctx, escrow.Reference, sellerId, "not-a-tron-address")
		require.Error(t, err)
	})

	t.Run("accept fails for anyone but the seller", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		_, err = h.escrowSvc.Accept(ctx, escrow.Reference, buyerId, payoutAddress)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("seller rejects a pending offer", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		require.NoError(t, h.escrowSvc.Reject(ctx, escrow.Reference, sellerId))

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeRejected, stored.Status)
	})
}

func TestVerifyDeposit(t *testing.T) {
	ctx := context.Background()

	t.Run("exact deposit confirms the escrow", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    escrow.Amount,
			memo:      escrow.Reference,
			confirmed: true,
		})

		updated, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		require.True(t, updated.IsDepositConfirmed())
		require.Equal(t, depositTxId, updated.DepositTxId)

		deposit, err := h.dbManager.DepositRepository().GetDepositByTxId(ctx, depositTxId)
		require.NoError(t, err)
		require.Equal(t, escrow.Reference, deposit.EscrowReference)
	})

	t.Run("only the buyer may verify", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)

		_, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, otherId, depositTxId)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("fails before acceptance", func(t *testing.T) {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		_, err = h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.ErrorIs(t, err, domain.ErrEscrowInvalidStatus)
	})

	t.Run("unknown transaction fails closed", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)

		_, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, "deadbeef")
		require.ErrorIs(t, err, application.ErrVerificationFailed)

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.True(t, stored.IsAccepted())
	})

	t.Run("memo without the reference fails closed", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    escrow.Amount,
			memo:      "no reference here",
			confirmed: true,
		})

		_, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.ErrorIs(t, err, application.ErrVerificationFailed)
	})

	t.Run("over-payment parks the escrow for refund", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    decimal.RequireFromString("120"),
			memo:      escrow.Reference,
			confirmed: true,
		})

		updated, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		require.True(t, updated.IsDepositOverpaid())
		require.Equal(t, 0, h.wallet.transferCount())
	})

	t.Run("under-payment cancels and refunds the partial amount", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    decimal.RequireFromString("60"),
			memo:      escrow.Reference,
			confirmed: true,
		})

		updated, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeCancelled, updated.Status)

		require.Equal(t, 1, h.wallet.transferCount())
		call := h.wallet.calls[0]
		require.Equal(t, senderAddress, call.destination)
		require.True(t, call.amount.Equal(decimal.RequireFromString("60")))
	})

	t.Run("a txid consumed by another escrow is rejected", func(t *testing.T) {
		h := newTestHarness(t)
		first := h.confirmedEscrow(t)

		item, err := domain.NewItem(
			"another listing", decimal.RequireFromString("100"),
			sellerId, domain.ItemKindDigital,
		)
		require.NoError(t, err)
		require.NoError(t, h.dbManager.ItemRepository().AddItem(ctx, item))
		second, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)
		accepted, err := h.escrowSvc.Accept(ctx, second.Reference, sellerId, payoutAddress)
		require.NoError(t, err)

		_, err = h.escrowSvc.VerifyDeposit(ctx, accepted.Reference, buyerId, first.DepositTxId)
		require.ErrorIs(t, err, domain.ErrDepositAlreadyConsumed)
	})
}

func TestConfirmCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("settles the net amount and completes", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		result, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		require.NotEmpty(t, result.TxId)

		require.Equal(t, 1, h.wallet.transferCount())
		call := h.wallet.calls[0]
		require.Equal(t, payoutAddress, call.destination)
		require.True(t, call.amount.Equal(decimal.RequireFromString("95")),
			"expected 95, got %s", call.amount)

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.True(t, stored.IsCompleted())
		require.Equal(t, result.TxId, stored.SettlementTxId)

		item, err := h.dbManager.ItemRepository().GetItemById(ctx, escrow.ItemId)
		require.NoError(t, err)
		require.Equal(t, domain.ItemStatusSold, item.Status)
	})

	t.Run("settlement failure leaves the escrow confirmed", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)
		h.wallet.err = errors.New("network unreachable")

		_, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.ErrorIs(t, err, application.ErrSettlementFailed)

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.True(t, stored.IsDepositConfirmed())

		// the retry succeeds once the network recovers
		h.wallet.err = nil
		_, err = h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
	})

	t.Run("a second confirmation cannot settle twice", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		_, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		_, err = h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.ErrorIs(t, err, domain.ErrEscrowInvalidStatus)
		require.Equal(t, 1, h.wallet.transferCount())
	})

	t.Run("a different txid than the recorded deposit fails", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		_, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, "ffffffff")
		require.ErrorIs(t, err, application.ErrVerificationFailed)
	})

	t.Run("only the buyer may confirm", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		_, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, sellerId, depositTxId)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestRefundOverpayment(t *testing.T) {
	ctx := context.Background()

	overpaidEscrow := func(t *testing.T, h *testHarness) *domain.Escrow {
		escrow := h.acceptedEscrow(t)
		h.explorer.addTx(mockTransaction{
			hash:      depositTxId,
			sender:    senderAddress,
			recipient: operatorAddress,
			amount:    decimal.RequireFromString("120"),
			memo:      escrow.Reference,
			confirmed: true,
		})
		updated, err := h.escrowSvc.VerifyDeposit(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)
		require.True(t, updated.IsDepositOverpaid())
		return updated
	}

	t.Run("refunds the deposited amount at the reduced rate", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := overpaidEscrow(t, h)

		result, err := h.escrowSvc.RefundOverpayment(ctx, escrow.Reference, buyerId, "")
		require.NoError(t, err)
		require.NotEmpty(t, result.TxId)

		require.Equal(t, 1, h.wallet.transferCount())
		call := h.wallet.calls[0]
		require.Equal(t, senderAddress, call.destination)
		// 120 * (1 - 0.025)
		require.True(t, call.amount.Equal(decimal.RequireFromString("117")),
			"expected 117, got %s", call.amount)

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.True(t, stored.IsCompleted())
	})

	t.Run("refunds to an explicit destination", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := overpaidEscrow(t, h)

		_, err := h.escrowSvc.RefundOverpayment(ctx, escrow.Reference, buyerId, payoutAddress)
		require.NoError(t, err)
		require.Equal(t, payoutAddress, h.wallet.calls[0].destination)
	})

	t.Run("fails when the escrow is not overpaid", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		_, err := h.escrowSvc.RefundOverpayment(ctx, escrow.Reference, buyerId, "")
		require.ErrorIs(t, err, domain.ErrEscrowInvalidStatus)
	})

	t.Run("transfer failure leaves the escrow overpaid", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := overpaidEscrow(t, h)
		h.wallet.err = errors.New("network unreachable")

		_, err := h.escrowSvc.RefundOverpayment(ctx, escrow.Reference, buyerId, "")
		require.ErrorIs(t, err, application.ErrSettlementFailed)

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.True(t, stored.IsDepositOverpaid())
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("either party may cancel a non-terminal escrow", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)

		require.NoError(t, h.escrowSvc.Cancel(ctx, escrow.Reference, sellerId))

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeCancelled, stored.Status)
		require.Equal(t, 1, h.notifier.countFor(buyerId))
	})

	t.Run("a stranger cannot cancel", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.acceptedEscrow(t)

		err := h.escrowSvc.Cancel(ctx, escrow.Reference, otherId)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("a completed escrow cannot be cancelled", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)
		_, err := h.escrowSvc.ConfirmCompletion(ctx, escrow.Reference, buyerId, depositTxId)
		require.NoError(t, err)

		err = h.escrowSvc.Cancel(ctx, escrow.Reference, buyerId)
		require.ErrorIs(t, err, domain.ErrEscrowInvalidStatus)
	})
}

func TestForceCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("admin terminates any non-terminal escrow", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		require.NoError(t, h.escrowSvc.ForceCancel(ctx, escrow.Reference, adminId))

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeCancelled, stored.Status)
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		h := newTestHarness(t)
		escrow := h.confirmedEscrow(t)

		err := h.escrowSvc.ForceCancel(ctx, escrow.Reference, buyerId)
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestConcurrentAcceptAndCancel(t *testing.T) {
	ctx := context.Background()

	// a committed cancellation must never be overwritten by a racing
	// acceptance, whichever order the two transitions interleave in
	for i := 0; i < 25; i++ {
		h := newTestHarness(t)
		item := h.listItem(t)
		escrow, err := h.escrowSvc.CreateOffer(ctx, item.Id, buyerId)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = h.escrowSvc.Accept(ctx, escrow.Reference, sellerId, payoutAddress)
		}()
		go func() {
			defer wg.Done()
			cancelErr = h.escrowSvc.Cancel(ctx, escrow.Reference, buyerId)
		}()
		wg.Wait()

		// the buyer may cancel both pending and accepted escrows, so the
		// cancellation always lands; acceptance either preceded it or was
		// refused against the terminal status
		require.NoError(t, cancelErr)
		if acceptErr != nil {
			require.ErrorIs(t, acceptErr, domain.ErrEscrowInvalidStatus)
		}

		stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
		require.NoError(t, err)
		require.Equal(t, domain.EscrowStatusCodeCancelled, stored.Status)
	}
}

func TestConcurrentConfirmationsSettleOnce(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	escrow := h.confirmedEscrow(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.escrowSvc.ConfirmCompletion(
				ctx, escrow.Reference, buyerId, depositTxId,
			)
		}(i)
	}
	wg.Wait()

	var succeeded, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrEscrowInvalidStatus):
			refused++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, refused)
	require.Equal(t, 1, h.wallet.transferCount())

	stored, err := h.dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
	require.NoError(t, err)
	require.True(t, stored.IsCompleted())
}
