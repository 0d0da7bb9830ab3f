package dbbadger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

func newTestDb(t *testing.T) *DbManager {
	t.Helper()
	dbManager, err := NewDbManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dbManager.Close() })
	return dbManager
}

func newTestEscrow(t *testing.T, dbManager *DbManager) *domain.Escrow {
	t.Helper()
	ctx := context.Background()

	item, err := domain.NewItem(
		"test listing", decimal.RequireFromString("100"), 2002,
		domain.ItemKindDigital,
	)
	require.NoError(t, err)
	require.NoError(t, dbManager.ItemRepository().AddItem(ctx, item))

	escrow, err := domain.NewEscrow(item, 1001)
	require.NoError(t, err)
	require.NoError(t, dbManager.EscrowRepository().AddEscrow(ctx, escrow))
	return escrow
}

func TestEscrowRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbManager := newTestDb(t)
	escrow := newTestEscrow(t, dbManager)

	stored, err := dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
	require.NoError(t, err)
	require.Equal(t, escrow.Reference, stored.Reference)
	require.True(t, stored.Amount.Equal(escrow.Amount))

	_, err = dbManager.EscrowRepository().GetEscrowByReference(ctx, "0000000000")
	require.ErrorIs(t, err, domain.ErrEscrowNotFound)

	open, err := dbManager.EscrowRepository().GetOpenEscrowForItem(ctx, escrow.ItemId)
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, escrow.Reference, open.Reference)
}

func TestDepositAndStatusCommitAtomically(t *testing.T) {
	ctx := context.Background()
	dbManager := newTestDb(t)
	escrow := newTestEscrow(t, dbManager)

	const txid = "aa11bb22cc33"
	deposit := domain.Deposit{
		TxId:            txid,
		EscrowReference: escrow.Reference,
		Amount:          escrow.Amount,
		SenderAddress:   "TLsV52sRDL79HXGGm9yzwKibb6BeruhUzy",
		Timestamp:       1700000000,
	}

	require.NoError(t, dbManager.EscrowRepository().UpdateEscrow(
		ctx, escrow.Reference, func(e *domain.Escrow) (*domain.Escrow, error) {
			require.NoError(t, e.Accept(e.SellerId, "TN3W4H6rK2ce4vX9YnFQHwKENnHjoxb3m9"))
			return e, nil
		},
	))

	// reservation and status transition share one transaction
	_, err := dbManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			if err := dbManager.DepositRepository().AddDeposit(ctx, deposit); err != nil {
				return nil, err
			}
			return nil, dbManager.EscrowRepository().UpdateEscrow(
				ctx, escrow.Reference, func(e *domain.Escrow) (*domain.Escrow, error) {
					if err := e.ConfirmDeposit(txid); err != nil {
						return nil, err
					}
					return e, nil
				},
			)
		},
	)
	require.NoError(t, err)

	stored, err := dbManager.EscrowRepository().GetEscrowByReference(ctx, escrow.Reference)
	require.NoError(t, err)
	require.True(t, stored.IsDepositConfirmed())

	require.ErrorIs(
		t, dbManager.DepositRepository().AddDeposit(ctx, deposit),
		domain.ErrDepositAlreadyConsumed,
	)
}

func TestFailedTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	dbManager := newTestDb(t)
	escrow := newTestEscrow(t, dbManager)

	deposit := domain.Deposit{
		TxId:            "ff00ff00",
		EscrowReference: escrow.Reference,
		Amount:          escrow.Amount,
		Timestamp:       1700000000,
	}

	_, err := dbManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			if err := dbManager.DepositRepository().AddDeposit(ctx, deposit); err != nil {
				return nil, err
			}
			// the escrow is still pending, confirming must fail and discard
			// the deposit reservation with it
			return nil, dbManager.EscrowRepository().UpdateEscrow(
				ctx, escrow.Reference, func(e *domain.Escrow) (*domain.Escrow, error) {
					if err := e.ConfirmDeposit(deposit.TxId); err != nil {
						return nil, err
					}
					return e, nil
				},
			)
		},
	)
	require.ErrorIs(t, err, domain.ErrEscrowInvalidStatus)

	_, err = dbManager.DepositRepository().GetDepositByTxId(ctx, deposit.TxId)
	require.ErrorIs(t, err, domain.ErrDepositNotFound)
}

func TestItemSearchAndPagination(t *testing.T) {
	ctx := context.Background()
	dbManager := newTestDb(t)

	names := []string{"steam gift card", "mechanical keyboard", "game key"}
	for _, name := range names {
		item, err := domain.NewItem(
			name, decimal.RequireFromString("10"), 2002, domain.ItemKindDigital,
		)
		require.NoError(t, err)
		require.NoError(t, dbManager.ItemRepository().AddItem(ctx, item))
	}

	all, err := dbManager.ItemRepository().GetAvailableItems(ctx, domain.NewPage(1, 10))
	require.NoError(t, err)
	require.Len(t, all, 3)

	found, err := dbManager.ItemRepository().SearchAvailableItems(
		ctx, "KEY", domain.NewPage(1, 10),
	)
	require.NoError(t, err)
	require.Len(t, found, 2)

	paged, err := dbManager.ItemRepository().GetAvailableItems(ctx, domain.NewPage(2, 2))
	require.NoError(t, err)
	require.Len(t, paged, 1)
}

func TestRatingUniquePerRaterAndEscrow(t *testing.T) {
	ctx := context.Background()
	dbManager := newTestDb(t)

	first, err := domain.NewRating("1234567890", 1001, 2002, 5, "great")
	require.NoError(t, err)
	require.NoError(t, dbManager.RatingRepository().AddRating(ctx, first))

	duplicate, err := domain.NewRating("1234567890", 1001, 2002, 1, "")
	require.NoError(t, err)
	require.ErrorIs(
		t, dbManager.RatingRepository().AddRating(ctx, duplicate),
		domain.ErrRatingExists,
	)

	counterpart, err := domain.NewRating("1234567890", 2002, 1001, 4, "")
	require.NoError(t, err)
	require.NoError(t, dbManager.RatingRepository().AddRating(ctx, counterpart))

	ratings, err := dbManager.RatingRepository().GetRatingsForUser(
		ctx, 2002, domain.NewPage(1, 10),
	)
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	require.Equal(t, 5, ratings[0].Score)
}
