package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type escrowRepositoryImpl struct {
	db *DbManager
}

func newEscrowRepositoryImpl(db *DbManager) domain.EscrowRepository {
	return escrowRepositoryImpl{db: db}
}

func (e escrowRepositoryImpl) AddEscrow(
	ctx context.Context, escrow *domain.Escrow,
) error {
	return e.insertEscrow(ctx, *escrow)
}

func (e escrowRepositoryImpl) GetEscrowByReference(
	ctx context.Context, reference string,
) (*domain.Escrow, error) {
	return e.getEscrow(ctx, reference)
}

func (e escrowRepositoryImpl) GetEscrowsForStatus(
	ctx context.Context, statusCode int,
) ([]domain.Escrow, error) {
	query := badgerhold.Where("Status").Eq(statusCode)
	return e.findEscrows(ctx, query)
}

func (e escrowRepositoryImpl) GetOpenEscrowForItem(
	ctx context.Context, itemId string,
) (*domain.Escrow, error) {
	query := badgerhold.Where("ItemId").Eq(itemId).And("Status").In(
		domain.EscrowStatusCodePending,
		domain.EscrowStatusCodeAccepted,
		domain.EscrowStatusCodeDepositConfirmed,
		domain.EscrowStatusCodeDepositOverpaid,
	)

	escrows, err := e.findEscrows(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(escrows) <= 0 {
		return nil, nil
	}
	return &escrows[0], nil
}

func (e escrowRepositoryImpl) UpdateEscrow(
	ctx context.Context,
	reference string,
	updateFn func(escrow *domain.Escrow) (*domain.Escrow, error),
) error {
	currentEscrow, err := e.getEscrow(ctx, reference)
	if err != nil {
		return err
	}

	updatedEscrow, err := updateFn(currentEscrow)
	if err != nil {
		return err
	}

	return e.updateEscrow(ctx, reference, *updatedEscrow)
}

func (e escrowRepositoryImpl) getEscrow(
	ctx context.Context, reference string,
) (*domain.Escrow, error) {
	var escrow domain.Escrow
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = e.db.ledgerStore.TxGet(tx, reference, &escrow)
	} else {
		err = e.db.ledgerStore.Get(reference, &escrow)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrEscrowNotFound
		}
		return nil, err
	}

	return &escrow, nil
}

func (e escrowRepositoryImpl) findEscrows(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Escrow, error) {
	var escrows []domain.Escrow
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = e.db.ledgerStore.TxFind(tx, &escrows, query)
	} else {
		err = e.db.ledgerStore.Find(&escrows, query)
	}

	return escrows, err
}

func (e escrowRepositoryImpl) insertEscrow(
	ctx context.Context, escrow domain.Escrow,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = e.db.ledgerStore.TxInsert(tx, escrow.Reference, &escrow)
	} else {
		err = e.db.ledgerStore.Insert(escrow.Reference, &escrow)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}

func (e escrowRepositoryImpl) updateEscrow(
	ctx context.Context, reference string, escrow domain.Escrow,
) error {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		return e.db.ledgerStore.TxUpdate(tx, reference, escrow)
	}
	return e.db.ledgerStore.Update(reference, escrow)
}
