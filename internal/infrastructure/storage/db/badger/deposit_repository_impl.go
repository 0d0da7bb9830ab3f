package dbbadger

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type depositRepositoryImpl struct {
	db *DbManager
}

func newDepositRepositoryImpl(db *DbManager) domain.DepositRepository {
	return depositRepositoryImpl{db: db}
}

func (d depositRepositoryImpl) AddDeposit(
	ctx context.Context, deposit domain.Deposit,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = d.db.ledgerStore.TxInsert(tx, deposit.TxId, &deposit)
	} else {
		err = d.db.ledgerStore.Insert(deposit.TxId, &deposit)
	}
	if err != nil {
		if err == badgerhold.ErrKeyExists || err == badgerhold.ErrUniqueExists {
			return domain.ErrDepositAlreadyConsumed
		}
		return err
	}
	return nil
}

func (d depositRepositoryImpl) GetDepositByTxId(
	ctx context.Context, txid string,
) (*domain.Deposit, error) {
	var deposit domain.Deposit
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = d.db.ledgerStore.TxGet(tx, txid, &deposit)
	} else {
		err = d.db.ledgerStore.Get(txid, &deposit)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrDepositNotFound
		}
		return nil, err
	}

	return &deposit, nil
}

func (d depositRepositoryImpl) GetAllDeposits(
	ctx context.Context, page domain.Page,
) ([]domain.Deposit, error) {
	query := badgerhold.
		Where("Timestamp").Ge(int64(0)).
		SortBy("Timestamp").
		Skip((page.Number - 1) * page.Size).
		Limit(page.Size)

	var deposits []domain.Deposit
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = d.db.ledgerStore.TxFind(tx, &deposits, query)
	} else {
		err = d.db.ledgerStore.Find(&deposits, query)
	}

	return deposits, err
}
