package dbbadger

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type itemRepositoryImpl struct {
	db *DbManager
}

func newItemRepositoryImpl(db *DbManager) domain.ItemRepository {
	return itemRepositoryImpl{db: db}
}

func (i itemRepositoryImpl) AddItem(
	ctx context.Context, item *domain.Item,
) error {
	return i.insertItem(ctx, *item)
}

func (i itemRepositoryImpl) GetItemById(
	ctx context.Context, id string,
) (*domain.Item, error) {
	return i.getItem(ctx, id)
}

func (i itemRepositoryImpl) GetAvailableItems(
	ctx context.Context, page domain.Page,
) ([]domain.Item, error) {
	query := badgerhold.
		Where("Status").Eq(domain.ItemStatusAvailable).
		SortBy("CreatedAt").
		Skip((page.Number - 1) * page.Size).
		Limit(page.Size)
	return i.findItems(ctx, query)
}

func (i itemRepositoryImpl) SearchAvailableItems(
	ctx context.Context, searchQuery string, page domain.Page,
) ([]domain.Item, error) {
	needle := strings.ToLower(searchQuery)
	query := badgerhold.
		Where("Status").Eq(domain.ItemStatusAvailable).
		And("Name").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
			item, ok := ra.Record().(*domain.Item)
			if !ok {
				return false, nil
			}
			return strings.Contains(strings.ToLower(item.Name), needle), nil
		}).
		SortBy("CreatedAt").
		Skip((page.Number - 1) * page.Size).
		Limit(page.Size)
	return i.findItems(ctx, query)
}

func (i itemRepositoryImpl) GetItemsForSeller(
	ctx context.Context, sellerId int64,
) ([]domain.Item, error) {
	query := badgerhold.Where("SellerId").Eq(sellerId).SortBy("CreatedAt")
	return i.findItems(ctx, query)
}

func (i itemRepositoryImpl) UpdateItem(
	ctx context.Context,
	id string,
	updateFn func(item *domain.Item) (*domain.Item, error),
) error {
	currentItem, err := i.getItem(ctx, id)
	if err != nil {
		return err
	}

	updatedItem, err := updateFn(currentItem)
	if err != nil {
		return err
	}

	return i.updateItem(ctx, id, *updatedItem)
}

func (i itemRepositoryImpl) getItem(
	ctx context.Context, id string,
) (*domain.Item, error) {
	var item domain.Item
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = i.db.ledgerStore.TxGet(tx, id, &item)
	} else {
		err = i.db.ledgerStore.Get(id, &item)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}

	return &item, nil
}

func (i itemRepositoryImpl) findItems(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Item, error) {
	var items []domain.Item
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = i.db.ledgerStore.TxFind(tx, &items, query)
	} else {
		err = i.db.ledgerStore.Find(&items, query)
	}

	return items, err
}

func (i itemRepositoryImpl) insertItem(
	ctx context.Context, item domain.Item,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = i.db.ledgerStore.TxInsert(tx, item.Id, &item)
	} else {
		err = i.db.ledgerStore.Insert(item.Id, &item)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}

func (i itemRepositoryImpl) updateItem(
	ctx context.Context, id string, item domain.Item,
) error {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		return i.db.ledgerStore.TxUpdate(tx, id, item)
	}
	return i.db.ledgerStore.Update(id, item)
}
