package inmemory

import (
	"context"
	"sync"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
)

// DbManager is the in-memory counterpart of the badger implementation, used
// in tests. Transactions degrade to a process-wide lock: the handler runs
// alone, but partial writes of a failed handler are not rolled back.
type DbManager struct {
	locker sync.Mutex

	itemRepository    domain.ItemRepository
	escrowRepository  domain.EscrowRepository
	depositRepository domain.DepositRepository
	ratingRepository  domain.RatingRepository
}

func NewDbManager() ports.DbManager {
	return &DbManager{
		itemRepository:    NewItemRepositoryImpl(newItemInmemoryStore()),
		escrowRepository:  NewEscrowRepositoryImpl(newEscrowInmemoryStore()),
		depositRepository: NewDepositRepositoryImpl(newDepositInmemoryStore()),
		ratingRepository:  NewRatingRepositoryImpl(newRatingInmemoryStore()),
	}
}

func (d *DbManager) ItemRepository() domain.ItemRepository {
	return d.itemRepository
}

func (d *DbManager) EscrowRepository() domain.EscrowRepository {
	return d.escrowRepository
}

func (d *DbManager) DepositRepository() domain.DepositRepository {
	return d.depositRepository
}

func (d *DbManager) RatingRepository() domain.RatingRepository {
	return d.ratingRepository
}

func (d *DbManager) RunTransaction(
	ctx context.Context,
	_ bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	d.locker.Lock()
	defer d.locker.Unlock()

	return handler(ctx)
}

func (d *DbManager) RunRatingsTransaction(
	ctx context.Context,
	readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	return d.RunTransaction(ctx, readOnly, handler)
}

func (d *DbManager) Close() error { return nil }
