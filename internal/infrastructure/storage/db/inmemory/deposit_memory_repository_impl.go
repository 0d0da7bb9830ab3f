package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type depositInmemoryStore struct {
	deposits map[string]domain.Deposit
	locker   *sync.Mutex
}

func newDepositInmemoryStore() *depositInmemoryStore {
	return &depositInmemoryStore{
		deposits: make(map[string]domain.Deposit),
		locker:   &sync.Mutex{},
	}
}

type depositRepositoryImpl struct {
	store *depositInmemoryStore
}

// NewDepositRepositoryImpl returns a new inmemory DepositRepository
// implementation.
func NewDepositRepositoryImpl(store *depositInmemoryStore) domain.DepositRepository {
	return &depositRepositoryImpl{store}
}

func (r depositRepositoryImpl) AddDeposit(
	_ context.Context, deposit domain.Deposit,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.deposits[deposit.TxId]; ok {
		return domain.ErrDepositAlreadyConsumed
	}
	r.store.deposits[deposit.TxId] = deposit
	return nil
}

func (r depositRepositoryImpl) GetDepositByTxId(
	_ context.Context, txid string,
) (*domain.Deposit, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	deposit, ok := r.store.deposits[txid]
	if !ok {
		return nil, domain.ErrDepositNotFound
	}
	return &deposit, nil
}

func (r depositRepositoryImpl) GetAllDeposits(
	_ context.Context, page domain.Page,
) ([]domain.Deposit, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	deposits := make([]domain.Deposit, 0, len(r.store.deposits))
	for _, deposit := range r.store.deposits {
		deposits = append(deposits, deposit)
	}
	sort.Slice(deposits, func(a, b int) bool {
		return deposits[a].Timestamp < deposits[b].Timestamp
	})

	from := (page.Number - 1) * page.Size
	if from >= len(deposits) {
		return []domain.Deposit{}, nil
	}
	to := from + page.Size
	if to > len(deposits) {
		to = len(deposits)
	}
	return deposits[from:to], nil
}
