package inmemory

import (
	"context"
	"sync"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type escrowInmemoryStore struct {
	escrows map[string]*domain.Escrow
	locker  *sync.Mutex
}

func newEscrowInmemoryStore() *escrowInmemoryStore {
	return &escrowInmemoryStore{
		escrows: make(map[string]*domain.Escrow),
		locker:  &sync.Mutex{},
	}
}

type escrowRepositoryImpl struct {
	store *escrowInmemoryStore
}

// NewEscrowRepositoryImpl returns a new inmemory EscrowRepository
// implementation.
func NewEscrowRepositoryImpl(store *escrowInmemoryStore) domain.EscrowRepository {
	return &escrowRepositoryImpl{store}
}

func (r escrowRepositoryImpl) AddEscrow(
	_ context.Context, escrow *domain.Escrow,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.escrows[escrow.Reference]; ok {
		return nil
	}
	clone := *escrow
	r.store.escrows[escrow.Reference] = &clone
	return nil
}

func (r escrowRepositoryImpl) GetEscrowByReference(
	_ context.Context, reference string,
) (*domain.Escrow, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getEscrow(reference)
}

func (r escrowRepositoryImpl) GetEscrowsForStatus(
	_ context.Context, statusCode int,
) ([]domain.Escrow, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	escrows := make([]domain.Escrow, 0)
	for _, escrow := range r.store.escrows {
		if escrow.Status == statusCode {
			escrows = append(escrows, *escrow)
		}
	}
	return escrows, nil
}

func (r escrowRepositoryImpl) GetOpenEscrowForItem(
	_ context.Context, itemId string,
) (*domain.Escrow, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, escrow := range r.store.escrows {
		if escrow.ItemId == itemId && !escrow.IsTerminal() {
			clone := *escrow
			return &clone, nil
		}
	}
	return nil, nil
}

func (r escrowRepositoryImpl) UpdateEscrow(
	_ context.Context,
	reference string,
	updateFn func(e *domain.Escrow) (*domain.Escrow, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentEscrow, err := r.getEscrow(reference)
	if err != nil {
		return err
	}

	updatedEscrow, err := updateFn(currentEscrow)
	if err != nil {
		return err
	}

	r.store.escrows[reference] = updatedEscrow
	return nil
}

func (r escrowRepositoryImpl) getEscrow(
	reference string,
) (*domain.Escrow, error) {
	escrow, ok := r.store.escrows[reference]
	if !ok {
		return nil, domain.ErrEscrowNotFound
	}
	clone := *escrow
	return &clone, nil
}
