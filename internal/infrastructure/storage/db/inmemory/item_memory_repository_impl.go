package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
)

type itemInmemoryStore struct {
	items  map[string]*domain.Item
	locker *sync.Mutex
}

func newItemInmemoryStore() *itemInmemoryStore {
	return &itemInmemoryStore{
		items:  make(map[string]*domain.Item),
		locker: &sync.Mutex{},
	}
}

type itemRepositoryImpl struct {
	store *itemInmemoryStore
}

// NewItemRepositoryImpl returns a new inmemory ItemRepository implementation.
func NewItemRepositoryImpl(store *itemInmemoryStore) domain.ItemRepository {
	return &itemRepositoryImpl{store}
}

func (r itemRepositoryImpl) AddItem(
	_ context.Context, item *domain.Item,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.items[item.Id]; ok {
		return nil
	}
	clone := *item
	r.store.items[item.Id] = &clone
	return nil
}

func (r itemRepositoryImpl) GetItemById(
	_ context.Context, id string,
) (*domain.Item, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getItem(id)
}

func (r itemRepositoryImpl) GetAvailableItems(
	_ context.Context, page domain.Page,
) ([]domain.Item, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	items := r.selectItems(func(i *domain.Item) bool {
		return i.IsAvailable()
	})
	return paginateItems(items, page), nil
}

func (r itemRepositoryImpl) SearchAvailableItems(
	_ context.Context, query string, page domain.Page,
) ([]domain.Item, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	needle := strings.ToLower(query)
	items := r.selectItems(func(i *domain.Item) bool {
		return i.IsAvailable() &&
			strings.Contains(strings.ToLower(i.Name), needle)
	})
	return paginateItems(items, page), nil
}

func (r itemRepositoryImpl) GetItemsForSeller(
	_ context.Context, sellerId int64,
) ([]domain.Item, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.selectItems(func(i *domain.Item) bool {
		return i.SellerId == sellerId
	}), nil
}

func (r itemRepositoryImpl) UpdateItem(
	_ context.Context,
	id string,
	updateFn func(i *domain.Item) (*domain.Item, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentItem, err := r.getItem(id)
	if err != nil {
		return err
	}

	updatedItem, err := updateFn(currentItem)
	if err != nil {
		return err
	}

	r.store.items[id] = updatedItem
	return nil
}

func (r itemRepositoryImpl) getItem(id string) (*domain.Item, error) {
	item, ok := r.store.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	clone := *item
	return &clone, nil
}

func (r itemRepositoryImpl) selectItems(
	match func(i *domain.Item) bool,
) []domain.Item {
	items := make([]domain.Item, 0)
	for _, item := range r.store.items {
		if match(item) {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(a, b int) bool {
		return items[a].CreatedAt < items[b].CreatedAt
	})
	return items
}

func paginateItems(items []domain.Item, page domain.Page) []domain.Item {
	from := (page.Number - 1) * page.Size
	if from >= len(items) {
		return []domain.Item{}
	}
	to := from + page.Size
	if to > len(items) {
		to = len(items)
	}
	return items[from:to]
}
