package domain

import "context"

// ItemRepository is the abstraction for any kind of database intended to
// persist Items.
type ItemRepository interface {
	// AddItem stores a new item.
	AddItem(ctx context.Context, item *Item) error
	// GetItemById returns the item with the given id, or ErrItemNotFound.
	GetItemById(ctx context.Context, id string) (*Item, error)
	// GetAvailableItems returns the paginated list of items open for sale.
	GetAvailableItems(ctx context.Context, page Page) ([]Item, error)
	// SearchAvailableItems returns the available items whose name contains
	// the given query, case-insensitively.
	SearchAvailableItems(ctx context.Context, query string, page Page) ([]Item, error)
	// GetItemsForSeller returns all items listed by the given seller.
	GetItemsForSeller(ctx context.Context, sellerId int64) ([]Item, error)
	// UpdateItem commits the changes applied by updateFn to the stored item
	// in a transactional way.
	UpdateItem(
		ctx context.Context,
		id string,
		updateFn func(i *Item) (*Item, error),
	) error
}
