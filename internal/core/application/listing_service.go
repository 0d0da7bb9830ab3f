package application

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/domain"
	"github.com/tradeguard-network/tradeguard-daemon/internal/core/ports"
)

// ListingService manages the catalog of items open for sale.
type ListingService interface {
	// Sell lists a new item on behalf of the seller.
	Sell(
		ctx context.Context,
		sellerId int64,
		name string,
		price decimal.Decimal,
		kind string,
	) (*domain.Item, error)
	// AvailableItems returns the paginated catalog of items open for sale.
	AvailableItems(ctx context.Context, page domain.Page) ([]domain.Item, error)
	// Search returns the available items matching the query.
	Search(ctx context.Context, query string, page domain.Page) ([]domain.Item, error)
	// ItemsForSeller returns all items listed by the given seller.
	ItemsForSeller(ctx context.Context, sellerId int64) ([]domain.Item, error)
	// CancelListing withdraws an item from sale. It fails with
	// ErrItemUnavailable while an escrow is open on the item.
	CancelListing(ctx context.Context, itemId string, actor int64) error
}

type listingService struct {
	dbManager ports.DbManager
}

// NewListingService returns a ListingService backed by the given db manager.
func NewListingService(dbManager ports.DbManager) ListingService {
	return &listingService{dbManager: dbManager}
}

func (s *listingService) Sell(
	ctx context.Context,
	sellerId int64,
	name string,
	price decimal.Decimal,
	kind string,
) (*domain.Item, error) {
	item, err := domain.NewItem(name, price, sellerId, kind)
	if err != nil {
		return nil, err
	}
	if err := s.dbManager.ItemRepository().AddItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *listingService) AvailableItems(
	ctx context.Context, page domain.Page,
) ([]domain.Item, error) {
	return s.dbManager.ItemRepository().GetAvailableItems(ctx, page)
}

func (s *listingService) Search(
	ctx context.Context, query string, page domain.Page,
) ([]domain.Item, error) {
	return s.dbManager.ItemRepository().SearchAvailableItems(ctx, query, page)
}

func (s *listingService) ItemsForSeller(
	ctx context.Context, sellerId int64,
) ([]domain.Item, error) {
	return s.dbManager.ItemRepository().GetItemsForSeller(ctx, sellerId)
}

func (s *listingService) CancelListing(
	ctx context.Context, itemId string, actor int64,
) error {
	_, err := s.dbManager.RunTransaction(
		ctx, false, func(ctx context.Context) (interface{}, error) {
			open, err := s.dbManager.EscrowRepository().GetOpenEscrowForItem(ctx, itemId)
			if err != nil {
				return nil, err
			}
			if open != nil {
				return nil, domain.ErrItemUnavailable
			}
			return nil, s.dbManager.ItemRepository().UpdateItem(
				ctx, itemId, func(i *domain.Item) (*domain.Item, error) {
					if err := i.CancelListing(actor); err != nil {
						return nil, err
					}
					return i, nil
				},
			)
		},
	)
	return err
}
