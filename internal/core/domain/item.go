package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/thanhpk/randstr"
)

const (
	// ItemStatusAvailable ...
	ItemStatusAvailable = "available"
	// ItemStatusSold ...
	ItemStatusSold = "sold"
	// ItemStatusCancelled ...
	ItemStatusCancelled = "cancelled"

	// ItemKindDigital ...
	ItemKindDigital = "digital"
	// ItemKindPhysical ...
	ItemKindPhysical = "physical"

	itemIdLength = 8
	digits       = "0123456789"
)

// Item is the data structure representing a listed offer to sell.
type Item struct {
	Id        string
	Name      string
	Price     decimal.Decimal
	SellerId  int64
	Status    string
	Kind      string
	CreatedAt int64
}

// NewItem returns a new available item with a generated numeric id, after
// validating price and kind.
func NewItem(
	name string, price decimal.Decimal, sellerId int64, kind string,
) (*Item, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrItemInvalidPrice
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != ItemKindDigital && kind != ItemKindPhysical {
		return nil, ErrItemInvalidKind
	}

	return &Item{
		Id:        randstr.String(itemIdLength, digits),
		Name:      strings.TrimSpace(name),
		Price:     price,
		SellerId:  sellerId,
		Status:    ItemStatusAvailable,
		Kind:      kind,
		CreatedAt: time.Now().Unix(),
	}, nil
}

// IsAvailable returns whether the item can be referenced by a new offer.
func (i *Item) IsAvailable() bool {
	return i.Status == ItemStatusAvailable
}

// MarkSold brings an available item to the Sold status. It is invoked only
// when the escrow referencing the item completes with a seller payout.
func (i *Item) MarkSold() error {
	if !i.IsAvailable() {
		return ErrItemUnavailable
	}
	i.Status = ItemStatusSold
	return nil
}

// CancelListing withdraws an item from sale. Only the owning seller can
// cancel, and only while the item is still available.
func (i *Item) CancelListing(actor int64) error {
	if actor != i.SellerId {
		return ErrUnauthorized
	}
	if !i.IsAvailable() {
		return ErrItemUnavailable
	}
	i.Status = ItemStatusCancelled
	return nil
}
