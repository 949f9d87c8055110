package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item offered by a restaurant.
type Product struct {
	ID             string
	Name           string
	Description    string
	Price          decimal.Decimal
	DiscountPrice  decimal.Decimal // zero when no discount is active
	ImageRef       string
	CategoryID     string
	RestaurantID   string
	RestaurantName string
	CreatedAt      time.Time
}

// EffectivePrice is the price to charge: the discount price when one is
// set, the list price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() {
		return p.DiscountPrice
	}
	return p.Price
}

// ListOptions narrows a product listing.
type ListOptions struct {
	NamePrefix   string
	RestaurantID string
	CategoryID   string
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) (string, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}
