// Package cart implements the cart ledger: one line per product per user,
// quantity merging on repeated adds, derived totals, and atomic clearing.
// Two interchangeable adapters back the Ledger interface: MemoryLedger for
// a session-local cart and StoreLedger for the per-user remote
// subcollection.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/domain/product"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrNotFound is returned when no line exists for the product.
	ErrNotFound = errors.New("cart line not found")
)

// Line is one product held in a cart. UnitPrice is fixed at first
// insertion (the discount price when one was active) and never re-read
// from the catalog, so a later price change cannot drift a cart mid-order.
type Line struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	ImageRef       string          `json:"image_ref,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	OriginalPrice  decimal.Decimal `json:"original_price"`
	Quantity       int             `json:"quantity"`
	RestaurantID   string          `json:"restaurant_id,omitempty"`
	RestaurantName string          `json:"restaurant_name,omitempty"`
}

// TotalPrice is always derived, never stored: unit price times quantity.
func (l Line) TotalPrice() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// newLine builds the line inserted on a product's first add.
func newLine(p product.Product, quantity int) Line {
	return Line{
		ProductID:      p.ID,
		Name:           p.Name,
		ImageRef:       p.ImageRef,
		UnitPrice:      p.EffectivePrice(),
		OriginalPrice:  p.Price,
		Quantity:       quantity,
		RestaurantID:   p.RestaurantID,
		RestaurantName: p.RestaurantName,
	}
}

// Ledger is the cart boundary the UI and checkout flow program against.
//
// Invariants every implementation holds:
//   - at most one line per product id; AddItem merges by incrementing
//   - a merged add keeps the existing line's unit price
//   - UpdateQuantity below 1 removes the line instead of erroring
//   - RemoveItem is idempotent
//   - Clear removes all lines atomically
type Ledger interface {
	AddItem(ctx context.Context, p product.Product, quantity int) error
	UpdateQuantity(ctx context.Context, productID string, quantity int) error
	RemoveItem(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
	Lines(ctx context.Context) ([]Line, error)
	TotalItems(ctx context.Context) (int, error)
	TotalPrice(ctx context.Context) (decimal.Decimal, error)
}

// SumItems returns the total quantity across lines.
func SumItems(lines []Line) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

// SumPrice returns the total price across lines, recomputed from unit
// prices and quantities.
func SumPrice(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.TotalPrice())
	}
	return total
}
