package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is an order's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether the move from s to next is allowed:
// pending may go to preparing, completed, or rejected; preparing may go to
// completed or rejected; terminal states admit nothing.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusPreparing || next == StatusCompleted || next == StatusRejected
	case StatusPreparing:
		return next == StatusCompleted || next == StatusRejected
	}
	return false
}

// Item is a cart line frozen into a placed order.
type Item struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	ImageRef       string          `json:"image_ref,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	RestaurantID   string          `json:"restaurant_id,omitempty"`
	RestaurantName string          `json:"restaurant_name,omitempty"`
}

// Order is the immutable checkout aggregate. Items is a snapshot taken at
// checkout; later cart mutations never reach a placed order.
type Order struct {
	ID               string
	CustomerID       string
	CustomerName     string
	Phone            string
	DeliveryLocation string
	Items            []Item
	ItemsSubtotal    decimal.Decimal
	DeliveryCharge   decimal.Decimal
	GrandTotal       decimal.Decimal
	Status           Status
	RestaurantIDs    []string
	CreatedAt        time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) (string, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Delete(ctx context.Context, id string) error
}

// Notifier fans an order event out to one restaurant owner. Delivery is
// best-effort: a failure is logged by the caller and never fails the
// checkout.
type Notifier interface {
	OrderPlaced(ctx context.Context, restaurantID, orderID string) error
}
