package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/khanaeats/khana-api/internal/domain/cart"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrMissingDeliveryInfo = errors.New("phone and delivery location are required")
	ErrNotDeletable        = errors.New("only completed orders may be deleted")
)

// InvalidTransitionError reports a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid status transition " + string(e.From) + " -> " + string(e.To)
}

// CustomerInfo holds the checkout contact details. CustomerID comes from
// the auth token, never from the request body.
type CustomerInfo struct {
	CustomerID       string
	CustomerName     string
	Phone            string
	DeliveryLocation string
}

// ServiceConfig tunes the checkout service.
type ServiceConfig struct {
	// DeliveryCharge is the flat fee added to every order.
	DeliveryCharge decimal.Decimal
	// PlaceTimeout bounds the order persistence write; expiry counts as a
	// persistence failure and the cart is left intact.
	PlaceTimeout time.Duration
}

// Service assembles orders from cart snapshots and drives the status
// lifecycle.
type Service struct {
	orders         Repository
	notifier       Notifier
	deliveryCharge decimal.Decimal
	placeTimeout   time.Duration
	placedCounter  metric.Int64Counter
}

// NewService creates the order Service. The counter may be nil when no
// meter is wired (tests).
func NewService(orders Repository, notifier Notifier, cfg ServiceConfig, placed metric.Int64Counter) *Service {
	if cfg.PlaceTimeout <= 0 {
		cfg.PlaceTimeout = 10 * time.Second
	}
	return &Service{
		orders:         orders,
		notifier:       notifier,
		deliveryCharge: cfg.DeliveryCharge,
		placeTimeout:   cfg.PlaceTimeout,
		placedCounter:  placed,
	}
}

// Checkout converts the ledger's current lines into an immutable Order,
// persists it, fans out owner notifications, and clears the cart.
//
// Ordering guarantee: the cart is cleared only after the order write has
// been observed to succeed. If persistence fails (or times out) the cart
// is untouched and the error surfaces to the caller. Notification failures
// are logged and never fail a checkout once the order is persisted.
func (s *Service) Checkout(ctx context.Context, ledger cart.Ledger, info CustomerInfo) (string, error) {
	lines, err := ledger.Lines(ctx)
	if err != nil {
		return "", errors.Wrap(err, "read cart")
	}
	if len(lines) == 0 {
		return "", ErrEmptyCart
	}
	if info.Phone == "" || info.DeliveryLocation == "" {
		return "", ErrMissingDeliveryInfo
	}

	o := s.assemble(lines, info)

	writeCtx, cancel := context.WithTimeout(ctx, s.placeTimeout)
	defer cancel()
	id, err := s.orders.Create(writeCtx, o)
	if err != nil {
		return "", errors.Wrap(err, "create order")
	}
	o.ID = id

	if s.placedCounter != nil {
		s.placedCounter.Add(ctx, 1)
	}

	s.fanOut(ctx, o)

	// The order is the durable fact at this point; a failed clear leaves
	// residue in the cart but must not report the checkout as failed.
	if err := ledger.Clear(ctx); err != nil {
		zctx.From(ctx).Error("cart clear after checkout failed",
			zap.String("order_id", id), zap.Error(err))
	}

	return id, nil
}

// assemble snapshots the lines into an Order aggregate with derived
// totals and the distinct restaurant set, first-seen order preserved.
func (s *Service) assemble(lines []cart.Line, info CustomerInfo) *Order {
	items := make([]Item, len(lines))
	subtotal := decimal.Zero
	seen := make(map[string]struct{})
	var restaurantIDs []string

	for i, line := range lines {
		total := line.TotalPrice()
		items[i] = Item{
			ProductID:      line.ProductID,
			Name:           line.Name,
			ImageRef:       line.ImageRef,
			UnitPrice:      line.UnitPrice,
			Quantity:       line.Quantity,
			TotalPrice:     total,
			RestaurantID:   line.RestaurantID,
			RestaurantName: line.RestaurantName,
		}
		subtotal = subtotal.Add(total)

		if line.RestaurantID != "" {
			if _, ok := seen[line.RestaurantID]; !ok {
				seen[line.RestaurantID] = struct{}{}
				restaurantIDs = append(restaurantIDs, line.RestaurantID)
			}
		}
	}

	return &Order{
		CustomerID:       info.CustomerID,
		CustomerName:     info.CustomerName,
		Phone:            info.Phone,
		DeliveryLocation: info.DeliveryLocation,
		Items:            items,
		ItemsSubtotal:    subtotal,
		DeliveryCharge:   s.deliveryCharge,
		GrandTotal:       subtotal.Add(s.deliveryCharge),
		Status:           StatusPending,
		RestaurantIDs:    restaurantIDs,
	}
}

// fanOut notifies each restaurant owner about the new order.
func (s *Service) fanOut(ctx context.Context, o *Order) {
	if s.notifier == nil || len(o.RestaurantIDs) == 0 {
		return
	}

	g, fanCtx := errgroup.WithContext(ctx)
	for _, restaurantID := range o.RestaurantIDs {
		g.Go(func() error {
			if err := s.notifier.OrderPlaced(fanCtx, restaurantID, o.ID); err != nil {
				zctx.From(ctx).Warn("order notification failed",
					zap.String("order_id", o.ID),
					zap.String("restaurant_id", restaurantID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// UpdateStatus applies a lifecycle transition, rejecting moves the state
// machine forbids (including any move out of a terminal state).
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	return s.orders.UpdateStatus(ctx, id, next)
}

// Delete removes a completed order. Deleting is a lifecycle event distinct
// from status transitions and only applies to completed orders.
func (s *Service) Delete(ctx context.Context, id string) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != StatusCompleted {
		return ErrNotDeletable
	}
	return s.orders.Delete(ctx, id)
}
