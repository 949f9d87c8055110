package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository persists orders in the orders collection. Items are
// stored as a nested document list; decimal amounts as strings.
type OrderRepository struct {
	store docstore.Store
}

func NewOrderRepository(store docstore.Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (string, error) {
	items := make([]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"product_id":      it.ProductID,
			"name":            it.Name,
			"image_ref":       it.ImageRef,
			"unit_price":      it.UnitPrice.String(),
			"quantity":        int64(it.Quantity),
			"total_price":     it.TotalPrice.String(),
			"restaurant_id":   it.RestaurantID,
			"restaurant_name": it.RestaurantName,
		}
	}

	id, err := r.store.Add(ctx, ordersPath, map[string]any{
		"customer_id":       o.CustomerID,
		"customer_name":     o.CustomerName,
		"phone":             o.Phone,
		"delivery_location": o.DeliveryLocation,
		"items":             items,
		"items_subtotal":    o.ItemsSubtotal.String(),
		"delivery_charge":   o.DeliveryCharge.String(),
		"grand_total":       o.GrandTotal.String(),
		"status":            string(o.Status),
		"restaurant_ids":    o.RestaurantIDs,
		"created_at":        docstore.ServerTimestamp,
	})
	if err != nil {
		return "", errors.Wrap(err, "create order")
	}
	return id, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	doc, err := r.store.Get(ctx, ordersPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	o := DecodeOrder(doc)
	return &o, nil
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.list(ctx, docstore.Filter{Field: "customer_id", Op: docstore.OpEqual, Value: customerID})
}

// ListByRestaurant matches against the restaurant_ids array; equality on
// an array field is membership in both store backends.
func (r *OrderRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]order.Order, error) {
	return r.list(ctx, docstore.Filter{Field: "restaurant_ids", Op: docstore.OpEqual, Value: restaurantID})
}

func (r *OrderRepository) list(ctx context.Context, filter docstore.Filter) ([]order.Order, error) {
	docs, err := r.store.Query(ctx, ordersPath, docstore.Query{
		Filters:    []docstore.Filter{filter},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}

	out := make([]order.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, DecodeOrder(doc))
	}
	return out, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	err := r.store.Update(ctx, ordersPath, id, map[string]any{
		"status":     string(status),
		"updated_at": docstore.ServerTimestamp,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return order.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, ordersPath, id); err != nil {
		return errors.Wrap(err, "delete order")
	}
	return nil
}

// DecodeOrder converts an order document back into the aggregate. Exposed
// for live query streams that read the collection directly.
func DecodeOrder(doc docstore.Document) order.Order {
	o := order.Order{
		ID:               doc.ID,
		CustomerID:       doc.Str("customer_id"),
		CustomerName:     doc.Str("customer_name"),
		Phone:            doc.Str("phone"),
		DeliveryLocation: doc.Str("delivery_location"),
		ItemsSubtotal:    dec(doc, "items_subtotal"),
		DeliveryCharge:   dec(doc, "delivery_charge"),
		GrandTotal:       dec(doc, "grand_total"),
		Status:           order.Status(doc.Str("status")),
		RestaurantIDs:    doc.Strings("restaurant_ids"),
		CreatedAt:        doc.CreatedAt,
	}

	if raw, ok := doc.Fields["items"].([]any); ok {
		for _, e := range raw {
			fields, ok := e.(map[string]any)
			if !ok {
				continue
			}
			item := docstore.Document{Fields: fields}
			o.Items = append(o.Items, order.Item{
				ProductID:      item.Str("product_id"),
				Name:           item.Str("name"),
				ImageRef:       item.Str("image_ref"),
				UnitPrice:      dec(item, "unit_price"),
				Quantity:       int(item.Int("quantity")),
				TotalPrice:     dec(item, "total_price"),
				RestaurantID:   item.Str("restaurant_id"),
				RestaurantName: item.Str("restaurant_name"),
			})
		}
	}
	return o
}
