// Package notify fans order events out to restaurant owners: a feed entry
// in the notifications collection plus a broker message for the push
// gateway. Both legs are best-effort from the checkout's point of view.
package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/domain/notification"
	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/domain/restaurant"
	"github.com/khanaeats/khana-api/internal/queue"
)

// PushMessage is the payload placed on the order-notifications queue for
// the push delivery gateway.
type PushMessage struct {
	OwnerID string `json:"owner_id"`
	OrderID string `json:"order_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Type    string `json:"type"`
}

// OrderNotifier implements order.Notifier. The broker may be nil, in which
// case only the feed entry is written.
type OrderNotifier struct {
	notifications notification.Repository
	restaurants   restaurant.Repository
	broker        queue.Broker
}

var _ order.Notifier = (*OrderNotifier)(nil)

func NewOrderNotifier(
	notifications notification.Repository,
	restaurants restaurant.Repository,
	broker queue.Broker,
) *OrderNotifier {
	return &OrderNotifier{
		notifications: notifications,
		restaurants:   restaurants,
		broker:        broker,
	}
}

// OrderPlaced notifies the owner of restaurantID about orderID. The feed
// entry and the push message are attempted independently; the first error
// is reported so the caller can log it.
func (n *OrderNotifier) OrderPlaced(ctx context.Context, restaurantID, orderID string) error {
	rest, err := n.restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return errors.Wrap(err, "resolve restaurant owner")
	}

	title := "New Order Received"
	message := "You have a new order #" + orderID

	_, feedErr := n.notifications.Create(ctx, &notification.Notification{
		UserID:  rest.OwnerID,
		Title:   title,
		Message: message,
		OrderID: orderID,
	})

	var pushErr error
	if n.broker != nil {
		payload, err := json.Marshal(PushMessage{
			OwnerID: rest.OwnerID,
			OrderID: orderID,
			Title:   title,
			Body:    message,
			Type:    "new_order",
		})
		if err == nil {
			pushErr = n.broker.Publish(ctx, queue.QueueOrderNotifications, payload)
		} else {
			pushErr = err
		}
	}

	if feedErr != nil {
		return errors.Wrap(feedErr, "write notification feed")
	}
	if pushErr != nil {
		return errors.Wrap(pushErr, "publish push message")
	}
	return nil
}
