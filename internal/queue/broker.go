// Package queue abstracts the message broker carrying push-notification
// events to the delivery gateway.
package queue

import "context"

// Broker publishes messages to a named queue.
type Broker interface {
	Publish(ctx context.Context, queueName string, message []byte) error
	Close() error
}

// QueueOrderNotifications carries new-order events for restaurant owners.
const QueueOrderNotifications = "order-notifications"
