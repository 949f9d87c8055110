package queue

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBroker is a Broker over a single AMQP channel. Queues are
// declared durable at construction.
type RabbitMQBroker struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mu      sync.RWMutex
}

var _ Broker = (*RabbitMQBroker)(nil)

// NewRabbitMQBroker dials url, opens a channel, and declares the queues
// this service publishes to.
func NewRabbitMQBroker(url string) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to rabbitmq")
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if _, err := channel.QueueDeclare(
		QueueOrderNotifications,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare queue")
	}

	return &RabbitMQBroker{conn: conn, channel: channel}, nil
}

func (b *RabbitMQBroker) Publish(ctx context.Context, queueName string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	err := b.channel.PublishWithContext(ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         message,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return errors.Wrap(err, "publish message")
	}
	return nil
}

// Consume delivers messages from queueName until ctx ends. Deliveries
// require explicit Ack/Nack so a crashed worker leaves messages queued.
func (b *RabbitMQBroker) Consume(ctx context.Context, queueName string) (<-chan amqp.Delivery, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	deliveries, err := b.channel.ConsumeWithContext(ctx,
		queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrap(err, "consume queue")
	}
	return deliveries, nil
}

func (b *RabbitMQBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.channel.Close(); err != nil {
		b.conn.Close()
		return errors.Wrap(err, "close channel")
	}
	return b.conn.Close()
}
