// Binary notify-worker drains the order-notifications queue and delivers
// push messages to the configured gateway. The recipient's device token is
// resolved from their profile; messages for token-less users are dropped.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore/mongostore"
	"github.com/khanaeats/khana-api/internal/domain/user"
	"github.com/khanaeats/khana-api/internal/notify"
	"github.com/khanaeats/khana-api/internal/queue"
	"github.com/khanaeats/khana-api/internal/storage/docrepo"
)

func main() {
	var (
		amqpURL    string
		mongoURI   string
		database   string
		gatewayURL string
	)
	flag.StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (or AMQP_URL env)")
	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGO_URI env)")
	flag.StringVar(&database, "database", "khana", "database name")
	flag.StringVar(&gatewayURL, "gateway-url", "", "push gateway endpoint (or PUSH_GATEWAY_URL env)")
	flag.Parse()

	if amqpURL == "" {
		amqpURL = os.Getenv("AMQP_URL")
	}
	if mongoURI == "" {
		mongoURI = os.Getenv("MONGO_URI")
	}
	if gatewayURL == "" {
		gatewayURL = os.Getenv("PUSH_GATEWAY_URL")
	}
	if amqpURL == "" || mongoURI == "" || gatewayURL == "" {
		slog.Error("amqp URL, mongo URI, and gateway URL are all required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, amqpURL, mongoURI, database, gatewayURL); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, amqpURL, mongoURI, database, gatewayURL string) error {
	store, err := mongostore.New(ctx, mongostore.Config{URI: mongoURI, Database: database})
	if err != nil {
		return errors.Wrap(err, "connect document store")
	}
	defer func() {
		_ = store.Close(context.Background())
	}()

	broker, err := queue.NewRabbitMQBroker(amqpURL)
	if err != nil {
		return errors.Wrap(err, "connect broker")
	}
	defer broker.Close()

	deliveries, err := broker.Consume(ctx, queue.QueueOrderNotifications)
	if err != nil {
		return err
	}

	users := docrepo.NewUserRepository(store)
	client := &http.Client{Timeout: 10 * time.Second}

	slog.Info("worker started", slog.String("queue", queue.QueueOrderNotifications))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}

			var msg notify.PushMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				slog.Warn("dropping malformed message", slog.String("error", err.Error()))
				_ = d.Nack(false, false)
				continue
			}

			if err := deliver(ctx, client, users, gatewayURL, msg); err != nil {
				slog.Error("delivery failed, requeueing",
					slog.String("order_id", msg.OrderID),
					slog.String("error", err.Error()),
				)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// gatewayPayload is the push gateway's wire format.
type gatewayPayload struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Data  struct {
		OrderID string `json:"order_id"`
		Type    string `json:"type"`
	} `json:"data"`
}

func deliver(ctx context.Context, client *http.Client, users user.Repository, gatewayURL string, msg notify.PushMessage) error {
	u, err := users.GetByID(ctx, msg.OwnerID)
	if errors.Is(err, user.ErrNotFound) {
		slog.Warn("recipient not found, dropping", slog.String("owner_id", msg.OwnerID))
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "resolve recipient")
	}
	if u.PushToken == "" {
		slog.Info("recipient has no push token, dropping", slog.String("owner_id", msg.OwnerID))
		return nil
	}

	payload := gatewayPayload{Token: u.PushToken, Title: msg.Title, Body: msg.Body}
	payload.Data.OrderID = msg.OrderID
	payload.Data.Type = msg.Type

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gatewayURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post to gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Errorf("gateway responded %s", resp.Status)
	}

	slog.Info("delivered push",
		slog.String("owner_id", msg.OwnerID),
		slog.String("order_id", msg.OrderID),
	)
	return nil
}
