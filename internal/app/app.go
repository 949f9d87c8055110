// Package app wires the service together: document store, message broker,
// repositories, domain services, HTTP surface, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/docstore/mongostore"
	"github.com/khanaeats/khana-api/internal/domain/cart"
	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/handler"
	"github.com/khanaeats/khana-api/internal/notify"
	"github.com/khanaeats/khana-api/internal/queue"
	"github.com/khanaeats/khana-api/internal/storage/docrepo"
	"github.com/khanaeats/khana-api/pkg/health"
	"github.com/khanaeats/khana-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	store, err := mongostore.New(ctx, mongostore.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	if err != nil {
		return errors.Wrap(err, "connect document store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			lg.Warn("Document store close", zap.Error(err))
		}
	}()

	// Push notification broker is optional: without it owners still get
	// their in-app feed entries.
	var broker queue.Broker
	if cfg.AMQPURL != "" {
		b, err := queue.NewRabbitMQBroker(cfg.AMQPURL)
		if err != nil {
			return errors.Wrap(err, "connect broker")
		}
		defer func() {
			if err := b.Close(); err != nil {
				lg.Warn("Broker close", zap.Error(err))
			}
		}()
		broker = b
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("mongodb", 5*time.Second, health.PingCheck(store))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := docrepo.NewProductRepository(store)
	restaurantRepo := docrepo.NewRestaurantRepository(store)
	categoryRepo := docrepo.NewCategoryRepository(store)
	userRepo := docrepo.NewUserRepository(store)
	notificationRepo := docrepo.NewNotificationRepository(store)
	orderRepo := docrepo.NewOrderRepository(store)

	// Domain services.
	deliveryCharge, err := cfg.DeliveryChargeAmount()
	if err != nil {
		return err
	}
	notifier := notify.NewOrderNotifier(notificationRepo, restaurantRepo, broker)

	meter := m.MeterProvider().Meter("khana-api")
	placedCounter, err := meter.Int64Counter("orders_placed")
	if err != nil {
		return errors.Wrap(err, "create orders counter")
	}
	orderService := order.NewService(orderRepo, notifier, order.ServiceConfig{
		DeliveryCharge: deliveryCharge,
		PlaceTimeout:   cfg.PlaceTimeout,
	}, placedCounter)

	carts := cartFactory(cfg.CartBackend, store)

	h := handler.New(
		handler.Config{JWTSecret: []byte(cfg.JWTSecret)},
		productRepo,
		restaurantRepo,
		categoryRepo,
		userRepo,
		notificationRepo,
		orderRepo,
		orderService,
		carts,
		store,
	)

	api := otelhttp.NewHandler(h.Routes(), "khana-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", api))

	// No WriteTimeout: the websocket streams are long-lived.
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, let load balancers drain, then
	// stop the server.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// cartFactory selects the ledger implementation behind the cart routes.
// Remote carts live as one document per line in the user's subcollection;
// memory carts live in-process and persist whole-cart snapshots.
func cartFactory(backend string, store docstore.Store) handler.LedgerFactory {
	if backend == "memory" {
		persist := docrepo.NewCartSnapshotPersister(store)
		return func(ctx context.Context, userID string) cart.Ledger {
			return cart.NewMemoryLedger(ctx, userID, persist)
		}
	}
	return func(_ context.Context, userID string) cart.Ledger {
		return cart.NewStoreLedger(store, userID)
	}
}
