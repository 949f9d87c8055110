// Binary seed-db loads a fixture file into the document store: users,
// categories, restaurants, and menu items. Stable IDs from the fixture are
// upserted, so re-running converges instead of duplicating.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/docstore/mongostore"
)

type fixture struct {
	Users []struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Phone     string `json:"phone"`
		Role      string `json:"role"`
		PushToken string `json:"push_token"`
	} `json:"users"`
	Categories []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ImageRef string `json:"image_ref"`
	} `json:"categories"`
	Restaurants []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Address  string `json:"address"`
		ImageRef string `json:"image_ref"`
		OwnerID  string `json:"owner_id"`
	} `json:"restaurants"`
	Items []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
		Price          string `json:"price"`
		DiscountPrice  string `json:"discount_price"`
		ImageRef       string `json:"image_ref"`
		CategoryID     string `json:"category_id"`
		RestaurantID   string `json:"restaurant_id"`
		RestaurantName string `json:"restaurant_name"`
	} `json:"items"`
}

func main() {
	var (
		mongoURI string
		database string
		seedFile string
	)
	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGO_URI env)")
	flag.StringVar(&database, "database", "khana", "database name")
	flag.StringVar(&seedFile, "seed-file", "db/seed/fixture.json", "path to fixture JSON file")
	flag.Parse()

	if mongoURI == "" {
		mongoURI = os.Getenv("MONGO_URI")
	}
	if mongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGO_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, mongoURI, database, seedFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, mongoURI, database, seedFile string) error {
	slog.Info("reading fixture file", slog.String("path", seedFile))

	data, err := os.ReadFile(seedFile)
	if err != nil {
		return errors.Wrap(err, "read fixture file")
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return errors.Wrap(err, "parse fixture JSON")
	}

	slog.Info("connecting to document store")
	store, err := mongostore.New(ctx, mongostore.Config{URI: mongoURI, Database: database})
	if err != nil {
		return errors.Wrap(err, "connect document store")
	}
	defer func() {
		_ = store.Close(context.Background())
	}()

	if err := seed(ctx, store, fx); err != nil {
		return err
	}
	return nil
}

func seed(ctx context.Context, store docstore.Store, fx fixture) error {
	slog.Info("upserting users", slog.Int("count", len(fx.Users)))
	for _, u := range fx.Users {
		err := store.Set(ctx, docstore.Collection("users"), u.ID, map[string]any{
			"name":       u.Name,
			"phone":      u.Phone,
			"role":       u.Role,
			"push_token": u.PushToken,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
	}

	slog.Info("upserting categories", slog.Int("count", len(fx.Categories)))
	for _, c := range fx.Categories {
		err := store.Set(ctx, docstore.Collection("categories"), c.ID, map[string]any{
			"name":       c.Name,
			"image_ref":  c.ImageRef,
			"created_at": docstore.ServerTimestamp,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert category %s", c.ID)
		}
	}

	slog.Info("upserting restaurants", slog.Int("count", len(fx.Restaurants)))
	for _, r := range fx.Restaurants {
		err := store.Set(ctx, docstore.Collection("restaurants"), r.ID, map[string]any{
			"name":       r.Name,
			"address":    r.Address,
			"image_ref":  r.ImageRef,
			"owner_id":   r.OwnerID,
			"created_at": docstore.ServerTimestamp,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert restaurant %s", r.ID)
		}
		slog.Info("upserted restaurant", slog.String("id", r.ID), slog.String("name", r.Name))
	}

	slog.Info("upserting items", slog.Int("count", len(fx.Items)))
	for _, it := range fx.Items {
		fields := map[string]any{
			"name":            it.Name,
			"description":     it.Description,
			"price":           it.Price,
			"image_ref":       it.ImageRef,
			"category_id":     it.CategoryID,
			"restaurant_id":   it.RestaurantID,
			"restaurant_name": it.RestaurantName,
			"created_at":      docstore.ServerTimestamp,
		}
		if it.DiscountPrice != "" {
			fields["discount_price"] = it.DiscountPrice
		}
		if err := store.Set(ctx, docstore.Collection("items"), it.ID, fields); err != nil {
			return errors.Wrapf(err, "upsert item %s", it.ID)
		}
		slog.Info("upserted item", slog.String("id", it.ID), slog.String("name", it.Name))
	}
	return nil
}
