package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/restaurant"
)

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository persists restaurants.
type RestaurantRepository struct {
	store docstore.Store
}

func NewRestaurantRepository(store docstore.Store) *RestaurantRepository {
	return &RestaurantRepository{store: store}
}

func (r *RestaurantRepository) Create(ctx context.Context, rest *restaurant.Restaurant) (string, error) {
	id, err := r.store.Add(ctx, restaurantsPath, encodeRestaurant(rest))
	if err != nil {
		return "", errors.Wrap(err, "create restaurant")
	}
	return id, nil
}

func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	doc, err := r.store.Get(ctx, restaurantsPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, restaurant.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get restaurant")
	}
	rest := decodeRestaurant(doc)
	return &rest, nil
}

func (r *RestaurantRepository) List(ctx context.Context, namePrefix string) ([]restaurant.Restaurant, error) {
	q := docstore.Query{OrderBy: "created_at", Descending: true}
	if namePrefix != "" {
		q = docstore.Query{Filters: docstore.PrefixFilters("name", namePrefix), OrderBy: "name"}
	}

	docs, err := r.store.Query(ctx, restaurantsPath, q)
	if err != nil {
		return nil, errors.Wrap(err, "list restaurants")
	}

	out := make([]restaurant.Restaurant, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeRestaurant(doc))
	}
	return out, nil
}

func (r *RestaurantRepository) Update(ctx context.Context, rest *restaurant.Restaurant) error {
	err := r.store.Update(ctx, restaurantsPath, rest.ID, encodeRestaurant(rest))
	if errors.Is(err, docstore.ErrNotFound) {
		return restaurant.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update restaurant")
	}
	return nil
}

func (r *RestaurantRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, restaurantsPath, id); err != nil {
		return errors.Wrap(err, "delete restaurant")
	}
	return nil
}

func encodeRestaurant(rest *restaurant.Restaurant) map[string]any {
	return map[string]any{
		"name":      rest.Name,
		"address":   rest.Address,
		"image_ref": rest.ImageRef,
		"owner_id":  rest.OwnerID,
	}
}

func decodeRestaurant(doc docstore.Document) restaurant.Restaurant {
	return restaurant.Restaurant{
		ID:        doc.ID,
		Name:      doc.Str("name"),
		Address:   doc.Str("address"),
		ImageRef:  doc.Str("image_ref"),
		OwnerID:   doc.Str("owner_id"),
		CreatedAt: doc.CreatedAt,
	}
}
