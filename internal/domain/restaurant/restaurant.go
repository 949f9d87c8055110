package restaurant

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested restaurant does not exist.
var ErrNotFound = errors.New("restaurant not found")

// Restaurant is a vendor whose products appear in the catalog. OwnerID is
// the user who receives order notifications for it.
type Restaurant struct {
	ID        string
	Name      string
	Address   string
	ImageRef  string
	OwnerID   string
	CreatedAt time.Time
}

// Repository defines persistence operations for restaurants.
type Repository interface {
	Create(ctx context.Context, r *Restaurant) (string, error)
	GetByID(ctx context.Context, id string) (*Restaurant, error)
	List(ctx context.Context, namePrefix string) ([]Restaurant, error)
	Update(ctx context.Context, r *Restaurant) error
	Delete(ctx context.Context, id string) error
}
