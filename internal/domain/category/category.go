package category

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested category does not exist.
var ErrNotFound = errors.New("category not found")

// Category groups products for browsing.
type Category struct {
	ID        string
	Name      string
	ImageRef  string
	CreatedAt time.Time
}

// Repository defines persistence operations for categories.
type Repository interface {
	Create(ctx context.Context, c *Category) (string, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	List(ctx context.Context) ([]Category, error)
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}
