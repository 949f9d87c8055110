package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested notification does not exist.
var ErrNotFound = errors.New("notification not found")

// Notification is one entry in a user's notification feed.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	OrderID   string
	Read      bool
	CreatedAt time.Time
}

// Repository defines persistence operations for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) (string, error)
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	// MarkRead flags the notification as read. A notification owned by a
	// different user reads as ErrNotFound.
	MarkRead(ctx context.Context, id, userID string) error
}
