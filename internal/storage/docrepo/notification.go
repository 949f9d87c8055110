package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/notification"
)

var _ notification.Repository = (*NotificationRepository)(nil)

// NotificationRepository persists per-user notification feed entries.
type NotificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) (string, error) {
	id, err := r.store.Add(ctx, notificationsPath, map[string]any{
		"user_id":    n.UserID,
		"title":      n.Title,
		"message":    n.Message,
		"order_id":   n.OrderID,
		"read":       false,
		"created_at": docstore.ServerTimestamp,
	})
	if err != nil {
		return "", errors.Wrap(err, "create notification")
	}
	return id, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	docs, err := r.store.Query(ctx, notificationsPath, docstore.Query{
		Filters:    []docstore.Filter{{Field: "user_id", Op: docstore.OpEqual, Value: userID}},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}

	out := make([]notification.Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, notification.Notification{
			ID:        doc.ID,
			UserID:    doc.Str("user_id"),
			Title:     doc.Str("title"),
			Message:   doc.Str("message"),
			OrderID:   doc.Str("order_id"),
			Read:      doc.Bool("read"),
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	doc, err := r.store.Get(ctx, notificationsPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return notification.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "get notification")
	}
	// Someone else's notification looks like it does not exist.
	if doc.Str("user_id") != userID {
		return notification.ErrNotFound
	}

	err = r.store.Update(ctx, notificationsPath, id, map[string]any{"read": true})
	if errors.Is(err, docstore.ErrNotFound) {
		return notification.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	return nil
}
