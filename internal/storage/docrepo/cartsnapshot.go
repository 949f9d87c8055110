package docrepo

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/cart"
)

var cartSnapshotsPath = docstore.Collection("cart_snapshots")

var _ cart.Persister = (*CartSnapshotPersister)(nil)

// CartSnapshotPersister backs the in-memory ledger's persistence adapter:
// the whole cart is serialized into one document per user, written after
// every mutation and restored on session start.
type CartSnapshotPersister struct {
	store docstore.Store
}

func NewCartSnapshotPersister(store docstore.Store) *CartSnapshotPersister {
	return &CartSnapshotPersister{store: store}
}

func (p *CartSnapshotPersister) Load(ctx context.Context, userID string) ([]cart.Line, error) {
	doc, err := p.store.Get(ctx, cartSnapshotsPath, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load cart snapshot")
	}

	var lines []cart.Line
	if err := json.Unmarshal([]byte(doc.Str("lines")), &lines); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	return lines, nil
}

func (p *CartSnapshotPersister) Save(ctx context.Context, userID string, lines []cart.Line) error {
	if len(lines) == 0 {
		return p.store.Delete(ctx, cartSnapshotsPath, userID)
	}

	encoded, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encode cart snapshot")
	}
	return p.store.Set(ctx, cartSnapshotsPath, userID, map[string]any{
		"lines":      string(encoded),
		"updated_at": docstore.ServerTimestamp,
	})
}
