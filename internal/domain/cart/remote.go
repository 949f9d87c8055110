package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/product"
)

// Cart line document fields as stored in the remote subcollection.
// Decimal amounts are stored as strings to keep exact values across
// backends.
const (
	fieldProductID      = "product_id"
	fieldName           = "name"
	fieldImageRef       = "image_ref"
	fieldUnitPrice      = "unit_price"
	fieldOriginalPrice  = "original_price"
	fieldQuantity       = "quantity"
	fieldRestaurantID   = "restaurant_id"
	fieldRestaurantName = "restaurant_name"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
)

// StoreLedger is the remote cart variant: each line is a document in the
// user's cart subcollection, keyed by product id so the one-line-per-
// product invariant is structural. A concurrent session on another device
// merges safely because the quantity bump is a server-side atomic
// increment rather than read-modify-write.
//
// AddItem is at-least-once under retry: a retried add after an ambiguous
// timeout can increment twice.
type StoreLedger struct {
	store  docstore.Store
	userID string
}

var _ Ledger = (*StoreLedger)(nil)

// NewStoreLedger returns the ledger over userID's remote cart
// subcollection.
func NewStoreLedger(store docstore.Store, userID string) *StoreLedger {
	return &StoreLedger{store: store, userID: userID}
}

// CollectionPath returns the subcollection holding userID's cart lines.
func CollectionPath(userID string) docstore.Path {
	return docstore.Collection("users", userID, "cart")
}

func (l *StoreLedger) path() docstore.Path { return CollectionPath(l.userID) }

func (l *StoreLedger) AddItem(ctx context.Context, p product.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	// One upsert covers both paths: the quantity bump is a server-side
	// increment and every other field is written only on first insert, so
	// concurrent sessions merge instead of overwriting each other and an
	// existing line keeps its unit price.
	fields := encodeLine(newLine(p, quantity))
	for k, v := range fields {
		if k == fieldQuantity {
			fields[k] = docstore.Inc(int64(quantity))
			continue
		}
		fields[k] = docstore.OnInsert(v)
	}
	if err := l.store.Set(ctx, l.path(), p.ID, fields); err != nil {
		return errors.Wrap(err, "upsert cart line")
	}
	return nil
}

func (l *StoreLedger) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return l.RemoveItem(ctx, productID)
	}

	err := l.store.Update(ctx, l.path(), productID, map[string]any{
		fieldQuantity:  int64(quantity),
		fieldUpdatedAt: docstore.ServerTimestamp,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update cart line")
	}
	return nil
}

func (l *StoreLedger) RemoveItem(ctx context.Context, productID string) error {
	if err := l.store.Delete(ctx, l.path(), productID); err != nil {
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// Clear removes every line in one atomic batch, so a crash mid-clear
// cannot leave a partially emptied cart.
func (l *StoreLedger) Clear(ctx context.Context) error {
	docs, err := l.store.Query(ctx, l.path(), docstore.Query{})
	if err != nil {
		return errors.Wrap(err, "list cart lines")
	}
	if len(docs) == 0 {
		return nil
	}

	batch := l.store.Batch()
	for _, doc := range docs {
		batch.Delete(l.path(), doc.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func (l *StoreLedger) Lines(ctx context.Context) ([]Line, error) {
	docs, err := l.store.Query(ctx, l.path(), docstore.Query{OrderBy: fieldCreatedAt})
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}

	lines := make([]Line, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, decodeLine(doc))
	}
	return lines, nil
}

func (l *StoreLedger) TotalItems(ctx context.Context) (int, error) {
	lines, err := l.Lines(ctx)
	if err != nil {
		return 0, err
	}
	return SumItems(lines), nil
}

func (l *StoreLedger) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	lines, err := l.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return SumPrice(lines), nil
}

func encodeLine(line Line) map[string]any {
	return map[string]any{
		fieldProductID:      line.ProductID,
		fieldName:           line.Name,
		fieldImageRef:       line.ImageRef,
		fieldUnitPrice:      line.UnitPrice.String(),
		fieldOriginalPrice:  line.OriginalPrice.String(),
		fieldQuantity:       int64(line.Quantity),
		fieldRestaurantID:   line.RestaurantID,
		fieldRestaurantName: line.RestaurantName,
		fieldCreatedAt:      docstore.ServerTimestamp,
	}
}

// DecodeLine converts a cart line document back into a Line. Exposed for
// the live cart stream, which reads the subcollection directly.
func DecodeLine(doc docstore.Document) Line {
	return decodeLine(doc)
}

func decodeLine(doc docstore.Document) Line {
	unit, _ := decimal.NewFromString(doc.Str(fieldUnitPrice))
	orig, _ := decimal.NewFromString(doc.Str(fieldOriginalPrice))
	return Line{
		ProductID:      doc.Str(fieldProductID),
		Name:           doc.Str(fieldName),
		ImageRef:       doc.Str(fieldImageRef),
		UnitPrice:      unit,
		OriginalPrice:  orig,
		Quantity:       int(doc.Int(fieldQuantity)),
		RestaurantID:   doc.Str(fieldRestaurantID),
		RestaurantName: doc.Str(fieldRestaurantName),
	}
}
