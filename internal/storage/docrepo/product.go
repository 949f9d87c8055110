package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository persists products in the items collection.
type ProductRepository struct {
	store docstore.Store
}

func NewProductRepository(store docstore.Store) *ProductRepository {
	return &ProductRepository{store: store}
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) (string, error) {
	id, err := r.store.Add(ctx, itemsPath, encodeProduct(p))
	if err != nil {
		return "", errors.Wrap(err, "create product")
	}
	return id, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	doc, err := r.store.Get(ctx, itemsPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	p := decodeProduct(doc)
	return &p, nil
}

func (r *ProductRepository) List(ctx context.Context, opts product.ListOptions) ([]product.Product, error) {
	q := docstore.Query{OrderBy: "created_at", Descending: true}
	if opts.NamePrefix != "" {
		// Prefix search orders by the searched field, the way the range
		// filters require.
		q = docstore.Query{Filters: docstore.PrefixFilters("name", opts.NamePrefix), OrderBy: "name"}
	}
	if opts.RestaurantID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "restaurant_id", Op: docstore.OpEqual, Value: opts.RestaurantID})
	}
	if opts.CategoryID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "category_id", Op: docstore.OpEqual, Value: opts.CategoryID})
	}

	docs, err := r.store.Query(ctx, itemsPath, q)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}

	out := make([]product.Product, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeProduct(doc))
	}
	return out, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.store.Update(ctx, itemsPath, p.ID, encodeProduct(p))
	if errors.Is(err, docstore.ErrNotFound) {
		return product.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update product")
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, itemsPath, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	return nil
}

func encodeProduct(p *product.Product) map[string]any {
	// discount_price is always written: Update merges fields, so omitting
	// it would leave a cleared promotion in place.
	return map[string]any{
		"name":            p.Name,
		"description":     p.Description,
		"price":           p.Price.String(),
		"discount_price":  p.DiscountPrice.String(),
		"image_ref":       p.ImageRef,
		"category_id":     p.CategoryID,
		"restaurant_id":   p.RestaurantID,
		"restaurant_name": p.RestaurantName,
	}
}

func decodeProduct(doc docstore.Document) product.Product {
	return product.Product{
		ID:             doc.ID,
		Name:           doc.Str("name"),
		Description:    doc.Str("description"),
		Price:          dec(doc, "price"),
		DiscountPrice:  dec(doc, "discount_price"),
		ImageRef:       doc.Str("image_ref"),
		CategoryID:     doc.Str("category_id"),
		RestaurantID:   doc.Str("restaurant_id"),
		RestaurantName: doc.Str("restaurant_name"),
		CreatedAt:      doc.CreatedAt,
	}
}
