package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/category"
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository persists categories.
type CategoryRepository struct {
	store docstore.Store
}

func NewCategoryRepository(store docstore.Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) (string, error) {
	id, err := r.store.Add(ctx, categoriesPath, encodeCategory(c))
	if err != nil {
		return "", errors.Wrap(err, "create category")
	}
	return id, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	doc, err := r.store.Get(ctx, categoriesPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, category.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get category")
	}
	c := decodeCategory(doc)
	return &c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	docs, err := r.store.Query(ctx, categoriesPath, docstore.Query{OrderBy: "name"})
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}

	out := make([]category.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeCategory(doc))
	}
	return out, nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	err := r.store.Update(ctx, categoriesPath, c.ID, encodeCategory(c))
	if errors.Is(err, docstore.ErrNotFound) {
		return category.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "update category")
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, categoriesPath, id); err != nil {
		return errors.Wrap(err, "delete category")
	}
	return nil
}

func encodeCategory(c *category.Category) map[string]any {
	return map[string]any{
		"name":      c.Name,
		"image_ref": c.ImageRef,
	}
}

func decodeCategory(doc docstore.Document) category.Category {
	return category.Category{
		ID:        doc.ID,
		Name:      doc.Str("name"),
		ImageRef:  doc.Str("image_ref"),
		CreatedAt: doc.CreatedAt,
	}
}
