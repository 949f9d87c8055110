package docrepo

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository reads profiles from the users collection. Profile
// creation belongs to the external auth flow.
type UserRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	doc, err := r.store.Get(ctx, usersPath, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get user")
	}

	role := user.Role(doc.Str("role"))
	if !role.Valid() {
		role = user.RoleCustomer
	}
	return &user.User{
		ID:        doc.ID,
		Name:      doc.Str("name"),
		Phone:     doc.Str("phone"),
		Role:      role,
		PushToken: doc.Str("push_token"),
	}, nil
}
