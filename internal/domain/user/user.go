package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Role is the coarse authorization level attached to a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// User is the profile the auth provider resolves a token to. Identity
// creation and sign-in live outside this service; only the id and role are
// consumed here.
type User struct {
	ID        string
	Name      string
	Phone     string
	Role      Role
	PushToken string
}

// Repository defines read operations against the users collection.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
