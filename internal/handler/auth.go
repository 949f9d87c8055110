package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/khanaeats/khana-api/internal/domain/user"
)

// Identity is the authenticated caller: the subject id from the bearer
// token, enriched with the profile stored in the users collection.
type Identity struct {
	UserID string
	Name   string
	Role   user.Role
}

type identityKey struct{}

// IdentityFromContext returns the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// authenticate verifies the Bearer token, resolves the caller's profile,
// and stores the Identity in the request context. A user without a stored
// profile is treated as a plain customer.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := h.parseToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		id := Identity{
			UserID: claims.Subject,
			Name:   claims.Name,
			Role:   user.RoleCustomer,
		}
		if id.UserID == "" {
			writeError(w, r, http.StatusUnauthorized, "token has no subject")
			return
		}

		if profile, err := h.users.GetByID(r.Context(), id.UserID); err == nil {
			if profile.Name != "" {
				id.Name = profile.Name
			}
			id.Role = profile.Role
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenClaims is the claim set the auth provider mints.
type tokenClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (h *Handler) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return h.cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if v, ok := strings.CutPrefix(header, "Bearer "); ok {
		return v
	}
	return ""
}

// requireRole gates a route group to the listed roles.
func requireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				writeError(w, r, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
