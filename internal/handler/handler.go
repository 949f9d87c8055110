// Package handler exposes the HTTP surface: catalog CRUD, cart
// operations, checkout, order lifecycle, notification feed, and websocket
// streams of live cart and order state.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/domain/cart"
	"github.com/khanaeats/khana-api/internal/domain/category"
	"github.com/khanaeats/khana-api/internal/domain/notification"
	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/domain/product"
	"github.com/khanaeats/khana-api/internal/domain/restaurant"
	"github.com/khanaeats/khana-api/internal/domain/user"
)

// LedgerFactory yields the cart ledger for one user, hiding which backing
// adapter (in-memory or remote subcollection) configuration selected.
type LedgerFactory func(ctx context.Context, userID string) cart.Ledger

// Config holds non-dependency handler settings.
type Config struct {
	// JWTSecret verifies bearer tokens minted by the auth provider.
	JWTSecret []byte
}

// Handler carries the domain dependencies behind the HTTP routes.
type Handler struct {
	cfg Config

	products      product.Repository
	restaurants   restaurant.Repository
	categories    category.Repository
	users         user.Repository
	notifications notification.Repository
	orders        order.Repository
	orderService  *order.Service
	carts         LedgerFactory
	store         docstore.Store
}

func New(
	cfg Config,
	products product.Repository,
	restaurants restaurant.Repository,
	categories category.Repository,
	users user.Repository,
	notifications notification.Repository,
	orders order.Repository,
	orderService *order.Service,
	carts LedgerFactory,
	store docstore.Store,
) *Handler {
	return &Handler{
		cfg:           cfg,
		products:      products,
		restaurants:   restaurants,
		categories:    categories,
		users:         users,
		notifications: notifications,
		orders:        orders,
		orderService:  orderService,
		carts:         carts,
		store:         store,
	}
}

// Routes mounts the authenticated API surface.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.authenticate)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleOwner, user.RoleAdmin))
			r.Post("/", h.createProduct)
			r.Put("/{id}", h.updateProduct)
			r.Delete("/{id}", h.deleteProduct)
		})
	})

	r.Route("/restaurants", func(r chi.Router) {
		r.Get("/", h.listRestaurants)
		r.Get("/{id}", h.getRestaurant)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleOwner, user.RoleAdmin))
			r.Post("/", h.createRestaurant)
			r.Put("/{id}", h.updateRestaurant)
			r.Delete("/{id}", h.deleteRestaurant)
		})
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Get("/{id}", h.getCategory)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleAdmin))
			r.Post("/", h.createCategory)
			r.Put("/{id}", h.updateCategory)
			r.Delete("/{id}", h.deleteCategory)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/items", h.addCartItem)
		r.Put("/items/{productID}", h.updateCartItem)
		r.Delete("/items/{productID}", h.removeCartItem)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.checkout)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Group(func(r chi.Router) {
			r.Use(requireRole(user.RoleOwner, user.RoleAdmin))
			r.Patch("/{id}/status", h.updateOrderStatus)
			r.Delete("/{id}", h.deleteOrder)
		})
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.listNotifications)
		r.Patch("/{id}/read", h.markNotificationRead)
	})

	r.Route("/ws", func(r chi.Router) {
		r.Get("/cart", h.streamCart)
		r.Get("/orders", h.streamOrders)
	})

	return r
}
