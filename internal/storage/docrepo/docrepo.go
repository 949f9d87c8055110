// Package docrepo implements the domain repositories on top of the
// docstore contract. Collections mirror the product's document model:
// users, restaurants, categories, items, orders, notifications, and the
// per-user cart subcollection.
package docrepo

import (
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/docstore"
)

var (
	usersPath         = docstore.Collection("users")
	restaurantsPath   = docstore.Collection("restaurants")
	categoriesPath    = docstore.Collection("categories")
	itemsPath         = docstore.Collection("items")
	ordersPath        = docstore.Collection("orders")
	notificationsPath = docstore.Collection("notifications")
)

// OrdersPath returns the orders collection path for callers running live
// queries outside the repository.
func OrdersPath() docstore.Path { return ordersPath }

// dec parses a decimal stored as a string field, zero on absence.
func dec(doc docstore.Document, key string) decimal.Decimal {
	d, err := decimal.NewFromString(doc.Str(key))
	if err != nil {
		return decimal.Zero
	}
	return d
}
