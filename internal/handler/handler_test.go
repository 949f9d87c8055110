package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanaeats/khana-api/internal/docstore"
	"github.com/khanaeats/khana-api/internal/docstore/memstore"
	"github.com/khanaeats/khana-api/internal/domain/cart"
	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/notify"
	"github.com/khanaeats/khana-api/internal/storage/docrepo"
)

var testSecret = []byte("test-secret")

// testEnv is a full API wired over the in-memory store.
type testEnv struct {
	router http.Handler
	store  *memstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memstore.New()

	products := docrepo.NewProductRepository(store)
	restaurants := docrepo.NewRestaurantRepository(store)
	categories := docrepo.NewCategoryRepository(store)
	users := docrepo.NewUserRepository(store)
	notifications := docrepo.NewNotificationRepository(store)
	orders := docrepo.NewOrderRepository(store)

	notifier := notify.NewOrderNotifier(notifications, restaurants, nil)
	svc := order.NewService(orders, notifier, order.ServiceConfig{
		DeliveryCharge: decimal.NewFromInt(100),
	}, nil)

	carts := func(_ context.Context, userID string) cart.Ledger {
		return cart.NewStoreLedger(store, userID)
	}

	h := New(Config{JWTSecret: testSecret},
		products, restaurants, categories, users, notifications, orders, svc, carts, store)

	return &testEnv{router: h.Routes(), store: store}
}

func (e *testEnv) seedUser(t *testing.T, id, name, role string) {
	t.Helper()
	err := e.store.Set(context.Background(), docstore.Collection("users"), id, map[string]any{
		"name":  name,
		"phone": "+923000000000",
		"role":  role,
	})
	require.NoError(t, err)
}

func (e *testEnv) seedProduct(t *testing.T, id, name, price, discount, restaurantID string) {
	t.Helper()
	fields := map[string]any{
		"name":          name,
		"price":         price,
		"restaurant_id": restaurantID,
		"created_at":    docstore.ServerTimestamp,
	}
	if discount != "" {
		fields["discount_price"] = discount
	}
	err := e.store.Set(context.Background(), docstore.Collection("items"), id, fields)
	require.NoError(t, err)
}

func (e *testEnv) seedRestaurant(t *testing.T, id, name, ownerID string) {
	t.Helper()
	err := e.store.Set(context.Background(), docstore.Collection("restaurants"), id, map[string]any{
		"name":     name,
		"owner_id": ownerID,
	})
	require.NoError(t, err)
}

func signToken(t *testing.T, subject, name string) string {
	t.Helper()
	claims := tokenClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}

// --- Auth ---

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGarbageTokenIsRejected(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/cart", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCustomerCannotManageCatalog(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/products", token, map[string]any{"name": "X", "price": "10"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// --- Cart flow ---

func TestCartFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "300", "rest-a")
	env.seedProduct(t, "item-kebab", "Seekh Kebab", "480", "", "rest-b")
	token := signToken(t, "cust", "Customer")

	// Empty cart to start.
	w := env.do(t, http.MethodGet, "/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[cartResponse](t, w)
	assert.Empty(t, resp.Lines)
	assert.Zero(t, resp.TotalItems)

	// Add twice: quantities merge, discount price sticks.
	w = env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani"})
	require.Equal(t, http.StatusOK, w.Code)

	resp = decode[cartResponse](t, w)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, 3, resp.Lines[0].Quantity)
	assert.True(t, resp.Lines[0].UnitPrice.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, 3, resp.TotalItems)
	assert.True(t, resp.TotalPrice.Equal(decimal.NewFromInt(900)))

	// Second product.
	w = env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-kebab", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[cartResponse](t, w)
	assert.Len(t, resp.Lines, 2)
	assert.True(t, resp.TotalPrice.Equal(decimal.NewFromInt(1380)))

	// Setting quantity to zero removes the line.
	w = env.do(t, http.MethodPut, "/cart/items/item-kebab", token, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode[cartResponse](t, w)
	assert.Len(t, resp.Lines, 1)

	// Clear empties everything.
	w = env.do(t, http.MethodDelete, "/cart", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/cart", token, nil)
	resp = decode[cartResponse](t, w)
	assert.Empty(t, resp.Lines)
}

func TestAddUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "ghost", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddInvalidQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "", "rest-a")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": -2})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// An explicit zero is invalid too; only an omitted quantity defaults
	// to one.
	w = env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[cartResponse](t, w).TotalItems)
}

// --- Checkout ---

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedUser(t, "owner-a", "Owner A", "owner")
	env.seedRestaurant(t, "rest-a", "Karachi Darbar", "owner-a")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "300", "rest-a")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/orders", token, map[string]any{
		"phone":             "+923001234567",
		"delivery_location": "House 12, Street 4",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode[checkoutResponse](t, w)
	require.NotEmpty(t, placed.OrderID)

	// Cart cleared by the checkout.
	w = env.do(t, http.MethodGet, "/cart", token, nil)
	assert.Empty(t, decode[cartResponse](t, w).Lines)

	// Order is visible with derived totals and pending status.
	w = env.do(t, http.MethodGet, "/orders/"+placed.OrderID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[orderResponse](t, w)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.True(t, got.ItemsSubtotal.Equal(decimal.NewFromInt(600)))
	assert.True(t, got.GrandTotal.Equal(decimal.NewFromInt(700)))
	assert.Equal(t, []string{"rest-a"}, got.RestaurantIDs)

	// The restaurant owner received a feed entry.
	w = env.do(t, http.MethodGet, "/notifications", signToken(t, "owner-a", "Owner A"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[[]notificationResponse](t, w)
	require.Len(t, feed, 1)
	assert.Equal(t, placed.OrderID, feed[0].OrderID)
}

func TestCheckoutEmptyCartRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/orders", token, map[string]any{
		"phone":             "+923001234567",
		"delivery_location": "somewhere",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCheckoutMissingDeliveryInfoRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "", "rest-a")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/orders", token, map[string]any{"phone": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Cart untouched by the failed checkout.
	w = env.do(t, http.MethodGet, "/cart", token, nil)
	assert.Len(t, decode[cartResponse](t, w).Lines, 1)
}

func TestCustomerCannotReadOthersOrder(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedUser(t, "other", "Other", "customer")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "", "rest-a")
	token := signToken(t, "cust", "Customer")

	env.do(t, http.MethodPost, "/cart/items", token, map[string]any{"product_id": "item-biryani", "quantity": 1})
	w := env.do(t, http.MethodPost, "/orders", token, map[string]any{
		"phone": "+92300", "delivery_location": "X",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	placed := decode[checkoutResponse](t, w)

	w = env.do(t, http.MethodGet, "/orders/"+placed.OrderID, signToken(t, "other", "Other"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign orders look like they do not exist")
}

// --- Lifecycle ---

func placeOrder(t *testing.T, env *testEnv, custToken string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/cart/items", custToken, map[string]any{"product_id": "item-biryani", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/orders", custToken, map[string]any{
		"phone": "+92300", "delivery_location": "X",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode[checkoutResponse](t, w).OrderID
}

func TestOrderStatusLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedUser(t, "owner-a", "Owner A", "owner")
	env.seedRestaurant(t, "rest-a", "Karachi Darbar", "owner-a")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "", "rest-a")

	custToken := signToken(t, "cust", "Customer")
	ownerToken := signToken(t, "owner-a", "Owner A")
	orderID := placeOrder(t, env, custToken)

	// Customers cannot drive the lifecycle.
	w := env.do(t, http.MethodPatch, "/orders/"+orderID+"/status", custToken, map[string]any{"status": "preparing"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// pending -> preparing -> completed.
	w = env.do(t, http.MethodPatch, "/orders/"+orderID+"/status", ownerToken, map[string]any{"status": "preparing"})
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = env.do(t, http.MethodPatch, "/orders/"+orderID+"/status", ownerToken, map[string]any{"status": "completed"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Terminal state rejects further moves.
	w = env.do(t, http.MethodPatch, "/orders/"+orderID+"/status", ownerToken, map[string]any{"status": "preparing"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown status is a 400, not a state machine conflict.
	w = env.do(t, http.MethodPatch, "/orders/"+orderID+"/status", ownerToken, map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Completed orders may be deleted.
	w = env.do(t, http.MethodDelete, "/orders/"+orderID, ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteNonCompletedOrderConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedUser(t, "owner-a", "Owner A", "owner")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "", "rest-a")

	orderID := placeOrder(t, env, signToken(t, "cust", "Customer"))

	w := env.do(t, http.MethodDelete, "/orders/"+orderID, signToken(t, "owner-a", "Owner A"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Catalog ---

func TestOwnerManagesProducts(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "owner-a", "Owner A", "owner")
	token := signToken(t, "owner-a", "Owner A")

	w := env.do(t, http.MethodPost, "/products", token, map[string]any{
		"name":          "Chicken Karahi",
		"price":         "1200",
		"restaurant_id": "rest-a",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[productResponse](t, w)
	require.NotEmpty(t, created.ID)

	w = env.do(t, http.MethodGet, "/products/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[productResponse](t, w)
	assert.Equal(t, "Chicken Karahi", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(1200)))

	w = env.do(t, http.MethodDelete, "/products/"+created.ID, token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/products/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductPrefixSearch(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedProduct(t, "b1", "Beef Biryani", "420", "", "rest-a")
	env.seedProduct(t, "b2", "Chicken Biryani", "350", "", "rest-a")
	env.seedProduct(t, "k1", "Seekh Kebab", "480", "", "rest-b")
	token := signToken(t, "cust", "Customer")

	w := env.do(t, http.MethodGet, "/products?search=Chicken", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]productResponse](t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Chicken Biryani", got[0].Name)
}

func TestMarkNotificationReadScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cust", "Customer", "customer")
	env.seedUser(t, "owner-a", "Owner A", "owner")
	env.seedUser(t, "owner-b", "Owner B", "owner")
	env.seedRestaurant(t, "rest-a", "Karachi Darbar", "owner-a")
	env.seedProduct(t, "item-biryani", "Chicken Biryani", "350", "300", "rest-a")

	placeOrder(t, env, signToken(t, "cust", "Customer"))

	ownerToken := signToken(t, "owner-a", "Owner A")
	w := env.do(t, http.MethodGet, "/notifications", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[[]notificationResponse](t, w)
	require.Len(t, feed, 1)

	// Another user cannot mark it read; it reads as missing.
	w = env.do(t, http.MethodPatch, "/notifications/"+feed[0].ID+"/read", signToken(t, "owner-b", "Owner B"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPatch, "/notifications/"+feed[0].ID+"/read", ownerToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/notifications", ownerToken, nil)
	feed = decode[[]notificationResponse](t, w)
	require.Len(t, feed, 1)
	assert.True(t, feed[0].Read)
}
