package order

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanaeats/khana-api/internal/domain/cart"
)

// --- Mock implementations ---

type mockLedger struct {
	cart.Ledger

	lines    []cart.Line
	linesErr error

	cleared  bool
	clearErr error
}

func (m *mockLedger) Lines(context.Context) ([]cart.Line, error) {
	if m.linesErr != nil {
		return nil, m.linesErr
	}
	return m.lines, nil
}

func (m *mockLedger) Clear(context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = true
	return nil
}

type mockOrderRepo struct {
	lastOrder *Order
	createErr error

	byID      map[string]*Order
	getErr    error
	updated   map[string]Status
	deleted   []string
	deleteErr error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.lastOrder = o
	return "order-1", nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByCustomer(context.Context, string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) ListByRestaurant(context.Context, string) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	if m.updated == nil {
		m.updated = make(map[string]Status)
	}
	m.updated[id] = status
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

type mockNotifier struct {
	mu       sync.Mutex
	notified []string
	err      error
}

func (m *mockNotifier) OrderPlaced(_ context.Context, restaurantID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, restaurantID)
	return m.err
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func line(productID, restaurantID, unitPrice string, qty int) cart.Line {
	return cart.Line{
		ProductID:    productID,
		Name:         "Item " + productID,
		UnitPrice:    dec(unitPrice),
		Quantity:     qty,
		RestaurantID: restaurantID,
	}
}

func testInfo() CustomerInfo {
	return CustomerInfo{
		CustomerID:       "user-1",
		CustomerName:     "Test Customer",
		Phone:            "+923001234567",
		DeliveryLocation: "House 12, Street 4",
	}
}

func newTestService(repo Repository, notifier Notifier) *Service {
	return NewService(repo, notifier, ServiceConfig{DeliveryCharge: dec("100")}, nil)
}

// --- Checkout ---

func TestCheckoutAssemblesOrder(t *testing.T) {
	repo := &mockOrderRepo{}
	notifier := &mockNotifier{}
	svc := newTestService(repo, notifier)

	ledger := &mockLedger{lines: []cart.Line{
		line("p1", "rest-a", "300", 2),
		line("p2", "rest-b", "480", 1),
		line("p3", "rest-a", "320", 3),
	}}

	id, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)

	o := repo.lastOrder
	require.NotNil(t, o)
	assert.Equal(t, "user-1", o.CustomerID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Len(t, o.Items, 3)

	// 300*2 + 480*1 + 320*3 = 2040; grand total adds the flat charge.
	assert.True(t, o.ItemsSubtotal.Equal(dec("2040")), "subtotal %s", o.ItemsSubtotal)
	assert.True(t, o.DeliveryCharge.Equal(dec("100")))
	assert.True(t, o.GrandTotal.Equal(dec("2140")), "grand total %s", o.GrandTotal)

	// Distinct restaurants in first-seen order.
	assert.Equal(t, []string{"rest-a", "rest-b"}, o.RestaurantIDs)
}

func TestCheckoutClearsCartAfterPersist(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockNotifier{})
	ledger := &mockLedger{lines: []cart.Line{line("p1", "rest-a", "300", 1)}}

	_, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.NoError(t, err)
	assert.True(t, ledger.cleared)
}

func TestCheckoutEmptyCart(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockNotifier{})
	ledger := &mockLedger{}

	_, err := svc.Checkout(context.Background(), ledger, testInfo())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, repo.lastOrder)
}

func TestCheckoutMissingDeliveryInfo(t *testing.T) {
	svc := newTestService(&mockOrderRepo{}, &mockNotifier{})
	ledger := &mockLedger{lines: []cart.Line{line("p1", "rest-a", "300", 1)}}

	info := testInfo()
	info.Phone = ""
	_, err := svc.Checkout(context.Background(), ledger, info)
	assert.ErrorIs(t, err, ErrMissingDeliveryInfo)

	info = testInfo()
	info.DeliveryLocation = ""
	_, err = svc.Checkout(context.Background(), ledger, info)
	assert.ErrorIs(t, err, ErrMissingDeliveryInfo)

	// Validation failures must leave the cart intact.
	assert.False(t, ledger.cleared)
}

func TestCheckoutPersistFailureKeepsCart(t *testing.T) {
	repo := &mockOrderRepo{createErr: errors.New("store unavailable")}
	svc := newTestService(repo, &mockNotifier{})
	ledger := &mockLedger{lines: []cart.Line{line("p1", "rest-a", "300", 1)}}

	_, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.Error(t, err)
	assert.False(t, ledger.cleared, "cart must survive a failed order write")
}

func TestCheckoutClearFailureStillSucceeds(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockNotifier{})
	ledger := &mockLedger{
		lines:    []cart.Line{line("p1", "rest-a", "300", 1)},
		clearErr: errors.New("clear failed"),
	}

	id, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.NoError(t, err, "the order is durable once persisted")
	assert.Equal(t, "order-1", id)
}

func TestCheckoutNotifierFailureIsNonFatal(t *testing.T) {
	repo := &mockOrderRepo{}
	notifier := &mockNotifier{err: errors.New("push gateway down")}
	svc := newTestService(repo, notifier)
	ledger := &mockLedger{lines: []cart.Line{
		line("p1", "rest-a", "300", 1),
		line("p2", "rest-b", "480", 1),
	}}

	_, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"rest-a", "rest-b"}, notifier.notified)
	assert.True(t, ledger.cleared)
}

func TestCheckoutSnapshotIsolation(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(repo, &mockNotifier{})
	ledger := &mockLedger{lines: []cart.Line{line("p1", "rest-a", "300", 2)}}

	_, err := svc.Checkout(context.Background(), ledger, testInfo())
	require.NoError(t, err)

	// Mutating the ledger afterwards must not reach the placed order.
	ledger.lines[0].Quantity = 99
	assert.Equal(t, 2, repo.lastOrder.Items[0].Quantity)
}

// --- Lifecycle ---

func TestUpdateStatusAllowed(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"order-1": {ID: "order-1", Status: StatusPending},
	}}
	svc := newTestService(repo, nil)

	require.NoError(t, svc.UpdateStatus(context.Background(), "order-1", StatusPreparing))
	assert.Equal(t, StatusPreparing, repo.updated["order-1"])
}

func TestUpdateStatusRejectedByStateMachine(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"order-1": {ID: "order-1", Status: StatusRejected},
	}}
	svc := newTestService(repo, nil)

	err := svc.UpdateStatus(context.Background(), "order-1", StatusPreparing)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusRejected, invalid.From)
	assert.Equal(t, StatusPreparing, invalid.To)
	assert.Empty(t, repo.updated)
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc := newTestService(&mockOrderRepo{}, nil)
	err := svc.UpdateStatus(context.Background(), "missing", StatusPreparing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOnlyCompleted(t *testing.T) {
	repo := &mockOrderRepo{byID: map[string]*Order{
		"done":    {ID: "done", Status: StatusCompleted},
		"pending": {ID: "pending", Status: StatusPending},
	}}
	svc := newTestService(repo, nil)

	require.NoError(t, svc.Delete(context.Background(), "done"))
	assert.Equal(t, []string{"done"}, repo.deleted)

	err := svc.Delete(context.Background(), "pending")
	assert.ErrorIs(t, err, ErrNotDeletable)
}
