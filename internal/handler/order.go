package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/domain/user"
)

type checkoutRequest struct {
	Phone            string `json:"phone"`
	DeliveryLocation string `json:"delivery_location"`
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ledger := h.carts(r.Context(), id.UserID)
	orderID, err := h.orderService.Checkout(r.Context(), ledger, order.CustomerInfo{
		CustomerID:       id.UserID,
		CustomerName:     id.Name,
		Phone:            strings.TrimSpace(req.Phone),
		DeliveryLocation: strings.TrimSpace(req.DeliveryLocation),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, checkoutResponse{OrderID: orderID})
}

type orderResponse struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	DeliveryLocation string          `json:"delivery_location,omitempty"`
	Items            []order.Item    `json:"items"`
	ItemsSubtotal    decimal.Decimal `json:"items_subtotal"`
	DeliveryCharge   decimal.Decimal `json:"delivery_charge"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	Status           order.Status    `json:"status"`
	RestaurantIDs    []string        `json:"restaurant_ids,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

func toOrderResponse(o order.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		CustomerName:     o.CustomerName,
		Phone:            o.Phone,
		DeliveryLocation: o.DeliveryLocation,
		Items:            o.Items,
		ItemsSubtotal:    o.ItemsSubtotal,
		DeliveryCharge:   o.DeliveryCharge,
		GrandTotal:       o.GrandTotal,
		Status:           o.Status,
		RestaurantIDs:    o.RestaurantIDs,
		CreatedAt:        o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// listOrders returns the caller's own orders; an owner additionally sees
// orders containing their restaurant when ?restaurant= is given.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var (
		orders []order.Order
		err    error
	)
	if restaurantID := r.URL.Query().Get("restaurant"); restaurantID != "" {
		if id.Role != user.RoleOwner && id.Role != user.RoleAdmin {
			writeError(w, r, http.StatusForbidden, "insufficient role")
			return
		}
		orders, err = h.orders.ListByRestaurant(r.Context(), restaurantID)
	} else {
		orders, err = h.orders.ListByCustomer(r.Context(), id.UserID)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	// Customers only see their own orders.
	if id.Role == user.RoleCustomer && o.CustomerID != id.UserID {
		writeError(w, r, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(*o))
}

type updateStatusRequest struct {
	Status order.Status `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}

	if err := h.orderService.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orderService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
