package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/domain/cart"
)

type cartResponse struct {
	Lines      []cart.Line     `json:"lines"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	ledger := h.carts(r.Context(), id.UserID)

	lines, err := ledger.Lines(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cartResponse{
		Lines:      lines,
		TotalItems: cart.SumItems(lines),
		TotalPrice: cart.SumPrice(lines),
	})
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	// Pointer so an omitted quantity defaults to one while an explicit
	// zero still fails validation.
	Quantity *int `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ledger := h.carts(r.Context(), id.UserID)
	if err := ledger.AddItem(r.Context(), *p, quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, ledger)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem sets a line's quantity; a quantity below one removes the
// line, matching the ledger contract.
func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ledger := h.carts(r.Context(), id.UserID)
	if err := ledger.UpdateQuantity(r.Context(), productID, req.Quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, ledger)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	productID := chi.URLParam(r, "productID")

	ledger := h.carts(r.Context(), id.UserID)
	if err := ledger.RemoveItem(r.Context(), productID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, ledger)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	ledger := h.carts(r.Context(), id.UserID)
	if err := ledger.Clear(r.Context()); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, ledger cart.Ledger) {
	lines, err := ledger.Lines(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, cartResponse{
		Lines:      lines,
		TotalItems: cart.SumItems(lines),
		TotalPrice: cart.SumPrice(lines),
	})
}
