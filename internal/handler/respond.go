package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/khanaeats/khana-api/internal/domain/cart"
	"github.com/khanaeats/khana-api/internal/domain/category"
	"github.com/khanaeats/khana-api/internal/domain/notification"
	"github.com/khanaeats/khana-api/internal/domain/order"
	"github.com/khanaeats/khana-api/internal/domain/product"
	"github.com/khanaeats/khana-api/internal/domain/restaurant"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses; anything
// unrecognized is a 500 with the cause logged, never leaked.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrMissingDeliveryInfo):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, restaurant.ErrNotFound),
		errors.Is(err, category.ErrNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotDeletable):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		var transition *order.InvalidTransitionError
		if errors.As(err, &transition) {
			writeError(w, r, http.StatusConflict, transition.Error())
			return
		}
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}
