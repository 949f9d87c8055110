package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type notificationResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Read    bool   `json:"read"`
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	items, err := h.notifications.ListByUser(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, notificationResponse{
			ID:      n.ID,
			Title:   n.Title,
			Message: n.Message,
			OrderID: n.OrderID,
			Read:    n.Read,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
