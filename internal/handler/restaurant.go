package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khanaeats/khana-api/internal/domain/restaurant"
)

type restaurantRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	ImageRef string `json:"image_ref"`
	OwnerID  string `json:"owner_id"`
}

type restaurantResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	OwnerID  string `json:"owner_id,omitempty"`
}

func toRestaurantResponse(rest restaurant.Restaurant) restaurantResponse {
	return restaurantResponse{
		ID:       rest.ID,
		Name:     rest.Name,
		Address:  rest.Address,
		ImageRef: rest.ImageRef,
		OwnerID:  rest.OwnerID,
	}
}

func (h *Handler) listRestaurants(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.restaurants.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]restaurantResponse, 0, len(restaurants))
	for _, rest := range restaurants {
		out = append(out, toRestaurantResponse(rest))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) getRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := h.restaurants.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRestaurantResponse(*rest))
}

func (h *Handler) createRestaurant(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req restaurantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = id.UserID
	}

	rest := restaurant.Restaurant{
		Name:     req.Name,
		Address:  req.Address,
		ImageRef: req.ImageRef,
		OwnerID:  req.OwnerID,
	}
	created, err := h.restaurants.Create(r.Context(), &rest)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rest.ID = created
	writeJSON(w, r, http.StatusCreated, toRestaurantResponse(rest))
}

func (h *Handler) updateRestaurant(w http.ResponseWriter, r *http.Request) {
	var req restaurantRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rest := restaurant.Restaurant{
		ID:       chi.URLParam(r, "id"),
		Name:     req.Name,
		Address:  req.Address,
		ImageRef: req.ImageRef,
		OwnerID:  req.OwnerID,
	}
	if err := h.restaurants.Update(r.Context(), &rest); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRestaurantResponse(rest))
}

func (h *Handler) deleteRestaurant(w http.ResponseWriter, r *http.Request) {
	if err := h.restaurants.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
