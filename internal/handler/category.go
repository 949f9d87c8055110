package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/khanaeats/khana-api/internal/domain/category"
)

type categoryRequest struct {
	Name     string `json:"name"`
	ImageRef string `json:"image_ref"`
}

type categoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageRef string `json:"image_ref,omitempty"`
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, ImageRef: c.ImageRef})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.categories.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categoryResponse{ID: c.ID, Name: c.Name, ImageRef: c.ImageRef})
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	c := category.Category{Name: req.Name, ImageRef: req.ImageRef}
	id, err := h.categories.Create(r.Context(), &c)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, categoryResponse{ID: id, Name: c.Name, ImageRef: c.ImageRef})
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c := category.Category{ID: chi.URLParam(r, "id"), Name: req.Name, ImageRef: req.ImageRef}
	if err := h.categories.Update(r.Context(), &c); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, categoryResponse{ID: c.ID, Name: c.Name, ImageRef: c.ImageRef})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
