package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/khanaeats/khana-api/internal/domain/product"
)

type productRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	DiscountPrice  decimal.Decimal `json:"discount_price"`
	ImageRef       string          `json:"image_ref"`
	CategoryID     string          `json:"category_id"`
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
}

type productResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          decimal.Decimal `json:"price"`
	DiscountPrice  decimal.Decimal `json:"discount_price,omitempty"`
	ImageRef       string          `json:"image_ref,omitempty"`
	CategoryID     string          `json:"category_id,omitempty"`
	RestaurantID   string          `json:"restaurant_id,omitempty"`
	RestaurantName string          `json:"restaurant_name,omitempty"`
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		DiscountPrice:  p.DiscountPrice,
		ImageRef:       p.ImageRef,
		CategoryID:     p.CategoryID,
		RestaurantID:   p.RestaurantID,
		RestaurantName: p.RestaurantName,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.products.List(r.Context(), product.ListOptions{
		NamePrefix:   q.Get("search"),
		RestaurantID: q.Get("restaurant"),
		CategoryID:   q.Get("category"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(*p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" || !req.Price.IsPositive() {
		writeError(w, r, http.StatusBadRequest, "name and a positive price are required")
		return
	}

	p := requestToProduct(req)
	id, err := h.products.Create(r.Context(), &p)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p.ID = id
	writeJSON(w, r, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p := requestToProduct(req)
	p.ID = chi.URLParam(r, "id")
	if err := h.products.Update(r.Context(), &p); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestToProduct(req productRequest) product.Product {
	return product.Product{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		DiscountPrice:  req.DiscountPrice,
		ImageRef:       req.ImageRef,
		CategoryID:     req.CategoryID,
		RestaurantID:   req.RestaurantID,
		RestaurantName: req.RestaurantName,
	}
}
