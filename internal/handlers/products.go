// internal/handlers/products.go
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ProductHandler handles catalog requests
type ProductHandler struct {
	service ports.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service ports.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "products")),
	}
}

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, "list products", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", result)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get product", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", product)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	product := req.ToDomain()
	if err := h.service.Create(r.Context(), product); err != nil {
		writeServiceError(w, r, h.logger, "create product", err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, "Product created successfully", product)
}

// UpdateProduct handles PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	product := req.ToDomain()
	if err := h.service.Update(r.Context(), id, product); err != nil {
		writeServiceError(w, r, h.logger, "update product", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "Product updated successfully", product)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, "delete product", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "Product deleted successfully", nil)
}

// LowStock handles GET /api/v1/products/low-stock
func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.LowStock(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list low stock", err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, "OK", products)
}

func (h *ProductHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, h.logger, http.StatusBadRequest, "Invalid product ID format")
		return 0, false
	}
	return id, true
}

func parseProductFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Search:    q.Get("search"),
		LowStock:  q.Get("low_stock") == "true",
		Page:      queryInt(q.Get("page"), 1),
		PageSize:  queryInt(q.Get("limit"), 20),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}

	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid category_id")
		}
		filter.CategoryID = &id
	}

	filter.Normalize()
	return filter, nil
}

// ProductRequest represents the body of product writes. Stock is accepted on
// create only; updates carry the stored stock forward.
type ProductRequest struct {
	Name       string `json:"name"`
	Barcode    string `json:"barcode,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Price      int64  `json:"price"`
	Stock      int64  `json:"stock,omitempty"`
	MinStock   int64  `json:"min_stock,omitempty"`
}

// ToDomain converts the request to a product
func (r *ProductRequest) ToDomain() *domain.Product {
	return &domain.Product{
		Name:       r.Name,
		Barcode:    r.Barcode,
		CategoryID: r.CategoryID,
		Price:      r.Price,
		Stock:      r.Stock,
		MinStock:   r.MinStock,
	}
}
