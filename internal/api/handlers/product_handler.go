package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/catalog-api/internal/services"
	"github.com/rs/zerolog/log"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	service services.ProductServiceProvider
	rs      Responder
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service services.ProductServiceProvider, rs Responder) *ProductHandler {
	return &ProductHandler{service: service, rs: rs}
}

// GetAll handles listing every product.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.GetAllProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		h.rs.Internal(w, err)
		return
	}
	respondData(w, http.StatusOK, products)
}

// Get handles retrieving a product by its ID.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	product, err := h.service.GetProductByID(r.Context(), id)
	if err != nil {
		h.productError(w, err, id, "Failed to get product")
		return
	}
	respondData(w, http.StatusOK, product)
}

// Create handles adding a product.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload services.ProductInput
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product data")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), payload)
	if err != nil {
		if verr, ok := asValidation(err); ok {
			respondValidation(w, "Invalid product data", verr)
			return
		}
		log.Error().Err(err).Msg("Failed to create product")
		h.rs.Internal(w, err)
		return
	}
	respondData(w, http.StatusCreated, product)
}

// Update handles changing the supplied fields of a product.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload services.ProductUpdate
	if err := decodeJSON(w, r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product data")
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, payload)
	if err != nil {
		if verr, ok := asValidation(err); ok {
			respondValidation(w, "Invalid product data", verr)
			return
		}
		h.productError(w, err, id, "Failed to update product")
		return
	}
	respondData(w, http.StatusOK, product)
}

// Delete handles removing a product.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.productError(w, err, id, "Failed to delete product")
		return
	}
	respondMessage(w, http.StatusOK, "Product deleted successfully")
}

func (h *ProductHandler) productError(w http.ResponseWriter, err error, id, msg string) {
	if errors.Is(err, services.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "Product not found")
		return
	}
	log.Error().Err(err).Str("product_id", id).Msg(msg)
	h.rs.Internal(w, err)
}
