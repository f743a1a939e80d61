package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"productcatalog-api/internal/middleware"
	"productcatalog-api/internal/model"
	"productcatalog-api/internal/service"
	"productcatalog-api/pkg/apierror"
	"productcatalog-api/pkg/response"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes caps create/update payloads.
const maxBodyBytes = 1 << 20

// ProductCatalog is the product service as seen by HTTP handlers.
type ProductCatalog interface {
	List(ctx context.Context, q model.ListQuery) ([]model.ProductView, error)
	GetByID(ctx context.Context, id int64) (model.ProductView, error)
	Create(ctx context.Context, in model.ProductInput) (model.ProductView, error)
	Update(ctx context.Context, id int64, in model.ProductInput) error
	Delete(ctx context.Context, id int64) error
}

// ProductHandler handles product-related HTTP requests.
type ProductHandler struct {
	products ProductCatalog
}

// NewProductHandler creates a new product handler.
func NewProductHandler(products ProductCatalog) *ProductHandler {
	return &ProductHandler{products: products}
}

// List handles GET /api/v1/products?search=&sort_by=&direction=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := model.ListQuery{
		Search:    query.Get("search"),
		SortBy:    query.Get("sort_by"),
		Direction: query.Get("direction"),
	}

	// ':' separates cache key segments; only the search term may carry it.
	for field, value := range map[string]string{"sort_by": q.SortBy, "direction": q.Direction} {
		if strings.Contains(value, ":") {
			response.Error(w, apierror.ValidationError("validation failed",
				apierror.FieldError{Field: field, Message: field + " must not contain ':'"}))
			return
		}
	}

	products, err := h.products.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.List(w, products, len(products))
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.OK(w, product)
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	product, err := h.products.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	response.Created(w, fmt.Sprintf("/api/v1/products/%d", product.ID), product)
}

// Update handles PUT /api/v1/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, ok := decodeInput(w, r)
	if !ok {
		return
	}

	if err := h.products.Update(r.Context(), id, in); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

// Delete handles DELETE /api/v1/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	response.NoContent(w)
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, apierror.BadRequest("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func decodeInput(w http.ResponseWriter, r *http.Request) (model.ProductInput, bool) {
	var in model.ProductInput

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return in, false
	}
	return in, true
}

// writeError maps service errors onto API errors.
func (h *ProductHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apiErr := apierror.FromValidation(err); apiErr != nil {
		response.Error(w, apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrProductNotFound):
		response.Error(w, apierror.NotFound("product not found"))
	case errors.Is(err, model.ErrNegativePrice):
		response.Error(w, apierror.ValidationError("validation failed",
			apierror.FieldError{Field: "price", Message: err.Error()}))
	case errors.Is(err, model.ErrNegativeStock):
		response.Error(w, apierror.ValidationError("validation failed",
			apierror.FieldError{Field: "stock", Message: err.Error()}))
	case service.IsValidationError(err):
		response.Error(w, apierror.ValidationError(err.Error()))
	default:
		log.Printf("[ProductHandler] %s %s request_id=%s error: %v",
			r.Method, r.URL.Path, middleware.GetRequestID(r.Context()), err)
		response.Error(w, err)
	}
}
