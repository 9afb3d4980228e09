package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Pinash124/bike-hub-sub000/internal/cart"
	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/pkg/httputil"
	"github.com/Pinash124/bike-hub-sub000/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	cart   *cart.Controller
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(c *cart.Controller, logger *slog.Logger) *CartHandler {
	return &CartHandler{cart: c, logger: logger}
}

// --- Request DTOs ---

// UpdateQuantityRequest is the JSON request body for setting a line's
// quantity. Zero or less removes the line.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// SelectItemsRequest is the JSON request body for replacing the selection.
type SelectItemsRequest struct {
	ProductIDs []string `json:"productIds"`
}

// --- Handlers ---

// GetCart handles GET /cart/items
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, h.cart.Snapshot())
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.CartItem
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if _, err := h.cart.AddItem(r.Context(), req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: h.cart.Snapshot()})
}

// UpdateQuantity handles PUT /cart/items/{productID}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if _, err := h.cart.UpdateQuantity(r.Context(), chi.URLParam(r, "productID"), *req.Quantity); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, h.cart.Snapshot())
}

// RemoveItem handles DELETE /cart/items/{productID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.cart.RemoveItem(r.Context(), chi.URLParam(r, "productID")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, h.cart.Snapshot())
}

// ClearCart handles DELETE /cart/items
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.ClearCart(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleSelect handles POST /cart/items/{productID}/toggle
func (h *CartHandler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	selected := h.cart.ToggleSelectItem(chi.URLParam(r, "productID"))
	httputil.WriteData(w, map[string]bool{"selected": selected})
}

// SelectItems handles PUT /cart/selection
func (h *CartHandler) SelectItems(w http.ResponseWriter, r *http.Request) {
	var req SelectItemsRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}
	h.cart.SelectItems(req.ProductIDs)
	httputil.WriteData(w, h.cart.Snapshot())
}

// Checkout handles POST /cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.cart.Checkout(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, receipt)
}
