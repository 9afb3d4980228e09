package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/cart"
	"github.com/Pinash124/bike-hub-sub000/internal/guard"
	"github.com/Pinash124/bike-hub-sub000/pkg/httputil"
)

// PageResponse describes a page for the browser front-end to render.
type PageResponse struct {
	Page    string     `json:"page"`
	Path    string     `json:"path"`
	Session auth.State `json:"session"`
	Data    any        `json:"data,omitempty"`
}

// ViewHandler serves page descriptors.
type ViewHandler struct {
	auth   *auth.Controller
	cart   *cart.Controller
	logger *slog.Logger
}

// NewViewHandler creates a new view handler.
func NewViewHandler(a *auth.Controller, c *cart.Controller, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{auth: a, cart: c, logger: logger}
}

func (h *ViewHandler) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	httputil.WriteData(w, PageResponse{
		Page:    page,
		Path:    r.URL.Path,
		Session: h.auth.State(r.Context()),
		Data:    data,
	})
}

// Page returns a handler for a page with no data of its own.
func (h *ViewHandler) Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, name, nil)
	}
}

type loginPage struct {
	Redirect string                    `json:"redirect"`
	Prefill  *auth.PendingRegistration `json:"prefill,omitempty"`
}

// Login handles GET /login. A signed-in user is sent straight on.
func (h *ViewHandler) Login(w http.ResponseWriter, r *http.Request) {
	redirect := guard.SafeRedirect(r.URL.Query().Get(guard.RedirectParam))
	if h.auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, redirect, http.StatusSeeOther)
		return
	}
	h.render(w, r, "login", loginPage{
		Redirect: redirect,
		Prefill:  h.auth.PendingRegistration(),
	})
}

// Signup handles GET /signup.
func (h *ViewHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if h.auth.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, "signup", nil)
}

// Product handles GET /products/{productID}
func (h *ViewHandler) Product(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "product", map[string]string{"productId": chi.URLParam(r, "productID")})
}

// Cart handles GET /cart
func (h *ViewHandler) Cart(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "cart", h.cart.Snapshot())
}

// Checkout handles GET /checkout. It shows what would be bought.
func (h *ViewHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	view := h.cart.Snapshot()
	h.render(w, r, "checkout", map[string]any{
		"items":      view.SelectedItems,
		"totalPrice": view.SelectedTotalPrice,
		"count":      view.SelectedCount,
	})
}
