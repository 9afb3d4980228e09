package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pinash124/bike-hub-sub000/internal/auth"
	"github.com/Pinash124/bike-hub-sub000/internal/cart"
	"github.com/Pinash124/bike-hub-sub000/internal/domain"
	"github.com/Pinash124/bike-hub-sub000/internal/guard"
	"github.com/Pinash124/bike-hub-sub000/pkg/health"
	"github.com/Pinash124/bike-hub-sub000/pkg/middleware"
)

const serviceName = "storefront"

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	authCtl *auth.Controller,
	cartCtl *cart.Controller,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cors middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger, sessionUserID(authCtl)))
	r.Use(middleware.CORS(cors))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	views := NewViewHandler(authCtl, cartCtl, logger)
	sessions := NewSessionHandler(authCtl, logger)
	carts := NewCartHandler(cartCtl, logger)
	g := newGuards(authCtl, logger)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Get("/", views.Page("home"))
		r.Get("/login", views.Login)
		r.Get("/signup", views.Signup)
		r.Get("/products", views.Page("products"))
		r.Get("/products/{productID}", views.Product)
		r.Get("/unauthorized", views.Page("unauthorized"))

		r.With(g.view(guard.Require(domain.RoleBuyer))).Get("/checkout", views.Checkout)
		r.With(g.view(guard.Require(domain.RoleBuyer))).Get("/orders", views.Page("orders"))

		r.Route("/dashboard", func(r chi.Router) {
			for _, role := range []domain.Role{domain.RoleBuyer, domain.RoleSeller, domain.RoleAdmin, domain.RoleInspector} {
				r.With(g.view(guard.Require(role))).Get("/"+string(role), views.Page("dashboard-"+string(role)))
			}
		})
	})

	r.Route("/session", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Get("/", sessions.GetState)
		r.Post("/login", sessions.Login)
		r.Post("/logout", sessions.Logout)
		r.Post("/register", sessions.Register)
		r.Get("/pending-registration", sessions.PendingRegistration)
		r.Post("/otp", sessions.SendOTP)
		r.Post("/otp/verify", sessions.VerifyOTP)

		r.Group(func(r chi.Router) {
			r.Use(g.action(guard.Requirement{}))

			r.Post("/refresh", sessions.Refresh)
			r.Get("/me", sessions.Me)
			r.Patch("/profile", sessions.UpdateProfile)
			r.Put("/role", sessions.UpdateRole)
			r.Put("/kyc", sessions.SetKYC)
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Get("/", views.Cart)
		r.Get("/items", carts.GetCart)
		r.Post("/items", carts.AddItem)
		r.Delete("/items", carts.ClearCart)
		r.Put("/items/{productID}", carts.UpdateQuantity)
		r.Delete("/items/{productID}", carts.RemoveItem)
		r.Post("/items/{productID}/toggle", carts.ToggleSelect)
		r.Put("/selection", carts.SelectItems)
		r.With(g.action(guard.Require(domain.RoleBuyer))).Post("/checkout", carts.Checkout)
	})

	return r
}

func sessionUserID(a *auth.Controller) middleware.UserIDFunc {
	return func(r *http.Request) string {
		if u := a.User(r.Context()); u != nil {
			return u.ID
		}
		return ""
	}
}
