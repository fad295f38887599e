package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wonderland/toystore/internal/admin"
	"github.com/wonderland/toystore/internal/auth"
	"github.com/wonderland/toystore/internal/catalog"
	"github.com/wonderland/toystore/internal/domain"
	"github.com/wonderland/toystore/internal/httpx"
	"github.com/wonderland/toystore/internal/identity"
	"github.com/wonderland/toystore/internal/orders"
	"github.com/wonderland/toystore/internal/telemetry"
)

type handlers struct {
	identity *identity.Handler
	catalog  *catalog.Handler
	orders   *orders.Handler
	admin    *admin.Handler
	auth     *auth.Middleware
	metrics  http.Handler
	db       *sql.DB
}

func newRouter(h handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.WithHTTPRoute)
	r.Use(httpx.RequestLogger(logger))
	r.Use(httpx.Recoverer(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			logger.ErrorContext(ctx, "health check failed", "error", err)
			httpx.WriteJSON(w, logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.WriteJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.identity.HandleRegister)
			r.Post("/login", h.identity.HandleLogin)
			r.Post("/login/json", h.identity.HandleLoginJSON)
			r.With(h.auth.Authenticate).Get("/me", h.identity.HandleProfile)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.auth.Authenticate)
			r.Get("/profile", h.identity.HandleProfile)
			r.Put("/profile", h.identity.HandleUpdateProfile)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.catalog.HandleList)
			r.Get("/search", h.catalog.HandleSearch)
			r.Get("/{id}", h.catalog.HandleGet)

			r.Group(func(r chi.Router) {
				r.Use(h.auth.Authenticate, h.auth.RequireRole(domain.RoleAdmin))
				r.Post("/", h.catalog.HandleCreate)
				r.Put("/{id}", h.catalog.HandleUpdate)
				r.Delete("/{id}", h.catalog.HandleDelete)
				r.Patch("/{id}/stock", h.catalog.HandleAdjustStock)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(h.auth.Authenticate)
			r.Post("/", h.orders.HandleCreate)
			r.Get("/my-orders", h.orders.HandleListMine)
			r.Get("/{id}", h.orders.HandleGet)
			r.Put("/{id}/cancel", h.orders.HandleCancel)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.auth.Authenticate, h.auth.RequireRole(domain.RoleAdmin))
			r.Get("/stats", h.admin.HandleStats)
			r.Get("/orders", h.admin.HandleListOrders)
			r.Put("/orders/{id}/status", h.admin.HandleUpdateStatus)
		})
	})

	return r
}
