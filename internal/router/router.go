package router

import (
	"net/http"

	"productcatalog-api/internal/handler"
	"productcatalog-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	ProductHandler *handler.ProductHandler
	AdminHandler   *handler.AdminHandler
	// AdminAuth guards the admin routes.
	AdminAuth func(http.Handler) http.Handler
	// RateLimit applies to the product routes.
	RateLimit func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check endpoints
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Product endpoints
		if cfg.ProductHandler != nil {
			r.Group(func(r chi.Router) {
				if cfg.RateLimit != nil {
					r.Use(cfg.RateLimit)
				}
				r.Route("/products", func(r chi.Router) {
					r.Get("/", cfg.ProductHandler.List)
					r.Post("/", cfg.ProductHandler.Create)
					r.Get("/{id}", cfg.ProductHandler.Get)
					r.Put("/{id}", cfg.ProductHandler.Update)
					r.Delete("/{id}", cfg.ProductHandler.Delete)
				})
			})
		}

		// Admin endpoints
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminAuth != nil {
					r.Use(cfg.AdminAuth)
				}
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Post("/cache/invalidate", cfg.AdminHandler.InvalidateCache)
				r.Delete("/cache/version", cfg.AdminHandler.ResetCache)
			})
		}
	})

	return r
}
