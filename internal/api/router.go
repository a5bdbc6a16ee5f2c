package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"metricql/internal/middleware"
)

// RouterConfig holds the middleware settings of the HTTP router.
type RouterConfig struct {
	UserIDHeader       string
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
	// RequestLogging enables the chi access log.
	RequestLogging bool
}

// NewRouter mounts the handler routes under /api/v1. ctx bounds the lifetime
// of background middleware state.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig) http.Handler {
	if cfg.UserIDHeader == "" {
		cfg.UserIDHeader = "X-User-ID"
	}
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 100
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RequestLogging {
		r.Use(chimw.Logger)
	}
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", cfg.UserIDHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.UserIdentity(cfg.UserIDHeader))
		r.Use(middleware.RateLimiter(ctx, cfg.RateLimit))

		r.Route("/projects/{projectId}/explores", func(r chi.Router) {
			r.Get("/", h.ListExplores)
			r.Route("/{exploreName}", func(r chi.Router) {
				r.Get("/", h.GetExplore)
				r.Put("/", h.SaveExplore)
				r.Delete("/", h.DeleteExplore)
				r.Post("/compile", h.CompileQuery)
				r.Post("/run", h.RunQuery)
				r.Post("/export", h.ExportQuery)
			})
		})

		r.Post("/sql/export", h.ExportSQL)
		r.Get("/csv/{fileId}", h.DownloadCSV)

		r.Route("/users/{userId}/attributes", func(r chi.Router) {
			r.Get("/", h.GetUserAttributes)
			r.Put("/{name}", h.SetUserAttribute)
			r.Delete("/{name}", h.DeleteUserAttribute)
		})
	})
	return r
}
