// Package api serves the dashboard's HTTP handlers: campaign ingestion,
// account linking, reports and read access to the active data source.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds the secrets and CORS origins of the router.
type RouterConfig struct {
	IngestAPIKey   string
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter creates the chi router and registers every route.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(noContentOptions)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(cfg.IngestAPIKey))
			r.Post("/campaigns", h.handleIngestCampaigns)
		})

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth([]byte(cfg.JWTSecret)))

			r.Post("/resolve-mcc", h.handleResolveMCC)
			r.Post("/account-bindings", h.handleUpsertBinding)

			r.Get("/reports/daily", h.handleDailyReport)
			r.Get("/reports/30d", h.handleThirtyDayReport)

			r.Get("/clients", h.handleListClients)
			r.Get("/clients/{id}", h.handleGetClient)
			r.Get("/clients/{id}/onboarding", h.handleClientOnboarding)
			r.Get("/alerts", h.handleListAlerts)
		})
	})

	return r
}

// noContentOptions answers OPTIONS requests the CORS middleware let
// through, so bare OPTIONS never reach a 405.
func noContentOptions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
