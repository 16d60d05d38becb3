// Package api builds the hub's HTTP router: the public ingest/feed surface,
// the partner_admin-scoped management surface, and the health/version/
// metrics endpoints.
package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/syndicatehub/hub/internal/api/handlers"
	"github.com/syndicatehub/hub/internal/api/middleware"
	"github.com/syndicatehub/hub/internal/metrics"
	"github.com/syndicatehub/hub/pkg/contracts"
)

// Config is the subset of startup configuration the router itself needs.
type Config struct {
	Version     string
	RequireAuth bool
}

// NewRouter wires the full middleware stack and route tree. authChain is
// nil-able: when nil, no AuthMiddleware is installed and every route runs
// unauthenticated (used by in-process tests that drive handlers directly).
func NewRouter(cfg Config, h *handlers.Handlers, authChain contracts.AuthProviderChain) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)

	if authChain != nil {
		authMW := middleware.NewAuthMiddleware(authChain, cfg.RequireAuth)
		r.Use(authMW.Handler)
	}
	r.Use(middleware.TenantScope)
	r.Use(middleware.Telemetry)

	corsOrigins := parseCORSOrigins()
	isWildcard := len(corsOrigins) == 1 && corsOrigins[0] == "*"
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-Id", "ETag", "X-RateLimit-Remaining"},
		AllowCredentials: !isWildcard,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/version", h.VersionInfo)
	r.Get("/v1/me", h.Me)
	r.Handle("/metrics", metrics.Handler())

	// Public hosted-feed artifacts: token-gated in the handler itself, not
	// by auth middleware (isAuthPublicPath skips this whole prefix).
	r.Route("/v1/feeds/{partner_id}", func(r chi.Router) {
		r.Get("/{destfile}", h.PublicFeed)
		r.Head("/{destfile}", h.PublicFeed)
	})

	r.Post("/v1/ingest/{partner_key}/listings/{source_listing_id}", h.Ingest)

	r.Route("/v1/partners/{partner_id}", func(r chi.Router) {
		r.Post("/adapters/{partner_key}/preview", h.PreviewAdapterMapping)

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Route("/{agent_id}", func(r chi.Router) {
				r.Put("/", h.UpdateAgent)
				r.Put("/credentials/{destination}", h.UpsertAgentCredential)
			})
		})

		r.Route("/destinations/{destination}", func(r chi.Router) {
			r.Put("/", h.UpsertDestinationSetting)
			r.Get("/feed-url", h.FeedURL)
			r.Get("/feed-health", h.FeedHealth)
		})

		r.Route("/ingest-runs/{partner_key}/{source_listing_id}/{idempotency_key}", func(r chi.Router) {
			r.Get("/", h.GetIngestRun)
			r.Post("/replay", h.ReplayIngestRun)
		})
	})

	r.Route("/v1/destinations/{destination}", func(r chi.Router) {
		r.Post("/catalog/import", h.ImportCatalog)
		r.Route("/catalog-sets", func(r chi.Router) {
			r.Post("/", h.CreateCatalogSet)
			r.Route("/{set_id}", func(r chi.Router) {
				r.Post("/submit", h.SubmitCatalogSet)
				r.Post("/reject", h.RejectCatalogSet)
				r.Post("/activate", h.ActivateCatalogSet)
			})
		})
	})

	r.Get("/v1/deliveries/{id}", h.GetDelivery)

	return r
}

func parseCORSOrigins() []string {
	originsEnv := os.Getenv("HUB_CORS_ORIGINS")
	if originsEnv == "" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(originsEnv, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
