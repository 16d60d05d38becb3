// Package handlers implements the hub's HTTP handlers: the authenticated
// ingest endpoint, the public hosted-feed endpoint, and a small admin
// surface over scoping, destinations, credentials and the catalog
// substrate.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/audit"
	"github.com/syndicatehub/hub/internal/catalog"
	"github.com/syndicatehub/hub/internal/crypto"
	"github.com/syndicatehub/hub/internal/errs"
	"github.com/syndicatehub/hub/internal/feed"
	"github.com/syndicatehub/hub/internal/idempotency"
	"github.com/syndicatehub/hub/internal/ingest"
	"github.com/syndicatehub/hub/internal/objectstore"
	"github.com/syndicatehub/hub/internal/ratelimit"
	"github.com/syndicatehub/hub/internal/store"
)

// Handlers holds every dependency the HTTP layer needs, wired once by
// pkg/server at startup.
type Handlers struct {
	Store               store.Store
	Ingest              *ingest.Service
	Catalog             *catalog.Service
	Idempotency         *idempotency.Service
	Audit               *audit.Log
	Objects             objectstore.Store
	Crypto              *crypto.Sealer
	FeedPlugins         *feed.Registry
	RateLimiter         ratelimit.Limiter
	FeedRateLimitPerMin int
	PublicBaseURL       string
	Version             string
	Log                 zerolog.Logger
}

func New(
	s store.Store,
	ingestSvc *ingest.Service,
	catalogSvc *catalog.Service,
	idempotencySvc *idempotency.Service,
	auditLog *audit.Log,
	objects objectstore.Store,
	sealer *crypto.Sealer,
	feedPlugins *feed.Registry,
	limiter ratelimit.Limiter,
	feedRateLimitPerMin int,
	publicBaseURL string,
	version string,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		Store:               s,
		Ingest:              ingestSvc,
		Catalog:             catalogSvc,
		Idempotency:         idempotencySvc,
		Audit:               auditLog,
		Objects:             objects,
		Crypto:              sealer,
		FeedPlugins:         feedPlugins,
		RateLimiter:         limiter,
		FeedRateLimitPerMin: feedRateLimitPerMin,
		PublicBaseURL:       publicBaseURL,
		Version:             version,
		Log:                 log.With().Str("component", "api_handlers").Logger(),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "syndication-hub"})
}

func (h *Handlers) VersionInfo(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": h.Version, "service": "syndication-hub"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]any{"error": code, "message": message})
}

// writeErr maps an error to an HTTP response without every call site
// picking its own status code: errs.HTTPError values (ValidationError,
// ConflictError, NotFoundError) and the lower-level store.ErrNotFound/
// ErrConflict one-offs each of the store's methods can still return are
// both dispatched here, with anything else falling back to a 500.
func writeErr(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case errs.HTTPError:
		respondError(w, e.HTTPStatus(), e.ErrorCode(), e.Error())
	case store.ErrNotFound:
		respondError(w, http.StatusNotFound, "not_found", e.Error())
	case store.ErrConflict:
		respondError(w, http.StatusConflict, "conflict", e.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
