package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/syndicatehub/hub/pkg/contracts"
	pkgmw "github.com/syndicatehub/hub/pkg/middleware"
)

// AuthMiddleware authenticates requests through a contracts.AuthProviderChain
// and stores the resulting Identity in context. Public feed and health
// endpoints skip it; everything else (ingest, the /v1/partners and
// /v1/destinations admin routes, /v1/deliveries, /v1/me) requires a
// resolved Identity.
type AuthMiddleware struct {
	chain       contracts.AuthProviderChain
	requireAuth bool
}

func NewAuthMiddleware(chain contracts.AuthProviderChain, requireAuth bool) *AuthMiddleware {
	return &AuthMiddleware{chain: chain, requireAuth: requireAuth}
}

func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAuthPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := am.chain.Authenticate(r.Context(), r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			writeAuthError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
			return
		}

		if identity == nil && am.requireAuth {
			writeAuthError(w, http.StatusUnauthorized, "authentication_required",
				"this endpoint requires authentication: set Authorization: Bearer <key> or X-API-Key")
			return
		}

		ctx := pkgmw.SetIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAuthPublicPath(path string) bool {
	switch path {
	case "/health", "/version":
		return true
	}
	return len(path) >= len("/v1/feeds/") && path[:len("/v1/feeds/")] == "/v1/feeds/"
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="syndication-hub"`)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
