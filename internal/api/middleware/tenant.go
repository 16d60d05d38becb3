package middleware

import (
	"context"
	"net/http"

	pkgmw "github.com/syndicatehub/hub/pkg/middleware"
)

type contextKey string

const (
	// TenantIDKey is the context key the rest of the handlers read the
	// scoping tenant id from.
	TenantIDKey contextKey = "tenant_id"
)

// TenantScope reads the tenant id off the Identity the auth middleware
// already placed in context and republishes it under TenantIDKey, so
// handlers that only care about scoping (not the full Identity) have a
// single place to look. It must run after AuthMiddleware in the chain.
func TenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := pkgmw.GetIdentity(ctx); id != nil && id.TenantID != "" {
			ctx = context.WithValue(ctx, TenantIDKey, id.TenantID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID retrieves the scoping tenant id from the request context, or
// "" if the request carries no authenticated identity.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return ""
}
