// Package contracts holds the interfaces that sit at plugin boundaries:
// authentication, destination connectors, projections, and feed plugins.
// Handlers and workers depend only on these interfaces, never on a
// concrete provider.
package contracts

import (
	"context"
	"net/http"
	"time"
)

// Identity represents an authenticated caller. Produced by an AuthProvider,
// consumed by tenant-scoping and partner-admin-override checks. No handler
// ever knows whether the caller came from a static API key or an external
// identity provider.
type Identity struct {
	// Subject is the unique identifier (API key id, service account name).
	Subject string `json:"subject"`

	// TenantID is the tenant scope this identity is confined to. Every
	// store call made on behalf of this identity is filtered to it.
	TenantID string `json:"tenant_id"`

	// PartnerID scopes the identity further to a single partner; empty
	// means the identity may act across all of the tenant's partners.
	PartnerID string `json:"partner_id,omitempty"`

	// AgentID scopes an agent-level API key to the one agent it may ingest
	// for. Empty means the identity is a partner_admin key that must name
	// the target agent_id in the ingest request body instead.
	AgentID string `json:"agent_id,omitempty"`

	// PartnerAdmin grants the authority to request a non-default adapter
	// version on ingest (see internal/ingest).
	PartnerAdmin bool `json:"partner_admin"`

	// Provider identifies which AuthProvider authenticated this identity.
	Provider string `json:"provider"`

	// ExpiresAt is when this identity's credential expires, if bounded.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// AuthProvider authenticates an HTTP request and returns an Identity.
//
// The chain pattern:
//   - Return (*Identity, nil) → authenticated, stop the chain.
//   - Return (nil, nil) → this provider doesn't handle this request, try next.
//   - Return (nil, error) → authentication was attempted but failed, reject.
type AuthProvider interface {
	// Name returns the provider identifier (e.g. "apikey").
	Name() string

	// Authenticate inspects the request and returns an Identity.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// Enabled returns whether this provider is configured and active.
	Enabled() bool
}

// AuthProviderChain tries providers in priority order until one returns an
// Identity. Kept as a seam: additional providers (OIDC, mTLS, ...) register
// into the same chain without touching handler code.
type AuthProviderChain interface {
	// Authenticate walks the chain of providers in order. Returns the
	// first successful Identity, or (nil, nil) if no provider matched.
	Authenticate(ctx context.Context, r *http.Request) (*Identity, error)

	// RegisterProvider adds a provider to the end of the chain.
	RegisterProvider(provider AuthProvider)
}
