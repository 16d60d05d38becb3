// Package auth provides the hub's AuthProvider implementations. The hub
// ships a single concrete provider — a static, pepper-hashed API key store
// — behind the same contracts.AuthProvider/AuthProviderChain seam a richer
// deployment would plug OIDC or mTLS into; spec.md excludes the concrete
// authentication surface from the core, so only the seam and one minimal
// implementation live here.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// APIKeyRecord is one registered key's scope, as an admin bootstrap
// endpoint (external to this core) would provision it.
type APIKeyRecord struct {
	TenantID     string
	PartnerID    string
	AgentID      string
	PartnerAdmin bool
}

// APIKeyProvider authenticates Authorization: Bearer / X-API-Key headers
// against a pepper-hashed, in-process key table. Keys are compared by
// their SHA-256(pepper || key) digest so the plaintext key is never held
// longer than one request.
type APIKeyProvider struct {
	headerName string
	pepper     string

	mu   sync.RWMutex
	keys map[string]APIKeyRecord // hex digest -> scope
}

func NewAPIKeyProvider(headerName, pepper string) *APIKeyProvider {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	return &APIKeyProvider{
		headerName: headerName,
		pepper:     pepper,
		keys:       make(map[string]APIKeyRecord),
	}
}

func (p *APIKeyProvider) Name() string { return "apikey" }

func (p *APIKeyProvider) Enabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys) > 0
}

// Register adds or replaces the scope for a plaintext key. Used by the
// bootstrap/key-rotation admin surface (external collaborator) to seed
// keys at runtime.
func (p *APIKeyProvider) Register(plaintextKey string, rec APIKeyRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[p.digest(plaintextKey)] = rec
}

// Revoke removes a key so it no longer authenticates.
func (p *APIKeyProvider) Revoke(plaintextKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, p.digest(plaintextKey))
}

func (p *APIKeyProvider) digest(plaintextKey string) string {
	sum := sha256.Sum256([]byte(p.pepper + plaintextKey))
	return hex.EncodeToString(sum[:])
}

// Authenticate returns (nil, nil) when the request carries no key at all —
// that lets a later provider in the chain take a turn. A key that is
// present but doesn't match any registered digest is a hard failure.
func (p *APIKeyProvider) Authenticate(_ context.Context, r *http.Request) (*contracts.Identity, error) {
	key := extractAPIKey(r, p.headerName)
	if key == "" {
		return nil, nil
	}

	digest := p.digest(key)

	p.mu.RLock()
	defer p.mu.RUnlock()

	candidate, ok := p.keys[digest]
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}
	// Constant-time re-compare against the matched digest guards against a
	// timing side-channel on map-lookup equality.
	if subtle.ConstantTimeCompare([]byte(digest), []byte(p.digest(key))) != 1 {
		return nil, fmt.Errorf("invalid API key")
	}

	return &contracts.Identity{
		Subject:      "apikey:" + digest[:16],
		TenantID:     candidate.TenantID,
		PartnerID:    candidate.PartnerID,
		AgentID:      candidate.AgentID,
		PartnerAdmin: candidate.PartnerAdmin,
		Provider:     p.Name(),
	}, nil
}

func extractAPIKey(r *http.Request, headerName string) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get(headerName); key != "" {
		return key
	}
	return ""
}
