package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// Chain tries its registered providers in order until one returns an
// Identity or a hard error. Additional providers (OIDC, mTLS, ...) register
// into the same chain without touching handler code.
type Chain struct {
	mu        sync.RWMutex
	providers []contracts.AuthProvider
}

func NewChain(providers ...contracts.AuthProvider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) RegisterProvider(p contracts.AuthProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers = append(c.providers, p)
}

// Authenticate walks the chain in order. A provider returning a non-nil
// error aborts the chain — that provider recognized the credential and
// rejected it, which is different from "not my credential, try next"
// (signaled by (nil, nil)).
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) (*contracts.Identity, error) {
	c.mu.RLock()
	providers := append([]contracts.AuthProvider(nil), c.providers...)
	c.mu.RUnlock()

	for _, p := range providers {
		if !p.Enabled() {
			continue
		}
		identity, err := p.Authenticate(ctx, r)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			return identity, nil
		}
	}
	return nil, nil
}
