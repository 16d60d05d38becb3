// Package projections is the process-wide Projection Registry (C7):
// resolves a destination to the contracts.Projection that maps a canonical
// listing into that destination's payload shape. Grounded on
// app/projections/registry.py's get_projector/supported_projectors.
package projections

import (
	"fmt"
	"sort"
	"sync"

	"github.com/syndicatehub/hub/pkg/contracts"
)

type ErrNotFound struct {
	Destination string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("projection_not_found: %s", e.Destination)
}

type Registry struct {
	mu          sync.RWMutex
	projections map[string]contracts.Projection
}

func NewRegistry() *Registry {
	return &Registry{projections: make(map[string]contracts.Projection)}
}

func (r *Registry) Register(p contracts.Projection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projections[p.Destination()] = p
}

func (r *Registry) Get(destination string) (contracts.Projection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projections[destination]
	if !ok {
		return nil, ErrNotFound{Destination: destination}
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.projections))
	for k := range r.projections {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
