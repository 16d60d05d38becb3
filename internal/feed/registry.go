package feed

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
	return fmt.Sprintf("feed_plugin_not_found: %s", e.Destination)
}

// Registry is the process-wide Feed Plugin Registry, the same idiom as
// internal/destinations and internal/projections.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]contracts.FeedPlugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]contracts.FeedPlugin)}
}

func (r *Registry) Register(p contracts.FeedPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Destination()] = p
}

func (r *Registry) Get(destination string) (contracts.FeedPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[destination]
	if !ok {
		return nil, ErrNotFound{Destination: destination}
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for k := range r.plugins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
