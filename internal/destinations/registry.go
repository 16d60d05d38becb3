// Package destinations is the process-wide Connector Registry (C6):
// resolves a destination name to the contracts.Connector that knows how to
// publish to it. Grounded on app/destinations/registry.py's register/
// get_destination_connector/supported_destinations shape, generalized to
// the adapters.Registry idiom the rest of the hub's plugin points use.
package destinations

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
	return fmt.Sprintf("destination_connector_not_found: %s", e.Destination)
}

type Registry struct {
	mu         sync.RWMutex
	connectors map[string]contracts.Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]contracts.Connector)}
}

func (r *Registry) Register(c contracts.Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.Name()] = c
}

func (r *Registry) Get(destination string) (contracts.Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[destination]
	if !ok {
		return nil, ErrNotFound{Destination: destination}
	}
	return c, nil
}

// Names returns every registered destination, sorted. It satisfies
// outbox.DestinationLister.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.connectors))
	for k := range r.connectors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Capabilities is a convenience lookup the Feed Engine and Delivery Engine
// both use before dispatching work.
func (r *Registry) Capabilities(destination string) (contracts.Capabilities, error) {
	c, err := r.Get(destination)
	if err != nil {
		return contracts.Capabilities{}, err
	}
	return c.Capabilities(), nil
}
