// Package adapters is the process-wide registry resolving a partner's raw
// listing payload to the canonical mapping function that understands it.
package adapters

import (
	"fmt"
	"sync"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// ErrAdapterNotFound means no adapter is registered for (partnerKey, version).
type ErrAdapterNotFound struct {
	PartnerKey string
	Version    string
}

func (e ErrAdapterNotFound) Error() string {
	return fmt.Sprintf("adapter_not_found: %s@%s", e.PartnerKey, e.Version)
}

// ErrForbiddenOverride is returned when a caller without partner-admin
// authority requests a non-default adapter version.
type ErrForbiddenOverride struct {
	PartnerKey string
	Requested  string
	Default    string
}

func (e ErrForbiddenOverride) Error() string {
	return fmt.Sprintf("forbidden_adapter_override: %s requested %s, default is %s", e.PartnerKey, e.Requested, e.Default)
}

// Registry is populated once at process start and read thereafter; a
// read-write lock guards a rare hot-reload (re-registering an adapter
// version), matching the global-mutable-registry pattern used across the
// hub's plugin points.
type Registry struct {
	mu              sync.RWMutex
	adapters        map[string]contracts.Adapter // "partnerKey@version"
	defaultVersions map[string]string            // partnerKey -> version
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:        make(map[string]contracts.Adapter),
		defaultVersions: make(map[string]string),
	}
}

// Register adds an adapter for partnerKey. The first adapter registered for
// a given partnerKey becomes its default version unless overridden by
// SetDefault.
func (r *Registry) Register(partnerKey string, a contracts.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[partnerKey+"@"+a.Version()] = a
	if _, ok := r.defaultVersions[partnerKey]; !ok {
		r.defaultVersions[partnerKey] = a.Version()
	}
}

func (r *Registry) SetDefault(partnerKey, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultVersions[partnerKey] = version
}

// Resolve returns the adapter for (partnerKey, requestedVersion). An empty
// requestedVersion resolves to the partner's default. A non-empty,
// non-default version is only honored when callerIsPartnerAdmin; otherwise
// ErrForbiddenOverride is returned so the caller can record a failed
// IngestRun with type=forbidden.
func (r *Registry) Resolve(partnerKey, requestedVersion string, callerIsPartnerAdmin bool) (contracts.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, hasDefault := r.defaultVersions[partnerKey]
	version := requestedVersion
	if version == "" {
		version = def
	}
	if version != def && !callerIsPartnerAdmin {
		return nil, ErrForbiddenOverride{PartnerKey: partnerKey, Requested: version, Default: def}
	}
	if version == "" {
		return nil, ErrAdapterNotFound{PartnerKey: partnerKey, Version: requestedVersion}
	}
	_ = hasDefault
	a, ok := r.adapters[partnerKey+"@"+version]
	if !ok {
		return nil, ErrAdapterNotFound{PartnerKey: partnerKey, Version: version}
	}
	return a, nil
}
