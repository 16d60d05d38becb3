package adapters

import "github.com/syndicatehub/hub/pkg/contracts"

// Passthrough is the default adapter for partners whose raw payload is
// already shaped like the canonical document — it copies the raw map
// verbatim and lets the downstream canonical.Validator do all the real
// work. Most integration test fixtures and the "mock" destination's source
// partner use this adapter.
type Passthrough struct {
	version string
}

func NewPassthrough(version string) Passthrough {
	return Passthrough{version: version}
}

func (p Passthrough) Version() string { return p.version }

func (p Passthrough) Map(raw map[string]any, _ contracts.AdapterContext) contracts.AdapterResult {
	canonical := make(map[string]any, len(raw))
	for k, v := range raw {
		canonical[k] = v
	}
	return contracts.AdapterResult{OK: true, Canonical: canonical}
}
