package projections

import (
	"context"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// PassthroughProjection hands the canonical payload straight through,
// merging in the destination-side agent/listing identifiers when known.
// Grounded on app/projections/sample_passthrough.py.
type PassthroughProjection struct{}

func NewPassthroughProjection() *PassthroughProjection { return &PassthroughProjection{} }

func (p *PassthroughProjection) Destination() string { return "passthrough" }

func (p *PassthroughProjection) RequiredMappingKeys(map[string]any) contracts.RequiredMappingKeys {
	return contracts.RequiredMappingKeys{}
}

func (p *PassthroughProjection) CheckMappings(context.Context, contracts.MappingResolver, contracts.RequiredMappingKeys) contracts.MappingCheck {
	return contracts.MappingCheck{OK: true}
}

func (p *PassthroughProjection) Project(_ context.Context, _ contracts.MappingResolver, canonical map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(canonical))
	for k, v := range canonical {
		out[k] = v
	}
	return out, nil
}
