package contracts

import "context"

// RequiredMappingKeys is computed purely from canonical data: the set of
// enum keys (namespaced) and geo area keys a projection will need resolved
// before it can run cleanly.
type RequiredMappingKeys struct {
	EnumKeys map[string]map[string]struct{} // namespace -> source_key set
	GeoKeys  map[string]struct{}            // "city_slug:area_slug"
}

// MappingCheck is the result of comparing RequiredMappingKeys against the
// catalog substrate.
type MappingCheck struct {
	OK       bool
	Missing  []string
	Warnings []string
}

// MappingResolver abstracts catalog lookups so projections never touch a
// store directly.
type MappingResolver interface {
	ResolveEnum(ctx context.Context, destination, namespace, sourceKey string) (string, bool)
	ResolveGeoArea(ctx context.Context, destination, geoAreaID string) (string, bool)
}

// Projection translates a canonical listing into one destination's payload
// shape, and tells the caller what it needs from the catalog substrate
// before attempting to do so.
type Projection interface {
	Destination() string

	RequiredMappingKeys(canonical map[string]any) RequiredMappingKeys

	CheckMappings(ctx context.Context, resolver MappingResolver, keys RequiredMappingKeys) MappingCheck

	Project(ctx context.Context, resolver MappingResolver, canonical map[string]any) (map[string]any, error)
}
