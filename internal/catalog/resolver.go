// Package catalog is the Catalog Substrate (C8): the flat enum/geo
// reference tables projections resolve against, plus the versioned
// catalog-set release lifecycle (draft -> pending -> active/rejected/
// archived) admins use to roll out a destination's mapping data safely.
// Grounded on app/destinations/mapping_base.py, mapping_admin_imports.py,
// mapping_diff.py, catalog_sets_admin.py and geo_admin.py.
package catalog

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/store"
)

// Resolver adapts store.CatalogStore to contracts.MappingResolver, the
// narrow read-only view projections consult. Store errors are logged and
// treated as "not mapped" rather than propagated, since a missing mapping
// is an expected, actionable outcome for a projection, not a fault.
type Resolver struct {
	store store.CatalogStore
	log   zerolog.Logger
}

func NewResolver(s store.CatalogStore, log zerolog.Logger) *Resolver {
	return &Resolver{store: s, log: log.With().Str("component", "catalog_resolver").Logger()}
}

func (r *Resolver) ResolveEnum(ctx context.Context, destination, namespace, sourceKey string) (string, bool) {
	value, ok, err := r.store.ResolveEnum(ctx, destination, namespace, sourceKey)
	if err != nil {
		r.log.Error().Err(err).Str("destination", destination).Str("namespace", namespace).Msg("resolve enum mapping failed")
		return "", false
	}
	return value, ok
}

func (r *Resolver) ResolveGeoArea(ctx context.Context, destination, geoAreaID string) (string, bool) {
	value, ok, err := r.store.ResolveGeoArea(ctx, destination, geoAreaID)
	if err != nil {
		r.log.Error().Err(err).Str("destination", destination).Str("geo_area_id", geoAreaID).Msg("resolve geo mapping failed")
		return "", false
	}
	return value, ok
}
