package projections

import (
	"context"
	"sort"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// Evler101Projection maps a canonical listing into the minimal 101evler
// <ad> field set and declares the enum/geo catalog entries it depends on.
// Grounded on app/destinations/evler101/projection.py (field mapping) and
// app/destinations/evler101/mapping_plugin.py (required_mapping_keys /
// check_mappings), generalized onto contracts.MappingResolver instead of
// a direct DB session.
type Evler101Projection struct{}

func NewEvler101Projection() *Evler101Projection { return &Evler101Projection{} }

func (p *Evler101Projection) Destination() string { return "101evler" }

const (
	missingPropertyType = "<missing>"
	missingCurrency     = "<missing_price>"
)

func (p *Evler101Projection) RequiredMappingKeys(canonical map[string]any) contracts.RequiredMappingKeys {
	enum := map[string]map[string]struct{}{
		"property_type": {},
		"currency":      {},
	}

	propertyType, _ := canonical["property_type"].(string)
	if propertyType == "" {
		propertyType = missingPropertyType
	}
	enum["property_type"][propertyType] = struct{}{}

	currency, _ := canonical["currency"].(string)
	if currency == "" {
		currency = missingCurrency
	}
	enum["currency"][currency] = struct{}{}

	citySlug, _ := canonical["city_slug"].(string)
	areaSlug, _ := canonical["area_slug"].(string)
	geo := map[string]struct{}{citySlug + ":" + areaSlug: {}}

	return contracts.RequiredMappingKeys{EnumKeys: enum, GeoKeys: geo}
}

func (p *Evler101Projection) CheckMappings(ctx context.Context, resolver contracts.MappingResolver, keys contracts.RequiredMappingKeys) contracts.MappingCheck {
	var missing []string

	for namespace, sourceKeys := range keys.EnumKeys {
		for sourceKey := range sourceKeys {
			if len(sourceKey) > 0 && sourceKey[0] == '<' {
				missing = append(missing, namespace+":"+sourceKey)
				continue
			}
			if _, ok := resolver.ResolveEnum(ctx, p.Destination(), namespace, sourceKey); !ok {
				missing = append(missing, namespace+":"+sourceKey)
			}
		}
	}

	for geoKey := range keys.GeoKeys {
		if _, ok := resolver.ResolveGeoArea(ctx, p.Destination(), geoKey); !ok {
			missing = append(missing, "geo:"+geoKey)
		}
	}

	sort.Strings(missing)
	return contracts.MappingCheck{OK: len(missing) == 0, Missing: missing}
}

func (p *Evler101Projection) Project(ctx context.Context, resolver contracts.MappingResolver, canonical map[string]any) (map[string]any, error) {
	ad := map[string]any{"ad_key": canonical["canonical_id"]}

	purpose, _ := canonical["listing_purpose"].(string)
	if purpose == "rent" {
		ad["sale_or_rent"] = "R"
	} else {
		ad["sale_or_rent"] = "S"
	}

	if price, ok := canonical["list_price"].(float64); ok {
		ad["price"] = price
	} else if price, ok := canonical["rent_price"].(float64); ok {
		ad["price"] = price
	}

	if propertyType, ok := canonical["property_type"].(string); ok && propertyType != "" {
		if resolved, ok := resolver.ResolveEnum(ctx, p.Destination(), "property_type", propertyType); ok {
			ad["type_id"] = resolved
		}
	}
	if currency, ok := canonical["currency"].(string); ok && currency != "" {
		if resolved, ok := resolver.ResolveEnum(ctx, p.Destination(), "currency", currency); ok {
			ad["currency_id"] = resolved
		}
	}

	citySlug, _ := canonical["city_slug"].(string)
	areaSlug, _ := canonical["area_slug"].(string)
	if citySlug != "" && areaSlug != "" {
		if resolved, ok := resolver.ResolveGeoArea(ctx, p.Destination(), citySlug+":"+areaSlug); ok {
			ad["area_id"] = resolved
		}
	}

	return ad, nil
}
