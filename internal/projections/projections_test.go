package projections

import (
	"context"
	"testing"
)

type stubResolver struct {
	enums map[string]string // namespace:sourceKey -> destValue
	geo   map[string]string // geoKey -> destValue
}

func (s stubResolver) ResolveEnum(_ context.Context, _, namespace, sourceKey string) (string, bool) {
	v, ok := s.enums[namespace+":"+sourceKey]
	return v, ok
}

func (s stubResolver) ResolveGeoArea(_ context.Context, _, geoAreaID string) (string, bool) {
	v, ok := s.geo[geoAreaID]
	return v, ok
}

func TestPassthroughProjectionCopiesCanonical(t *testing.T) {
	p := NewPassthroughProjection()
	canonical := map[string]any{"title": "A flat", "canonical_id": "lst_1"}

	out, err := p.Project(context.Background(), stubResolver{}, canonical)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if out["title"] != "A flat" {
		t.Fatalf("expected passthrough of canonical fields, got %+v", out)
	}
	canonical["title"] = "mutated"
	if out["title"] == "mutated" {
		t.Fatal("expected Project to copy, not alias, the canonical map")
	}
}

func TestEvler101RequiredMappingKeysFlagsMissingValues(t *testing.T) {
	p := NewEvler101Projection()
	keys := p.RequiredMappingKeys(map[string]any{})

	if _, ok := keys.EnumKeys["property_type"][missingPropertyType]; !ok {
		t.Fatal("expected missing property_type sentinel")
	}
	if _, ok := keys.EnumKeys["currency"][missingCurrency]; !ok {
		t.Fatal("expected missing currency sentinel")
	}
}

func TestEvler101CheckMappingsReportsMissing(t *testing.T) {
	p := NewEvler101Projection()
	canonical := map[string]any{
		"property_type": "apartment",
		"currency":      "TRY",
		"city_slug":     "nicosia",
		"area_slug":     "kyrenia",
	}
	keys := p.RequiredMappingKeys(canonical)

	check := p.CheckMappings(context.Background(), stubResolver{}, keys)
	if check.OK {
		t.Fatal("expected missing mappings with an empty resolver")
	}
	if len(check.Missing) != 3 {
		t.Fatalf("expected 3 missing keys (property_type, currency, geo), got %v", check.Missing)
	}
}

func TestEvler101ProjectResolvesMappedFields(t *testing.T) {
	p := NewEvler101Projection()
	canonical := map[string]any{
		"canonical_id":    "lst_1",
		"listing_purpose": "rent",
		"rent_price":      float64(1500),
		"property_type":   "apartment",
		"currency":        "TRY",
		"city_slug":       "nicosia",
		"area_slug":       "kyrenia",
	}
	resolver := stubResolver{
		enums: map[string]string{"property_type:apartment": "12", "currency:TRY": "601"},
		geo:   map[string]string{"nicosia:kyrenia": "9001"},
	}

	ad, err := p.Project(context.Background(), resolver, canonical)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if ad["sale_or_rent"] != "R" || ad["price"] != float64(1500) {
		t.Fatalf("expected rent fields mapped, got %+v", ad)
	}
	if ad["type_id"] != "12" || ad["currency_id"] != "601" || ad["area_id"] != "9001" {
		t.Fatalf("expected resolved mapping ids, got %+v", ad)
	}
}
