package canonical

import "testing"

func validPayload() map[string]any {
	return map[string]any{
		"canonical_id":      "c1",
		"source_listing_id": "s1",
		"schema":            ListingSchema,
		"schema_version":    ListingSchemaVersion,
		"title":             "2BR apartment",
		"property_type":     "apartment",
		"listing_purpose":   "rent",
		"rent_price":        1500.0,
		"status":            "active",
		"amenities":         []string{"pool", "gym", "parking"},
	}
}

func TestHashStability(t *testing.T) {
	lv := NewListingValidator()
	r1 := lv.Validate(validPayload())
	if !r1.OK() {
		t.Fatalf("expected valid payload, got errors: %v", r1.Errors)
	}
	r2 := lv.Validate(r1.Normalized)
	if !r2.OK() {
		t.Fatalf("expected re-validated normalized payload to be valid, got errors: %v", r2.Errors)
	}
	if r1.ContentHash != r2.ContentHash {
		t.Fatalf("hash(normalize(P)) != hash(normalize(normalize(P))): %s != %s", r1.ContentHash, r2.ContentHash)
	}
}

func TestAmenitiesSortedDeterministically(t *testing.T) {
	lv := NewListingValidator()
	p := validPayload()
	r := lv.Validate(p)
	if !r.OK() {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
	amenities := r.Normalized["amenities"].([]string)
	want := []string{"gym", "parking", "pool"}
	for i, v := range want {
		if amenities[i] != v {
			t.Fatalf("amenities not sorted: got %v", amenities)
		}
	}
}

func TestRentPurposeRequiresPrice(t *testing.T) {
	lv := NewListingValidator()
	p := validPayload()
	delete(p, "rent_price")
	r := lv.Validate(p)
	if r.OK() {
		t.Fatal("expected validation error for rent listing with no price")
	}
}

func TestOfferEndMustBeAfterStart(t *testing.T) {
	lv := NewListingValidator()
	p := validPayload()
	p["offer"] = map[string]any{"start_at": "2026-02-01T00:00:00Z", "end_at": "2026-01-01T00:00:00Z"}
	r := lv.Validate(p)
	if r.OK() {
		t.Fatal("expected validation error for offer end before start")
	}
}

func TestUnsupportedSchema(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewListingValidator())
	if _, err := reg.Resolve("canonical.listing", "2.0"); err == nil {
		t.Fatal("expected schema_not_supported error")
	}
}
