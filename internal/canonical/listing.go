package canonical

import (
	"sort"

	"github.com/go-playground/validator/v10"
)

// ListingPayload is the one concrete canonical schema this hub ships:
// canonical.listing@1.0. Field-level constraints are validator/v10 tags;
// cross-field rules are enforced in a StructLevel function because
// validator's declarative tags can't express "rent purpose requires rent
// or list_price" cleanly.
type ListingPayload struct {
	CanonicalID     string   `json:"canonical_id" validate:"required"`
	SourceListingID string   `json:"source_listing_id" validate:"required"`
	Schema          string   `json:"schema" validate:"required"`
	SchemaVersion   string   `json:"schema_version" validate:"required"`
	Title           string   `json:"title" validate:"required"`
	Description     string   `json:"description,omitempty"`
	PropertyType    string   `json:"property_type" validate:"required"`
	ListingPurpose  string   `json:"listing_purpose" validate:"required,oneof=sale rent"`
	ListPrice       *float64 `json:"list_price,omitempty" validate:"omitempty,gte=0"`
	RentPrice       *float64 `json:"rent_price,omitempty" validate:"omitempty,gte=0"`
	Currency        string   `json:"currency,omitempty"`
	Bedrooms        *int     `json:"bedrooms,omitempty" validate:"omitempty,gte=0"`
	Bathrooms       *int     `json:"bathrooms,omitempty" validate:"omitempty,gte=0"`
	AreaSqm         *float64 `json:"area_sqm,omitempty" validate:"omitempty,gt=0"`
	CitySlug        string   `json:"city_slug,omitempty"`
	AreaSlug        string   `json:"area_slug,omitempty"`
	Address         string   `json:"address,omitempty"`
	Media           []string `json:"media,omitempty"`
	Amenities       []string `json:"amenities,omitempty"`
	Offer           *Offer   `json:"offer,omitempty"`
	Status          string   `json:"status" validate:"required,oneof=active inactive"`
}

// Offer is a timed promotional offer window; when present, StartAt must
// precede EndAt.
type Offer struct {
	StartAt string `json:"start_at" validate:"required"`
	EndAt   string `json:"end_at" validate:"required"`
}

// ListingValidator implements Validator for canonical.listing@1.0.
type ListingValidator struct {
	v *validator.Validate
}

func NewListingValidator() *ListingValidator {
	v := validator.New()
	v.RegisterStructValidation(listingStructLevel, ListingPayload{})
	return &ListingValidator{v: v}
}

func (lv *ListingValidator) Schema() string  { return ListingSchema }
func (lv *ListingValidator) Version() string { return ListingSchemaVersion }

func listingStructLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(ListingPayload)

	if p.ListingPurpose == "rent" && p.RentPrice == nil && p.ListPrice == nil {
		sl.ReportError(p.RentPrice, "RentPrice", "rent_price", "rent_purpose_requires_price", "")
	}
	if p.Offer != nil && p.Offer.StartAt != "" && p.Offer.EndAt != "" {
		if p.Offer.StartAt >= p.Offer.EndAt {
			sl.ReportError(p.Offer.EndAt, "Offer.EndAt", "end_at", "offer_end_after_start", "")
		}
	}
}

// Validate decodes payload into a ListingPayload, runs field+cross-field
// validation, normalizes (sorts list fields, strips nils), and computes the
// stable content hash over the normalized form.
func (lv *ListingValidator) Validate(payload map[string]any) Result {
	p, decodeErrs := decodeListingPayload(payload)
	if len(decodeErrs) > 0 {
		return Result{Errors: decodeErrs}
	}

	if err := lv.v.Struct(p); err != nil {
		var errs []ValidationError
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs = append(errs, ValidationError{Field: fe.Field(), Message: fe.Tag()})
			}
		} else {
			errs = append(errs, ValidationError{Field: "_", Message: err.Error()})
		}
		return Result{Errors: errs}
	}

	normalized := normalizeListing(p)
	hash := StableHash(normalized)
	return Result{Normalized: normalized, ContentHash: hash}
}

// normalizeListing converts p into the canonical map form: sorted Media and
// Amenities slices, all nil/empty-optional fields omitted. Sorting by plain
// lexical order gives a deterministic key, matching the stable-JSON
// serialization step that follows.
func normalizeListing(p ListingPayload) map[string]any {
	out := map[string]any{
		"canonical_id":      p.CanonicalID,
		"source_listing_id": p.SourceListingID,
		"schema":            p.Schema,
		"schema_version":    p.SchemaVersion,
		"title":             p.Title,
		"property_type":     p.PropertyType,
		"listing_purpose":   p.ListingPurpose,
		"status":            p.Status,
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.ListPrice != nil {
		out["list_price"] = *p.ListPrice
	}
	if p.RentPrice != nil {
		out["rent_price"] = *p.RentPrice
	}
	if p.Currency != "" {
		out["currency"] = p.Currency
	}
	if p.Bedrooms != nil {
		out["bedrooms"] = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		out["bathrooms"] = *p.Bathrooms
	}
	if p.AreaSqm != nil {
		out["area_sqm"] = *p.AreaSqm
	}
	if p.CitySlug != "" {
		out["city_slug"] = p.CitySlug
	}
	if p.AreaSlug != "" {
		out["area_slug"] = p.AreaSlug
	}
	if p.Address != "" {
		out["address"] = p.Address
	}
	if len(p.Media) > 0 {
		media := append([]string(nil), p.Media...)
		sort.Strings(media)
		out["media"] = media
	}
	if len(p.Amenities) > 0 {
		amenities := append([]string(nil), p.Amenities...)
		sort.Strings(amenities)
		out["amenities"] = amenities
	}
	if p.Offer != nil {
		out["offer"] = map[string]any{
			"start_at": p.Offer.StartAt,
			"end_at":   p.Offer.EndAt,
		}
	}
	return out
}
