package models

import "time"

// GeoCountry, GeoCity and GeoArea form the shared, slug-keyed geo catalog
// that destination geo mappings resolve against.
type GeoCountry struct {
	ID   string `json:"id" db:"id"`
	Slug string `json:"slug" db:"slug"`
	Name string `json:"name" db:"name"`
}

type GeoCity struct {
	ID        string `json:"id" db:"id"`
	CountryID string `json:"country_id" db:"country_id"`
	Slug      string `json:"slug" db:"slug"`
	Name      string `json:"name" db:"name"`
}

type GeoArea struct {
	ID     string `json:"id" db:"id"`
	CityID string `json:"city_id" db:"city_id"`
	Slug   string `json:"slug" db:"slug"`
	Name   string `json:"name" db:"name"`
}

// DestinationEnumMapping resolves a source enum key to the destination's
// own vocabulary, namespaced so the same source key can mean different
// things across e.g. "property_type" vs "listing_purpose".
type DestinationEnumMapping struct {
	ID               string `json:"id" db:"id"`
	Destination      string `json:"destination" db:"destination"`
	Namespace        string `json:"namespace" db:"namespace"`
	SourceKey        string `json:"source_key" db:"source_key"`
	DestinationValue string `json:"destination_value" db:"destination_value"`
}

// DestinationGeoMapping resolves a canonical GeoArea to a destination's own
// area identifier (e.g. 101evler's numeric area_id space).
type DestinationGeoMapping struct {
	ID                string `json:"id" db:"id"`
	Destination       string `json:"destination" db:"destination"`
	GeoAreaID         string `json:"geo_area_id" db:"geo_area_id"`
	DestinationAreaID string `json:"destination_area_id" db:"destination_area_id"`
}

// CatalogItemKind distinguishes enum vs geo rows inside an import/set item.
type CatalogItemKind string

const (
	CatalogItemEnum CatalogItemKind = "enum"
	CatalogItemGeo  CatalogItemKind = "geo"
)

// CatalogDiffClass is the preview/apply classification of one catalog item
// against current flat-table state.
type CatalogDiffClass string

const (
	CatalogDiffInsert  CatalogDiffClass = "insert"
	CatalogDiffUpdate  CatalogDiffClass = "update"
	CatalogDiffNoop    CatalogDiffClass = "noop"
	CatalogDiffInvalid CatalogDiffClass = "invalid"
)

// DestinationCatalogImportRun is a preview or apply pass over a batch of
// catalog items, with a per-item diff classification log.
type DestinationCatalogImportRun struct {
	ID          string                          `json:"id" db:"id"`
	Destination string                          `json:"destination" db:"destination"`
	Mode        string                          `json:"mode" db:"mode"` // preview | apply
	Items       []DestinationCatalogImportItem  `json:"items" db:"-"`
	CreatedAt   time.Time                       `json:"created_at" db:"created_at"`
}

type DestinationCatalogImportItem struct {
	ID          string           `json:"id" db:"id"`
	ImportRunID string           `json:"import_run_id" db:"import_run_id"`
	Kind        CatalogItemKind  `json:"kind" db:"kind"`
	Key         string           `json:"key" db:"key"` // "namespace:source_key" or "geo_area_id"
	Value       string           `json:"value" db:"value"`
	Class       CatalogDiffClass `json:"class" db:"class"`
	Reason      string           `json:"reason,omitempty" db:"reason"`
}

// DestinationCatalogSetItem is one enum or geo mapping entry bundled into a
// release. It carries the same shape as the flat tables plus a kind tag.
type DestinationCatalogSetItem struct {
	ID    string          `json:"id" db:"id"`
	SetID string          `json:"set_id" db:"set_id"`
	Kind  CatalogItemKind `json:"kind" db:"kind"`
	Key   string          `json:"key" db:"key"`
	Value string          `json:"value" db:"value"`
}

const (
	CatalogSetStatusDraft    = "draft"
	CatalogSetStatusPending  = "pending"
	CatalogSetStatusActive   = "active"
	CatalogSetStatusRejected = "rejected"
	CatalogSetStatusArchived = "archived"
)

// DestinationCatalogSet is a versioned "catalog release" bundling enum+geo
// items with a draft -> pending -> active/rejected/archived lifecycle.
type DestinationCatalogSet struct {
	ID          string    `json:"id" db:"id"`
	Destination string    `json:"destination" db:"destination"`
	CountryCode string    `json:"country_code" db:"country_code"`
	Status      string    `json:"status" db:"status"`
	Items       []DestinationCatalogSetItem `json:"items,omitempty" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// DestinationCatalogSetActive records the currently-applied set per
// (destination, country_code); at most one row per pair, enforced by an
// advisory lock taken during activation.
type DestinationCatalogSetActive struct {
	Destination string    `json:"destination" db:"destination"`
	CountryCode string    `json:"country_code" db:"country_code"`
	SetID       string    `json:"set_id" db:"set_id"`
	ActivatedAt time.Time `json:"activated_at" db:"activated_at"`
}
