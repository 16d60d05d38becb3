// Package models holds the persistent domain entities of the syndication
// hub: the tenant/partner/agent scoping hierarchy, the canonical listing
// record and its ingest/outbox/delivery derivatives, the destination
// catalog substrate, and the hosted-feed artifacts.
package models

import "time"

// Tenant is the top-level scoping boundary. Every row in the system carries
// a tenant_id and no query ever crosses tenants.
type Tenant struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Partner is a syndication source scoped to a tenant — the organization
// pushing listings into the hub.
type Partner struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Key       string    `json:"key" db:"key"` // partner_key used by adapters/ingest URLs
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Agent is a partner's sub-scope (e.g. a branch office or listing agent)
// that owns listings and carries the allowed_destinations rule consulted by
// the outbox worker when fanning a listing.upserted event out to Deliveries.
type Agent struct {
	ID                 string    `json:"id" db:"id"`
	TenantID           string    `json:"tenant_id" db:"tenant_id"`
	PartnerID          string    `json:"partner_id" db:"partner_id"`
	Name               string    `json:"name" db:"name"`
	Active             bool      `json:"active" db:"active"`
	AllowedDestinations []string `json:"allowed_destinations" db:"-"`
	// DestinationRule is an expr-lang boolean expression evaluated per
	// candidate destination with {destination, status, is_active} bound.
	// When empty, AllowedDestinations is used as a plain membership check.
	DestinationRule string    `json:"destination_rule,omitempty" db:"destination_rule"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
