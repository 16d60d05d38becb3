// Package store defines the hub's persistence boundary and ships two
// implementations: an in-memory store for tests and local development, and
// a Postgres store (pgxpool) for production. The Store interface is
// composed from one sub-interface per entity family so a handler can
// depend on only the slice it needs.
package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

// Store is the full persistence surface, composed of one interface per
// entity family so callers can depend on only the slice they need.
type Store interface {
	ScopeStore
	ListingStore
	OutboxStore
	DeliveryStore
	DestinationStore
	CatalogStore
	FeedStore
	IdempotencyStore
	AuditStore

	// Close releases underlying resources (connection pool, file handle).
	Close() error
}

// ScopeStore manages the tenant/partner/agent scoping hierarchy.
type ScopeStore interface {
	CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error)
	GetTenant(ctx context.Context, id string) (models.Tenant, error)

	CreatePartner(ctx context.Context, p models.Partner) (models.Partner, error)
	GetPartner(ctx context.Context, id string) (models.Partner, error)
	GetPartnerByKey(ctx context.Context, tenantID, key string) (models.Partner, error)

	CreateAgent(ctx context.Context, a models.Agent) (models.Agent, error)
	GetAgent(ctx context.Context, id string) (models.Agent, error)
	UpdateAgent(ctx context.Context, a models.Agent) (models.Agent, error)
}

// ListingStore covers the canonical listing record, its stable source
// mapping, and the ingest-run idempotency ledger.
type ListingStore interface {
	// UpsertListing inserts or updates by (tenant, partner, agent,
	// source_listing_id). materialChange reports whether content_hash
	// differs from the prior stored value (or this is a first insert).
	UpsertListing(ctx context.Context, l models.Listing) (stored models.Listing, materialChange bool, err error)
	GetListing(ctx context.Context, id string) (models.Listing, error)
	ListListingsByPartner(ctx context.Context, tenantID, partnerID string) ([]models.Listing, error)

	GetSourceListingMapping(ctx context.Context, tenantID, partnerID, partnerKey, sourceListingID string) (models.SourceListingMapping, error)
	CreateSourceListingMapping(ctx context.Context, m models.SourceListingMapping) (models.SourceListingMapping, error)

	// CreateIngestRun inserts a new run. ErrConflict signals the unique
	// (tenant, partner, partner_key, source_listing_id, idempotency_key)
	// index fired — the caller should look up and replay the existing run.
	CreateIngestRun(ctx context.Context, r models.IngestRun) (models.IngestRun, error)
	UpdateIngestRun(ctx context.Context, r models.IngestRun) (models.IngestRun, error)
	GetIngestRunByIdempotencyKey(ctx context.Context, tenantID, partnerID, partnerKey, sourceListingID, idempotencyKey string) (models.IngestRun, error)
}

// OutboxStore implements the leased-claim transactional outbox.
type OutboxStore interface {
	AppendOutboxEvent(ctx context.Context, e models.OutboxEvent) (models.OutboxEvent, error)

	// ReclaimExpiredLeases resets processing rows whose lease has expired
	// back to pending, clearing lease fields. Returns the count reset.
	ReclaimExpiredLeases(ctx context.Context, now time.Time) (int, error)

	// ClaimOutboxEvents selects up to limit pending events (row-locked,
	// skip-locked), assigns a fresh lease, bumps attempts, and returns
	// them already marked processing.
	ClaimOutboxEvents(ctx context.Context, limit int, leaseDuration time.Duration, now time.Time) ([]models.OutboxEvent, error)

	GetOutboxEvent(ctx context.Context, id string) (models.OutboxEvent, error)

	// CompleteOutboxEvent conditionally marks the event done, only if
	// leaseID still matches. Returns ErrLeaseLost otherwise.
	CompleteOutboxEvent(ctx context.Context, id, leaseID string, now time.Time) error

	// RequeueOutboxEvent conditionally reverts the event to pending with
	// lastError set, only if leaseID still matches.
	RequeueOutboxEvent(ctx context.Context, id, leaseID, lastError string) error
}

// DeliveryStore implements the per-(tenant,destination,listing) delivery
// state machine and its append-only attempt log.
type DeliveryStore interface {
	UpsertDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error)
	GetDelivery(ctx context.Context, id string) (models.Delivery, error)
	GetDeliveryByListingAndDestination(ctx context.Context, listingID, destination string) (models.Delivery, error)

	// ClaimDeliveries selects up to limit eligible rows (row-locked,
	// skip-locked) and marks them publishing.
	ClaimDeliveries(ctx context.Context, limit int, now time.Time) ([]models.Delivery, error)

	UpdateDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error)
	AppendDeliveryAttempt(ctx context.Context, a models.DeliveryAttempt) (models.DeliveryAttempt, error)

	GetCredential(ctx context.Context, tenantID, partnerID, agentID, destination string) (models.AgentCredential, error)
	UpsertCredential(ctx context.Context, c models.AgentCredential) (models.AgentCredential, error)

	GetExternalMapping(ctx context.Context, listingID, destination string) (models.ListingExternalMapping, error)
	UpsertExternalMapping(ctx context.Context, m models.ListingExternalMapping) (models.ListingExternalMapping, error)

	GetAgentExternalIdentity(ctx context.Context, agentID, destination string) (models.AgentExternalIdentity, error)
	UpsertAgentExternalIdentity(ctx context.Context, a models.AgentExternalIdentity) (models.AgentExternalIdentity, error)
}

// DestinationStore covers per-partner destination enablement/config,
// including the rotatable hosted-feed token.
type DestinationStore interface {
	GetPartnerDestinationSetting(ctx context.Context, tenantID, partnerID, destination string) (models.PartnerDestinationSetting, error)
	// UpsertPartnerDestinationSetting preserves the existing FeedToken when
	// the incoming value is empty.
	UpsertPartnerDestinationSetting(ctx context.Context, s models.PartnerDestinationSetting) (models.PartnerDestinationSetting, error)
	ListEnabledHostedFeedSettings(ctx context.Context) ([]models.PartnerDestinationSetting, error)
}

// CatalogStore covers the flat enum/geo tables and the catalog-set release
// lifecycle.
type CatalogStore interface {
	ResolveEnum(ctx context.Context, destination, namespace, sourceKey string) (string, bool, error)
	ResolveGeoArea(ctx context.Context, destination, geoAreaID string) (string, bool, error)

	UpsertEnumMapping(ctx context.Context, m models.DestinationEnumMapping) error
	UpsertGeoMapping(ctx context.Context, m models.DestinationGeoMapping) error

	CreateCatalogImportRun(ctx context.Context, run models.DestinationCatalogImportRun) (models.DestinationCatalogImportRun, error)

	CreateCatalogSet(ctx context.Context, s models.DestinationCatalogSet) (models.DestinationCatalogSet, error)
	GetCatalogSet(ctx context.Context, id string) (models.DestinationCatalogSet, error)
	UpdateCatalogSetStatus(ctx context.Context, id, status string) (models.DestinationCatalogSet, error)

	// ActivateCatalogSet applies all of a set's items into the flat tables
	// transactionally and updates the SetActive pointer for
	// (destination, country_code), taking an advisory lock on that pair so
	// at most one set is ever active for it.
	ActivateCatalogSet(ctx context.Context, setID string) error
	GetActiveCatalogSet(ctx context.Context, destination, countryCode string) (models.DestinationCatalogSetActive, error)
}

// FeedStore covers immutable hosted-feed build snapshots.
type FeedStore interface {
	CreateFeedSnapshot(ctx context.Context, s models.FeedSnapshot) (models.FeedSnapshot, error)
	GetLatestFeedSnapshot(ctx context.Context, tenantID, partnerID, destination string) (models.FeedSnapshot, error)
}

// IdempotencyStore backs request/response idempotency for the public API.
type IdempotencyStore interface {
	// ReserveIdempotencyKey inserts a new row if absent, or returns the
	// existing one if present (caller compares request_hash).
	ReserveIdempotencyKey(ctx context.Context, k models.IdempotencyKey) (existing models.IdempotencyKey, created bool, err error)
	CompleteIdempotencyKey(ctx context.Context, tenantID, key string, response map[string]any) error
}

// AuditStore is an append-only operator action log.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e models.AuditLog) (models.AuditLog, error)
}
