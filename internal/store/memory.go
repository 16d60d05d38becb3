package store

import (
	"sync"

	"github.com/google/uuid"
	"github.com/syndicatehub/hub/pkg/models"
)

// MemoryStore is an in-process Store backed by maps under a single
// RWMutex, used by unit tests and local/dev runs without a Postgres
// instance. It favors clarity over performance — each entity family's
// methods live in their own file (memory_scope.go, memory_listing.go, ...).
type MemoryStore struct {
	mu sync.RWMutex

	tenants  map[string]models.Tenant
	partners map[string]models.Partner
	agents   map[string]models.Agent

	listings        map[string]models.Listing
	sourceMappings  map[string]models.SourceListingMapping // key: tenant/partner/partnerKey/sourceListingID
	ingestRuns      map[string]models.IngestRun
	ingestRunByIdem map[string]string // idem composite key -> ingest run id

	outboxEvents map[string]models.OutboxEvent

	deliveries       map[string]models.Delivery
	deliveryByPair   map[string]string // listingID/destination -> delivery id
	deliveryAttempts map[string][]models.DeliveryAttempt
	credentials      map[string]models.AgentCredential // tenant/partner/agent/destination
	externalMappings map[string]models.ListingExternalMapping
	agentExternalIDs map[string]models.AgentExternalIdentity

	partnerDestSettings map[string]models.PartnerDestinationSetting // tenant/partner/destination

	enumMappings map[string]string // destination/namespace/sourceKey -> value
	geoMappings  map[string]string // destination/geoAreaID -> destinationAreaID
	catalogRuns  map[string]models.DestinationCatalogImportRun
	catalogSets  map[string]models.DestinationCatalogSet
	activeSets   map[string]models.DestinationCatalogSetActive // destination/countryCode -> active pointer

	feedSnapshots map[string][]models.FeedSnapshot // tenant/partner/destination -> history, newest last

	idempotencyKeys map[string]models.IdempotencyKey // tenant/key

	auditLogs []models.AuditLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:             make(map[string]models.Tenant),
		partners:            make(map[string]models.Partner),
		agents:              make(map[string]models.Agent),
		listings:            make(map[string]models.Listing),
		sourceMappings:      make(map[string]models.SourceListingMapping),
		ingestRuns:          make(map[string]models.IngestRun),
		ingestRunByIdem:     make(map[string]string),
		outboxEvents:        make(map[string]models.OutboxEvent),
		deliveries:          make(map[string]models.Delivery),
		deliveryByPair:      make(map[string]string),
		deliveryAttempts:    make(map[string][]models.DeliveryAttempt),
		credentials:         make(map[string]models.AgentCredential),
		externalMappings:    make(map[string]models.ListingExternalMapping),
		agentExternalIDs:    make(map[string]models.AgentExternalIdentity),
		partnerDestSettings: make(map[string]models.PartnerDestinationSetting),
		enumMappings:        make(map[string]string),
		geoMappings:         make(map[string]string),
		catalogRuns:         make(map[string]models.DestinationCatalogImportRun),
		catalogSets:         make(map[string]models.DestinationCatalogSet),
		activeSets:          make(map[string]models.DestinationCatalogSetActive),
		feedSnapshots:       make(map[string][]models.FeedSnapshot),
		idempotencyKeys:     make(map[string]models.IdempotencyKey),
	}
}

func (s *MemoryStore) Close() error { return nil }

func newID() string { return uuid.NewString() }
