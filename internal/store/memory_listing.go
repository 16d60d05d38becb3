package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func (s *MemoryStore) UpsertListing(_ context.Context, l models.Listing) (models.Listing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var existing *models.Listing
	for id, cur := range s.listings {
		if cur.TenantID == l.TenantID && cur.PartnerID == l.PartnerID && cur.AgentID == l.AgentID && cur.SourceListingID == l.SourceListingID {
			c := cur
			existing = &c
			l.ID = id
			break
		}
	}

	materialChange := existing == nil || existing.ContentHash != l.ContentHash
	if l.ID == "" {
		l.ID = newID()
	}
	if existing == nil {
		l.CreatedAt = now
	} else {
		l.CreatedAt = existing.CreatedAt
	}
	l.UpdatedAt = now
	s.listings[l.ID] = l
	return l, materialChange, nil
}

func (s *MemoryStore) GetListing(_ context.Context, id string) (models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return models.Listing{}, ErrNotFound{Entity: "listing", Key: id}
	}
	return l, nil
}

func (s *MemoryStore) ListListingsByPartner(_ context.Context, tenantID, partnerID string) ([]models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Listing
	for _, l := range s.listings {
		if l.TenantID == tenantID && l.PartnerID == partnerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func sourceMappingKey(tenantID, partnerID, partnerKey, sourceListingID string) string {
	return tenantID + "/" + partnerID + "/" + partnerKey + "/" + sourceListingID
}

func (s *MemoryStore) GetSourceListingMapping(_ context.Context, tenantID, partnerID, partnerKey, sourceListingID string) (models.SourceListingMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.sourceMappings[sourceMappingKey(tenantID, partnerID, partnerKey, sourceListingID)]
	if !ok {
		return models.SourceListingMapping{}, ErrNotFound{Entity: "source_listing_mapping", Key: sourceListingID}
	}
	return m, nil
}

func (s *MemoryStore) CreateSourceListingMapping(_ context.Context, m models.SourceListingMapping) (models.SourceListingMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sourceMappingKey(m.TenantID, m.PartnerID, m.PartnerKey, m.SourceListingID)
	if _, ok := s.sourceMappings[key]; ok {
		return models.SourceListingMapping{}, ErrConflict{Entity: "source_listing_mapping", Key: key}
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.sourceMappings[key] = m
	return m, nil
}

func ingestIdemKey(tenantID, partnerID, partnerKey, sourceListingID, idemKey string) string {
	return tenantID + "/" + partnerID + "/" + partnerKey + "/" + sourceListingID + "/" + idemKey
}

func (s *MemoryStore) CreateIngestRun(_ context.Context, r models.IngestRun) (models.IngestRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ingestIdemKey(r.TenantID, r.PartnerID, r.PartnerKey, r.SourceListingID, r.IdempotencyKey)
	if _, ok := s.ingestRunByIdem[key]; ok {
		return models.IngestRun{}, ErrConflict{Entity: "ingest_run", Key: key}
	}
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.ingestRuns[r.ID] = r
	s.ingestRunByIdem[key] = r.ID
	return r, nil
}

func (s *MemoryStore) UpdateIngestRun(_ context.Context, r models.IngestRun) (models.IngestRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ingestRuns[r.ID]; !ok {
		return models.IngestRun{}, ErrNotFound{Entity: "ingest_run", Key: r.ID}
	}
	s.ingestRuns[r.ID] = r
	return r, nil
}

func (s *MemoryStore) GetIngestRunByIdempotencyKey(_ context.Context, tenantID, partnerID, partnerKey, sourceListingID, idempotencyKey string) (models.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := ingestIdemKey(tenantID, partnerID, partnerKey, sourceListingID, idempotencyKey)
	id, ok := s.ingestRunByIdem[key]
	if !ok {
		return models.IngestRun{}, ErrNotFound{Entity: "ingest_run", Key: key}
	}
	return s.ingestRuns[id], nil
}
