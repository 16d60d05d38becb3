package store

import (
	"context"
	"sort"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func deliveryPairKey(listingID, destination string) string { return listingID + "/" + destination }

func (s *MemoryStore) UpsertDelivery(_ context.Context, d models.Delivery) (models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertDeliveryLocked(d)
}

func (s *MemoryStore) upsertDeliveryLocked(d models.Delivery) (models.Delivery, error) {
	now := time.Now().UTC()
	pair := deliveryPairKey(d.ListingID, d.Destination)
	if existingID, ok := s.deliveryByPair[pair]; ok {
		existing := s.deliveries[existingID]
		d.ID = existingID
		d.CreatedAt = existing.CreatedAt
	} else {
		if d.ID == "" {
			d.ID = newID()
		}
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	s.deliveries[d.ID] = d
	s.deliveryByPair[pair] = d.ID
	return d, nil
}

func (s *MemoryStore) GetDelivery(_ context.Context, id string) (models.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliveries[id]
	if !ok {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: id}
	}
	return d, nil
}

func (s *MemoryStore) GetDeliveryByListingAndDestination(_ context.Context, listingID, destination string) (models.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.deliveryByPair[deliveryPairKey(listingID, destination)]
	if !ok {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: deliveryPairKey(listingID, destination)}
	}
	return s.deliveries[id], nil
}

// ClaimDeliveries is the in-process analogue of the Delivery Dispatcher's
// row-locked, skip-locked claim query: pick eligible rows and flip them to
// publishing under the single store mutex.
func (s *MemoryStore) ClaimDeliveries(_ context.Context, limit int, now time.Time) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []models.Delivery
	for _, d := range s.deliveries {
		if d.Eligible(now) {
			eligible = append(eligible, d)
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].UpdatedAt.Before(eligible[j].UpdatedAt) })
	if len(eligible) > limit {
		eligible = eligible[:limit]
	}

	claimed := make([]models.Delivery, 0, len(eligible))
	for _, d := range eligible {
		d.Status = models.DeliveryStatusPublishing
		d.UpdatedAt = now
		s.deliveries[d.ID] = d
		claimed = append(claimed, d)
	}
	return claimed, nil
}

func (s *MemoryStore) UpdateDelivery(_ context.Context, d models.Delivery) (models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.deliveries[d.ID]
	if !ok {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: d.ID}
	}
	d.CreatedAt = existing.CreatedAt
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID] = d
	return d, nil
}

func (s *MemoryStore) AppendDeliveryAttempt(_ context.Context, a models.DeliveryAttempt) (models.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.deliveryAttempts[a.DeliveryID] = append(s.deliveryAttempts[a.DeliveryID], a)
	return a, nil
}

func credentialKey(tenantID, partnerID, agentID, destination string) string {
	return tenantID + "/" + partnerID + "/" + agentID + "/" + destination
}

func (s *MemoryStore) GetCredential(_ context.Context, tenantID, partnerID, agentID, destination string) (models.AgentCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[credentialKey(tenantID, partnerID, agentID, destination)]
	if !ok || !c.Active {
		return models.AgentCredential{}, ErrNotFound{Entity: "agent_credential", Key: destination}
	}
	return c, nil
}

func (s *MemoryStore) UpsertCredential(_ context.Context, c models.AgentCredential) (models.AgentCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := credentialKey(c.TenantID, c.PartnerID, c.AgentID, c.Destination)
	now := time.Now().UTC()
	if existing, ok := s.credentials[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else {
		if c.ID == "" {
			c.ID = newID()
		}
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.credentials[key] = c
	return c, nil
}

func (s *MemoryStore) GetExternalMapping(_ context.Context, listingID, destination string) (models.ListingExternalMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.externalMappings[deliveryPairKey(listingID, destination)]
	if !ok {
		return models.ListingExternalMapping{}, ErrNotFound{Entity: "listing_external_mapping", Key: destination}
	}
	return m, nil
}

func (s *MemoryStore) UpsertExternalMapping(_ context.Context, m models.ListingExternalMapping) (models.ListingExternalMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deliveryPairKey(m.ListingID, m.Destination)
	if existing, ok := s.externalMappings[key]; ok {
		m.ID = existing.ID
	} else if m.ID == "" {
		m.ID = newID()
	}
	m.UpdatedAt = time.Now().UTC()
	s.externalMappings[key] = m
	return m, nil
}

func agentExternalKey(agentID, destination string) string { return agentID + "/" + destination }

func (s *MemoryStore) GetAgentExternalIdentity(_ context.Context, agentID, destination string) (models.AgentExternalIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agentExternalIDs[agentExternalKey(agentID, destination)]
	if !ok {
		return models.AgentExternalIdentity{}, ErrNotFound{Entity: "agent_external_identity", Key: destination}
	}
	return a, nil
}

func (s *MemoryStore) UpsertAgentExternalIdentity(_ context.Context, a models.AgentExternalIdentity) (models.AgentExternalIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := agentExternalKey(a.AgentID, a.Destination)
	if existing, ok := s.agentExternalIDs[key]; ok {
		a.ID = existing.ID
	} else if a.ID == "" {
		a.ID = newID()
	}
	s.agentExternalIDs[key] = a
	return a, nil
}
