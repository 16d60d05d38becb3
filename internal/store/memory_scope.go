package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func (s *MemoryStore) CreateTenant(_ context.Context, t models.Tenant) (models.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.tenants[t.ID] = t
	return t, nil
}

func (s *MemoryStore) GetTenant(_ context.Context, id string) (models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return models.Tenant{}, ErrNotFound{Entity: "tenant", Key: id}
	}
	return t, nil
}

func (s *MemoryStore) CreatePartner(_ context.Context, p models.Partner) (models.Partner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.partners[p.ID] = p
	return p, nil
}

func (s *MemoryStore) GetPartner(_ context.Context, id string) (models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partners[id]
	if !ok {
		return models.Partner{}, ErrNotFound{Entity: "partner", Key: id}
	}
	return p, nil
}

func (s *MemoryStore) GetPartnerByKey(_ context.Context, tenantID, key string) (models.Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partners {
		if p.TenantID == tenantID && p.Key == key {
			return p, nil
		}
	}
	return models.Partner{}, ErrNotFound{Entity: "partner", Key: tenantID + "/" + key}
}

func (s *MemoryStore) CreateAgent(_ context.Context, a models.Agent) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.agents[a.ID] = a
	return a, nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return models.Agent{}, ErrNotFound{Entity: "agent", Key: id}
	}
	return a, nil
}

func (s *MemoryStore) UpdateAgent(_ context.Context, a models.Agent) (models.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		return models.Agent{}, ErrNotFound{Entity: "agent", Key: a.ID}
	}
	s.agents[a.ID] = a
	return a, nil
}
