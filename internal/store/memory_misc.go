package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func idemKey(tenantID, key string) string { return tenantID + "/" + key }

func (s *MemoryStore) ReserveIdempotencyKey(_ context.Context, k models.IdempotencyKey) (models.IdempotencyKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := idemKey(k.TenantID, k.Key)
	if existing, ok := s.idempotencyKeys[key]; ok {
		return existing, false, nil
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	s.idempotencyKeys[key] = k
	return k, true, nil
}

func (s *MemoryStore) CompleteIdempotencyKey(_ context.Context, tenantID, key string, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.idempotencyKeys[idemKey(tenantID, key)]
	if !ok {
		return ErrNotFound{Entity: "idempotency_key", Key: key}
	}
	k.Response = response
	s.idempotencyKeys[idemKey(tenantID, key)] = k
	return nil
}

func (s *MemoryStore) AppendAuditLog(_ context.Context, e models.AuditLog) (models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, e)
	return e, nil
}
