package store

import (
	"context"
	"sort"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func (s *MemoryStore) AppendOutboxEvent(_ context.Context, e models.OutboxEvent) (models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = models.OutboxStatusPending
	}
	s.outboxEvents[e.ID] = e
	return e, nil
}

// ReclaimExpiredLeases mirrors step 1 of the dispatcher tick: any
// processing row whose lease has expired reverts to pending.
func (s *MemoryStore) ReclaimExpiredLeases(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, e := range s.outboxEvents {
		if e.Status == models.OutboxStatusProcessing && e.LeaseExpiresAt != nil && e.LeaseExpiresAt.Before(now) {
			e.Status = models.OutboxStatusPending
			e.LeaseID = ""
			e.LeaseExpiresAt = nil
			e.LastError = "requeued: lease expired"
			s.outboxEvents[id] = e
			count++
		}
	}
	return count, nil
}

// ClaimOutboxEvents is the in-process analogue of "SELECT ... FOR UPDATE
// SKIP LOCKED": the single mutex already serializes every caller, so the
// claim is just "pick up to limit pending rows ordered by created_at and
// flip them to processing under lease" with no separate locking step.
func (s *MemoryStore) ClaimOutboxEvents(_ context.Context, limit int, leaseDuration time.Duration, now time.Time) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []models.OutboxEvent
	for _, e := range s.outboxEvents {
		if e.Status == models.OutboxStatusPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}

	claimed := make([]models.OutboxEvent, 0, len(pending))
	for _, e := range pending {
		leaseID := newID()
		expires := now.Add(leaseDuration)
		e.Status = models.OutboxStatusProcessing
		e.Attempts++
		e.LeaseID = leaseID
		e.LeaseExpiresAt = &expires
		e.ProcessingStartedAt = &now
		s.outboxEvents[e.ID] = e
		claimed = append(claimed, e)
	}
	return claimed, nil
}

func (s *MemoryStore) GetOutboxEvent(_ context.Context, id string) (models.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.outboxEvents[id]
	if !ok {
		return models.OutboxEvent{}, ErrNotFound{Entity: "outbox_event", Key: id}
	}
	return e, nil
}

func (s *MemoryStore) CompleteOutboxEvent(_ context.Context, id, leaseID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outboxEvents[id]
	if !ok {
		return ErrNotFound{Entity: "outbox_event", Key: id}
	}
	if e.LeaseID != leaseID {
		return ErrLeaseLost{Entity: "outbox_event", ID: id}
	}
	e.Status = models.OutboxStatusDone
	e.ProcessedAt = &now
	e.LeaseID = ""
	e.LeaseExpiresAt = nil
	s.outboxEvents[id] = e
	return nil
}

func (s *MemoryStore) RequeueOutboxEvent(_ context.Context, id, leaseID, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outboxEvents[id]
	if !ok {
		return ErrNotFound{Entity: "outbox_event", Key: id}
	}
	if e.LeaseID != leaseID {
		return ErrLeaseLost{Entity: "outbox_event", ID: id}
	}
	e.Status = models.OutboxStatusPending
	e.LeaseID = ""
	e.LeaseExpiresAt = nil
	e.LastError = lastError
	s.outboxEvents[id] = e
	return nil
}
