package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func feedKey(tenantID, partnerID, destination string) string {
	return tenantID + "/" + partnerID + "/" + destination
}

func (s *MemoryStore) CreateFeedSnapshot(_ context.Context, snap models.FeedSnapshot) (models.FeedSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.ID == "" {
		snap.ID = newID()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	key := feedKey(snap.TenantID, snap.PartnerID, snap.Destination)
	s.feedSnapshots[key] = append(s.feedSnapshots[key], snap)
	return snap, nil
}

func (s *MemoryStore) GetLatestFeedSnapshot(_ context.Context, tenantID, partnerID, destination string) (models.FeedSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.feedSnapshots[feedKey(tenantID, partnerID, destination)]
	if len(history) == 0 {
		return models.FeedSnapshot{}, ErrNotFound{Entity: "feed_snapshot", Key: destination}
	}
	return history[len(history)-1], nil
}
