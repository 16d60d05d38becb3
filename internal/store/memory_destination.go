package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func destSettingKey(tenantID, partnerID, destination string) string {
	return tenantID + "/" + partnerID + "/" + destination
}

func (s *MemoryStore) GetPartnerDestinationSetting(_ context.Context, tenantID, partnerID, destination string) (models.PartnerDestinationSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.partnerDestSettings[destSettingKey(tenantID, partnerID, destination)]
	if !ok {
		return models.PartnerDestinationSetting{}, ErrNotFound{Entity: "partner_destination_setting", Key: destination}
	}
	return v, nil
}

// UpsertPartnerDestinationSetting preserves the existing FeedToken when the
// incoming value is empty, so a config-only update never silently
// invalidates a partner's hosted-feed URL.
func (s *MemoryStore) UpsertPartnerDestinationSetting(_ context.Context, v models.PartnerDestinationSetting) (models.PartnerDestinationSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := destSettingKey(v.TenantID, v.PartnerID, v.Destination)
	now := time.Now().UTC()
	if existing, ok := s.partnerDestSettings[key]; ok {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt
		if v.FeedToken == "" {
			v.FeedToken = existing.FeedToken
		}
	} else {
		if v.ID == "" {
			v.ID = newID()
		}
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	s.partnerDestSettings[key] = v
	return v, nil
}

func (s *MemoryStore) ListEnabledHostedFeedSettings(_ context.Context) ([]models.PartnerDestinationSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PartnerDestinationSetting
	for _, v := range s.partnerDestSettings {
		if v.Enabled {
			out = append(out, v)
		}
	}
	return out, nil
}
