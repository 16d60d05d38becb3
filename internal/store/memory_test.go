package store

import (
	"context"
	"testing"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func TestOutboxClaimAndLeaseReclaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	e, err := s.AppendOutboxEvent(ctx, models.OutboxEvent{
		TenantID:      "t1",
		AggregateType: models.AggregateTypeListing,
		AggregateID:   "l1",
		EventType:     models.EventTypeUpserted,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	now := time.Now().UTC()
	claimed, err := s.ClaimOutboxEvents(ctx, 10, time.Minute, now)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("expected 1 claimed event, got %d err=%v", len(claimed), err)
	}
	lease1 := claimed[0].LeaseID
	if lease1 == "" {
		t.Fatal("expected non-empty lease id")
	}

	// A second claim immediately after should see nothing pending.
	again, _ := s.ClaimOutboxEvents(ctx, 10, time.Minute, now)
	if len(again) != 0 {
		t.Fatalf("expected no pending events left, got %d", len(again))
	}

	// Simulate the lease expiring and the worker crashing before completion.
	expired, _ := s.ClaimOutboxEvents(ctx, 10, -time.Second, now)
	_ = expired
	reclaimed, err := s.ReclaimExpiredLeases(ctx, now.Add(time.Hour))
	if err != nil || reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed lease, got %d err=%v", reclaimed, err)
	}

	// Second tick can now claim it again with a fresh lease.
	claimed2, err := s.ClaimOutboxEvents(ctx, 10, time.Minute, now.Add(time.Hour))
	if err != nil || len(claimed2) != 1 {
		t.Fatalf("expected reclaimed event to be claimable, got %d err=%v", len(claimed2), err)
	}
	if claimed2[0].Attempts < 2 {
		t.Fatalf("expected attempts >= 2 after reclaim, got %d", claimed2[0].Attempts)
	}
	lease2 := claimed2[0].LeaseID
	if lease2 == lease1 {
		t.Fatal("expected a fresh lease id on reclaim")
	}

	if err := s.CompleteOutboxEvent(ctx, e.ID, lease1, now); err == nil {
		t.Fatal("expected stale lease completion to fail")
	}
	if err := s.CompleteOutboxEvent(ctx, e.ID, lease2, now); err != nil {
		t.Fatalf("expected current lease completion to succeed: %v", err)
	}

	done, err := s.GetOutboxEvent(ctx, e.ID)
	if err != nil || done.Status != models.OutboxStatusDone {
		t.Fatalf("expected event done, got %+v err=%v", done, err)
	}
}

func TestDeliveryClaimRespectsEligibility(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Now().UTC()
	future := now.Add(time.Hour)
	deadLettered := now

	_, _ = s.UpsertDelivery(ctx, models.Delivery{ListingID: "l1", Destination: "mock", Status: models.DeliveryStatusPending})
	_, _ = s.UpsertDelivery(ctx, models.Delivery{ListingID: "l2", Destination: "mock", Status: models.DeliveryStatusFailed, NextRetryAt: &future})
	_, _ = s.UpsertDelivery(ctx, models.Delivery{ListingID: "l3", Destination: "mock", Status: models.DeliveryStatusFailed, DeadLetteredAt: &deadLettered})
	_, _ = s.UpsertDelivery(ctx, models.Delivery{ListingID: "l4", Destination: "mock", Status: models.DeliveryStatusSuccess})

	claimed, err := s.ClaimDeliveries(ctx, 10, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected exactly 1 eligible delivery (l1), got %d", len(claimed))
	}
	if claimed[0].ListingID != "l1" {
		t.Fatalf("expected l1 claimed, got %s", claimed[0].ListingID)
	}
	if claimed[0].Status != models.DeliveryStatusPublishing {
		t.Fatalf("expected claimed delivery marked publishing, got %s", claimed[0].Status)
	}
}

func TestPartnerDestinationSettingPreservesFeedToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := s.UpsertPartnerDestinationSetting(ctx, models.PartnerDestinationSetting{
		TenantID: "t1", PartnerID: "p1", Destination: "101evler", Enabled: true, FeedToken: "secret-token",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	updated, err := s.UpsertPartnerDestinationSetting(ctx, models.PartnerDestinationSetting{
		TenantID: "t1", PartnerID: "p1", Destination: "101evler", Enabled: true,
		Config: map[string]any{"region": "north"},
	})
	if err != nil {
		t.Fatalf("upsert 2: %v", err)
	}
	if updated.FeedToken != v.FeedToken {
		t.Fatalf("expected feed token preserved, got %q want %q", updated.FeedToken, v.FeedToken)
	}
}

func TestIdempotencyKeyReserveIsOnceOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, created, err := s.ReserveIdempotencyKey(ctx, models.IdempotencyKey{TenantID: "t1", Key: "k1", RequestHash: "h1"})
	if err != nil || !created {
		t.Fatalf("expected first reserve to create, created=%v err=%v", created, err)
	}

	second, created2, err := s.ReserveIdempotencyKey(ctx, models.IdempotencyKey{TenantID: "t1", Key: "k1", RequestHash: "h2"})
	if err != nil {
		t.Fatalf("reserve 2: %v", err)
	}
	if created2 {
		t.Fatal("expected second reserve with same key to return the existing row")
	}
	if second.RequestHash != first.RequestHash {
		t.Fatalf("expected existing request hash preserved, got %s", second.RequestHash)
	}
}
