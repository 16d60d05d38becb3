package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

type fixedDestinations []string

func (f fixedDestinations) Names() []string { return []string(f) }

func seedListingAndAgent(t *testing.T, s *store.MemoryStore, allowed []string, rule string) models.Listing {
	t.Helper()
	ctx := context.Background()

	agent, err := s.CreateAgent(ctx, models.Agent{
		TenantID:            "t1",
		PartnerID:           "p1",
		Name:                "agent-1",
		Active:              true,
		AllowedDestinations: allowed,
		DestinationRule:     rule,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	listing, _, err := s.UpsertListing(ctx, models.Listing{
		ID:        "lst_1",
		TenantID:  "t1",
		PartnerID: "p1",
		AgentID:   agent.ID,
		Status:    models.ListingStatusActive,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	return listing
}

func TestDispatcherTickClaimsAndEnqueues(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	if _, err := s.AppendOutboxEvent(ctx, models.OutboxEvent{
		TenantID:      "t1",
		AggregateType: models.AggregateTypeListing,
		AggregateID:   "lst_1",
		EventType:     models.EventTypeUpserted,
		Payload:       map[string]any{"listing_id": "lst_1"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	q := NewChannelQueue(10)
	d := NewDispatcher(s, q, 10, time.Minute, zerolog.Nop())

	claimed, err := d.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 claimed, got %d", claimed)
	}

	select {
	case job := <-q.Jobs():
		if job.EventID == "" || job.LeaseID == "" {
			t.Fatalf("expected populated job, got %+v", job)
		}
	default:
		t.Fatal("expected a job to be enqueued")
	}
}

func TestWorkerFansOutAllowedDestinationsOnly(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	listing := seedListingAndAgent(t, s, []string{"mock_feed"}, "")

	ev, err := s.AppendOutboxEvent(ctx, models.OutboxEvent{
		TenantID:      listing.TenantID,
		AggregateType: models.AggregateTypeListing,
		AggregateID:   listing.ID,
		EventType:     models.EventTypeUpserted,
		Payload:       map[string]any{"listing_id": listing.ID},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	claimed, err := s.ClaimOutboxEvents(ctx, 10, time.Minute, time.Now().UTC())
	if err != nil || len(claimed) != 1 {
		t.Fatalf("claim: %d %v", len(claimed), err)
	}

	w := NewWorker(s, s, s, s, fixedDestinations{"mock_feed", "other_destination"}, zerolog.Nop())
	w.Process(ctx, Job{EventID: ev.ID, LeaseID: claimed[0].LeaseID})

	done, err := s.GetOutboxEvent(ctx, ev.ID)
	if err != nil || done.Status != models.OutboxStatusDone {
		t.Fatalf("expected event done, got %+v err=%v", done, err)
	}

	delivered, err := s.GetDeliveryByListingAndDestination(ctx, listing.ID, "mock_feed")
	if err != nil {
		t.Fatalf("expected delivery for mock_feed: %v", err)
	}
	if delivered.Status != models.DeliveryStatusPending {
		t.Fatalf("expected pending delivery, got %s", delivered.Status)
	}

	if _, err := s.GetDeliveryByListingAndDestination(ctx, listing.ID, "other_destination"); err == nil {
		t.Fatal("expected no delivery created for a destination the agent doesn't allow")
	}
}

func TestWorkerHonorsDestinationRuleOverAllowedList(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	listing := seedListingAndAgent(t, s, nil, `status == "active" && destination == "mock_feed"`)

	ev, err := s.AppendOutboxEvent(ctx, models.OutboxEvent{
		TenantID:      listing.TenantID,
		AggregateType: models.AggregateTypeListing,
		AggregateID:   listing.ID,
		EventType:     models.EventTypeUpserted,
		Payload:       map[string]any{"listing_id": listing.ID},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	claimed, _ := s.ClaimOutboxEvents(ctx, 10, time.Minute, time.Now().UTC())

	w := NewWorker(s, s, s, s, fixedDestinations{"mock_feed", "other_destination"}, zerolog.Nop())
	w.Process(ctx, Job{EventID: ev.ID, LeaseID: claimed[0].LeaseID})

	if _, err := s.GetDeliveryByListingAndDestination(ctx, listing.ID, "mock_feed"); err != nil {
		t.Fatalf("expected delivery for mock_feed via destination_rule: %v", err)
	}
	if _, err := s.GetDeliveryByListingAndDestination(ctx, listing.ID, "other_destination"); err == nil {
		t.Fatal("expected destination_rule to exclude other_destination")
	}
}

func TestWorkerSkipsAlreadyDeadLetteredDelivery(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	listing := seedListingAndAgent(t, s, []string{"mock_feed"}, "")

	deadAt := time.Now().UTC()
	if _, err := s.UpsertDelivery(ctx, models.Delivery{
		TenantID: listing.TenantID, ListingID: listing.ID, Destination: "mock_feed",
		Status: models.DeliveryStatusDeadLettered, DeadLetteredAt: &deadAt,
	}); err != nil {
		t.Fatalf("seed dead-lettered delivery: %v", err)
	}

	ev, _ := s.AppendOutboxEvent(ctx, models.OutboxEvent{
		TenantID: listing.TenantID, AggregateType: models.AggregateTypeListing, AggregateID: listing.ID,
		EventType: models.EventTypeUpserted, Payload: map[string]any{"listing_id": listing.ID},
	})
	claimed, _ := s.ClaimOutboxEvents(ctx, 10, time.Minute, time.Now().UTC())

	w := NewWorker(s, s, s, s, fixedDestinations{"mock_feed"}, zerolog.Nop())
	w.Process(ctx, Job{EventID: ev.ID, LeaseID: claimed[0].LeaseID})

	delivered, err := s.GetDeliveryByListingAndDestination(ctx, listing.ID, "mock_feed")
	if err != nil {
		t.Fatalf("expected delivery still present: %v", err)
	}
	if delivered.Status != models.DeliveryStatusDeadLettered {
		t.Fatalf("expected dead-lettered delivery to stay dead-lettered, got %s", delivered.Status)
	}
}
