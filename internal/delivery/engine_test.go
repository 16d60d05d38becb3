package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/crypto"
	"github.com/syndicatehub/hub/internal/destinations"
	"github.com/syndicatehub/hub/internal/projections"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

func testSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	s, err := crypto.NewSealer(key)
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	return s
}

func seedDelivery(t *testing.T, s *store.MemoryStore, sealer *crypto.Sealer, destination string) models.Delivery {
	t.Helper()
	ctx := context.Background()

	listing, _, err := s.UpsertListing(ctx, models.Listing{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", SourceListingID: "src-1",
		Payload: map[string]any{"canonical_id": "lst_1", "title": "A flat"}, ContentHash: "h1",
		Status: models.ListingStatusActive, IsActive: true,
	})
	if err != nil {
		t.Fatalf("upsert listing: %v", err)
	}

	sealed, err := sealer.SealJSON(map[string]string{"api_key": "secret"})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := s.UpsertCredential(ctx, models.AgentCredential{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", Destination: destination,
		Active: true, SealedSecret: sealed,
	}); err != nil {
		t.Fatalf("upsert credential: %v", err)
	}

	d, err := s.UpsertDelivery(ctx, models.Delivery{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", ListingID: listing.ID,
		Destination: destination, Status: models.DeliveryStatusPending,
	})
	if err != nil {
		t.Fatalf("upsert delivery: %v", err)
	}
	return d
}

func newTestEngine(t *testing.T, s *store.MemoryStore, sealer *crypto.Sealer) *Engine {
	t.Helper()
	connectors := destinations.NewRegistry()
	connectors.Register(destinations.NewMockConnector())
	projectorRegistry := projections.NewRegistry()
	projectorRegistry.Register(projections.NewPassthroughProjection())
	return NewEngine(s, s, connectors, projectorRegistry, s, sealer, 10, zerolog.Nop())
}

func TestEngineTickPublishesSuccessfully(t *testing.T) {
	s := store.NewMemoryStore()
	sealer := testSealer(t)
	d := seedDelivery(t, s, sealer, "mock")
	engine := newTestEngine(t, s, sealer)

	claimed, err := engine.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 claimed, got %d", claimed)
	}

	updated, err := s.GetDelivery(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if updated.Status != models.DeliveryStatusSuccess {
		t.Fatalf("expected success, got %s (%s)", updated.Status, updated.LastError)
	}
	if updated.LastSuccessAt == nil {
		t.Fatal("expected last_success_at to be set")
	}
}

func TestEngineSchedulesRetryOnTransientFailure(t *testing.T) {
	s := store.NewMemoryStore()
	sealer := testSealer(t)
	d := seedDelivery(t, s, sealer, "mock")

	ctx := context.Background()
	listing, err := s.GetListing(ctx, d.ListingID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	listing.Payload["title"] = "FAIL"
	if _, _, err := s.UpsertListing(ctx, listing); err != nil {
		t.Fatalf("re-upsert listing: %v", err)
	}

	engine := newTestEngine(t, s, sealer)
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	updated, err := s.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if updated.Status != models.DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if updated.NextRetryAt == nil || !updated.NextRetryAt.After(time.Now().UTC()) {
		t.Fatal("expected a future next_retry_at")
	}
	if updated.DeadLetteredAt != nil {
		t.Fatal("expected no dead-letter on first transient failure")
	}
}

func TestEngineDeadLettersAfterMaxAttempts(t *testing.T) {
	s := store.NewMemoryStore()
	sealer := testSealer(t)
	d := seedDelivery(t, s, sealer, "mock")
	d.Attempts = models.MaxDeliveryAttempts
	if _, err := s.UpdateDelivery(context.Background(), d); err != nil {
		t.Fatalf("update delivery: %v", err)
	}

	ctx := context.Background()
	listing, _ := s.GetListing(ctx, d.ListingID)
	listing.Payload["title"] = "FAIL"
	s.UpsertListing(ctx, listing)

	engine := newTestEngine(t, s, sealer)
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	updated, err := s.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if updated.DeadLetteredAt == nil {
		t.Fatal("expected dead-letter after exceeding max attempts")
	}
}

func TestEngineDedupsUnchangedContentHash(t *testing.T) {
	s := store.NewMemoryStore()
	sealer := testSealer(t)
	d := seedDelivery(t, s, sealer, "mock")
	ctx := context.Background()

	listing, err := s.GetListing(ctx, d.ListingID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if _, err := s.UpsertExternalMapping(ctx, models.ListingExternalMapping{
		TenantID: "t1", ListingID: d.ListingID, Destination: "mock",
		ExternalListingID: "ext-1", LastSyncedHash: listing.ContentHash,
	}); err != nil {
		t.Fatalf("seed external mapping: %v", err)
	}

	engine := newTestEngine(t, s, sealer)
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	updated, err := s.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if updated.Status != models.DeliveryStatusSuccess {
		t.Fatalf("expected success (dedup short-circuit), got %s", updated.Status)
	}
	if updated.Attempts != 0 {
		t.Fatalf("expected no attempt increment on dedup short-circuit, got %d", updated.Attempts)
	}
}

func TestEngineUpsertsExternalMappingOnSuccess(t *testing.T) {
	s := store.NewMemoryStore()
	sealer := testSealer(t)
	d := seedDelivery(t, s, sealer, "mock")
	ctx := context.Background()

	engine := newTestEngine(t, s, sealer)
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	mapping, err := s.GetExternalMapping(ctx, d.ListingID, "mock")
	if err != nil {
		t.Fatalf("expected external mapping to be recorded: %v", err)
	}
	listing, _ := s.GetListing(ctx, d.ListingID)
	if mapping.LastSyncedHash != listing.ContentHash {
		t.Fatalf("expected last_synced_hash %q, got %q", listing.ContentHash, mapping.LastSyncedHash)
	}
	if mapping.ExternalListingID == "" {
		t.Fatal("expected connector external id to be recorded")
	}
}

func TestEngineFailsWithoutCredentials(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	listing, _, err := s.UpsertListing(ctx, models.Listing{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", SourceListingID: "src-2",
		Payload: map[string]any{"canonical_id": "lst_2"}, ContentHash: "h2",
		Status: models.ListingStatusActive, IsActive: true,
	})
	if err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	d, err := s.UpsertDelivery(ctx, models.Delivery{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", ListingID: listing.ID,
		Destination: "mock", Status: models.DeliveryStatusPending,
	})
	if err != nil {
		t.Fatalf("upsert delivery: %v", err)
	}

	engine := newTestEngine(t, s, testSealer(t))
	if _, err := engine.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	updated, err := s.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if updated.StatusDetail != models.ErrorCodeNoCredentials {
		t.Fatalf("expected no-credentials error code, got %s", updated.StatusDetail)
	}
}
