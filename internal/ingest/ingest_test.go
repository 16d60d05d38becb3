package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/syndicatehub/hub/internal/adapters"
	"github.com/syndicatehub/hub/internal/canonical"
	"github.com/syndicatehub/hub/internal/store"
)

func newService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()

	adapterRegistry := adapters.NewRegistry()
	adapterRegistry.Register("acme", adapters.NewPassthrough("1.0"))

	validatorRegistry := canonical.NewRegistry()
	validatorRegistry.Register(canonical.NewListingValidator())

	return New(s, s, adapterRegistry, validatorRegistry), s
}

func basePayload() map[string]any {
	return map[string]any{
		"title":           "2BR apartment",
		"property_type":   "apartment",
		"listing_purpose": "rent",
		"rent_price":      1500.0,
		"status":          "active",
		"amenities":       []string{"pool", "gym"},
	}
}

func pendingOutboxCount(t *testing.T, s *store.MemoryStore) int {
	t.Helper()
	events, err := s.ClaimOutboxEvents(context.Background(), 1000, time.Minute, time.Now().UTC())
	if err != nil {
		t.Fatalf("claim outbox events: %v", err)
	}
	return len(events)
}

func TestIngestCreatesListingAndOutboxEvent(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	out, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k1",
		Payload:         basePayload(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.MaterialChange {
		t.Fatal("expected material_change=true on first creation")
	}
	if out.Listing.ID == "" {
		t.Fatal("expected a listing id to be assigned")
	}

	if got := pendingOutboxCount(t, s); got != 1 {
		t.Fatalf("expected exactly one outbox event, got %d", got)
	}
}

func TestIngestIdempotentReplayReturnsSameRun(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	in := Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k1",
		Payload:         basePayload(),
	}

	first, err := svc.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}

	second, err := svc.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected second call with same idempotency key to be a replay")
	}
	if second.IngestRunID != first.IngestRunID {
		t.Fatalf("replay returned a different ingest_run_id: %s != %s", second.IngestRunID, first.IngestRunID)
	}
	if second.Listing.ID != first.Listing.ID {
		t.Fatalf("replay returned a different listing: %s != %s", second.Listing.ID, first.Listing.ID)
	}

	// The replay must not have created a second Listing row or outbox event.
	if got := pendingOutboxCount(t, s); got != 1 {
		t.Fatalf("expected exactly one outbox event after replay, got %d", got)
	}
}

func TestIngestNoOpOnUnchangedContentHash(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	payload := basePayload()
	if _, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k1",
		Payload:         payload,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Re-ingest the identical payload under a *different* idempotency key
	// (simulating a partner re-pushing unchanged data) — content hash is
	// unchanged, so this must be a no-op: no new outbox event.
	out, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k2",
		Payload:         payload,
	})
	if err != nil {
		t.Fatalf("unexpected error on second ingest: %v", err)
	}
	if out.MaterialChange {
		t.Fatal("expected material_change=false for unchanged payload")
	}

	if got := pendingOutboxCount(t, s); got != 1 {
		t.Fatalf("expected still exactly one outbox event, got %d", got)
	}
}

func TestIngestMaterialChangeOnPriceUpdate(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k1",
		Payload:         basePayload(),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := basePayload()
	updated["rent_price"] = 1750.0

	out, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k2",
		Payload:         updated,
	})
	if err != nil {
		t.Fatalf("unexpected error on price update: %v", err)
	}
	if !out.MaterialChange {
		t.Fatal("expected material_change=true when content hash changes")
	}

	if got := pendingOutboxCount(t, s); got != 2 {
		t.Fatalf("expected two outbox events (create + update), got %d", got)
	}
}

func TestIngestForbiddenAdapterOverride(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, Input{
		TenantID:             "t1",
		PartnerID:            "p1",
		PartnerKey:           "acme",
		SourceListingID:      "src-1",
		IdempotencyKey:       "k1",
		Payload:              basePayload(),
		AdapterVersion:       "9.9",
		CallerIsPartnerAdmin: false,
	})
	if err == nil {
		t.Fatal("expected forbidden adapter override error")
	}
	ierr, ok := err.(Error)
	if !ok {
		t.Fatalf("expected ingest.Error, got %T: %v", err, err)
	}
	if ierr.Status != 403 || ierr.Code != "forbidden" {
		t.Fatalf("expected 403/forbidden, got %d/%s", ierr.Status, ierr.Code)
	}
}

func TestIngestValidationFailure(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	payload := basePayload()
	delete(payload, "rent_price")

	_, err := svc.Ingest(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		IdempotencyKey:  "k1",
		Payload:         payload,
	})
	if err == nil {
		t.Fatal("expected validation error for rent listing with no price")
	}
	ierr, ok := err.(Error)
	if !ok {
		t.Fatalf("expected ingest.Error, got %T: %v", err, err)
	}
	if ierr.Status != 422 {
		t.Fatalf("expected 422, got %d", ierr.Status)
	}
}

func TestPreviewValidPayloadDoesNotPersist(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	out, err := svc.Preview(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		Payload:         basePayload(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected preview to succeed, got errors: %v", out.Errors)
	}
	if out.ContentHash == "" {
		t.Fatal("expected a content hash on a valid preview")
	}

	if _, lookupErr := s.GetIngestRunByIdempotencyKey(ctx, "t1", "p1", "acme", "src-1", ""); lookupErr == nil {
		t.Fatal("preview must not create an IngestRun")
	}
	if _, lookupErr := s.GetSourceListingMapping(ctx, "t1", "p1", "acme", "src-1"); lookupErr == nil {
		t.Fatal("preview must not create a SourceListingMapping")
	}
	if n := pendingOutboxCount(t, s); n != 0 {
		t.Fatalf("preview must not emit an outbox event, got %d", n)
	}
}

func TestPreviewValidationFailureReportsOKFalse(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	payload := basePayload()
	delete(payload, "rent_price")

	out, err := svc.Preview(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "acme",
		SourceListingID: "src-1",
		Payload:         payload,
	})
	if err != nil {
		t.Fatalf("preview should report failures as OK=false, not an error: %v", err)
	}
	if out.OK {
		t.Fatal("expected preview to report OK=false for an invalid payload")
	}
	if len(out.Errors) == 0 {
		t.Fatal("expected validation errors on a failed preview")
	}
}

func TestPreviewUnknownAdapterIsAnError(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Preview(ctx, Input{
		TenantID:        "t1",
		PartnerID:       "p1",
		PartnerKey:      "unknown-partner",
		SourceListingID: "src-1",
		Payload:         basePayload(),
	})
	if err == nil {
		t.Fatal("expected an error for an unresolvable adapter")
	}
	if _, ok := err.(Error); !ok {
		t.Fatalf("expected ingest.Error, got %T: %v", err, err)
	}
}
