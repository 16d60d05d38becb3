package idempotency

import (
	"context"
	"testing"

	"github.com/syndicatehub/hub/internal/store"
)

func TestReserveFirstCallIsNotReplayed(t *testing.T) {
	s := New(store.NewMemoryStore())
	ctx := context.Background()

	out, err := s.Reserve(ctx, "t1", "k1", "/v1/ingest/acme/listings/src-1", map[string]any{"payload": map[string]any{"title": "A"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Replayed {
		t.Fatal("expected first reservation to not be a replay")
	}
}

func TestReserveReplayWithMatchingBodyReturnsExisting(t *testing.T) {
	s := New(store.NewMemoryStore())
	ctx := context.Background()
	body := map[string]any{"payload": map[string]any{"title": "A"}}

	if _, err := s.Reserve(ctx, "t1", "k1", "/v1/ingest/acme/listings/src-1", body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Complete(ctx, "t1", "k1", map[string]any{"listing_id": "lst_1"}); err != nil {
		t.Fatalf("unexpected error completing: %v", err)
	}

	out, err := s.Reserve(ctx, "t1", "k1", "/v1/ingest/acme/listings/src-1", body)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !out.Replayed {
		t.Fatal("expected second reservation with identical body to be a replay")
	}
	if out.Existing.Response["listing_id"] != "lst_1" {
		t.Fatalf("expected replay to surface the completed response, got %v", out.Existing.Response)
	}
}

func TestReserveConflictOnMismatchedBody(t *testing.T) {
	s := New(store.NewMemoryStore())
	ctx := context.Background()

	if _, err := s.Reserve(ctx, "t1", "k2", "/v1/ingest/acme/listings/src-1", map[string]any{"payload": map[string]any{"title": "A"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.Reserve(ctx, "t1", "k2", "/v1/ingest/acme/listings/src-1", map[string]any{"payload": map[string]any{"title": "B"}})
	if err == nil {
		t.Fatal("expected conflict error for mismatched request body")
	}
	if _, ok := err.(ErrConflict); !ok {
		t.Fatalf("expected ErrConflict, got %T: %v", err, err)
	}
}

func TestReserveIsolatedPerTenant(t *testing.T) {
	s := New(store.NewMemoryStore())
	ctx := context.Background()
	body := map[string]any{"payload": map[string]any{"title": "A"}}

	if _, err := s.Reserve(ctx, "t1", "k1", "/v1/ingest/acme/listings/src-1", body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := s.Reserve(ctx, "t2", "k1", "/v1/ingest/acme/listings/src-1", map[string]any{"payload": map[string]any{"title": "different"}})
	if err != nil {
		t.Fatalf("expected a different tenant reusing the same key to not conflict, got %v", err)
	}
	if out.Replayed {
		t.Fatal("expected a different tenant's reservation to not be treated as a replay")
	}
}
