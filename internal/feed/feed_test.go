package feed

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/catalog"
	"github.com/syndicatehub/hub/internal/destinations"
	"github.com/syndicatehub/hub/internal/objectstore"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/models"
)

func TestComputeFingerprintStableAcrossOrdering(t *testing.T) {
	a := ComputeFingerprint("101evler", map[string]any{"x": 1}, []ListingInput{{CanonicalID: "a", ContentHash: "h1"}, {CanonicalID: "b", ContentHash: "h2"}})
	b := ComputeFingerprint("101evler", map[string]any{"x": 1}, []ListingInput{{CanonicalID: "b", ContentHash: "h2"}, {CanonicalID: "a", ContentHash: "h1"}})
	if a != b {
		t.Fatal("expected fingerprint to be order-independent over listing inputs")
	}
}

func TestComputeFingerprintChangesWithContentHash(t *testing.T) {
	a := ComputeFingerprint("101evler", nil, []ListingInput{{CanonicalID: "a", ContentHash: "h1"}})
	b := ComputeFingerprint("101evler", nil, []ListingInput{{CanonicalID: "a", ContentHash: "h2"}})
	if a == b {
		t.Fatal("expected fingerprint to change when content hash changes")
	}
}

func TestPartnerCSVFeedPluginSkipsInactiveByPolicy(t *testing.T) {
	p := NewPartnerCSVFeedPlugin()
	listings := []contracts.FeedBuildInput{
		{ListingID: "l1", IsActive: true, Canonical: map[string]any{"title": "A"}},
		{ListingID: "l2", IsActive: false, Canonical: map[string]any{"title": "B"}},
	}
	result, err := p.Build(context.Background(), nil, listings, contracts.InclusionExcludeInactive)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.ListingCount != 1 {
		t.Fatalf("expected 1 included listing, got %d", result.ListingCount)
	}
}

func TestEvler101FeedPluginSkipsUnmappedListings(t *testing.T) {
	p := NewEvler101FeedPlugin()
	resolver := stubResolver{}
	listings := []contracts.FeedBuildInput{
		{ListingID: "l1", IsActive: true, Canonical: map[string]any{
			"canonical_id": "l1", "property_type": "apartment", "currency": "TRY",
			"city_slug": "nicosia", "area_slug": "kyrenia",
		}},
	}
	result, err := p.Build(context.Background(), resolver, listings, contracts.InclusionExcludeInactive)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if result.ListingCount != 0 {
		t.Fatalf("expected listing with no resolvable mappings to be skipped, got %d", result.ListingCount)
	}
}

type stubResolver struct{}

func (stubResolver) ResolveEnum(context.Context, string, string, string) (string, bool) { return "", false }
func (stubResolver) ResolveGeoArea(context.Context, string, string) (string, bool)       { return "", false }

func TestDispatcherSkipsRebuildWhenFingerprintUnchanged(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := s.UpsertListing(ctx, models.Listing{
		TenantID: "t1", PartnerID: "p1", AgentID: "a1", SourceListingID: "src-1",
		Payload: map[string]any{"canonical_id": "l1", "title": "A flat", "city_slug": "nicosia"}, ContentHash: "h1",
		Status: models.ListingStatusActive, IsActive: true,
	}); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	if _, err := s.UpsertPartnerDestinationSetting(ctx, models.PartnerDestinationSetting{
		TenantID: "t1", PartnerID: "p1", Destination: "partner_csv", Enabled: true,
	}); err != nil {
		t.Fatalf("upsert setting: %v", err)
	}

	dir := t.TempDir()
	objStore, err := objectstore.NewLocalStore(dir)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}

	connectors := destinations.NewRegistry()
	connectors.Register(destinations.NewHostedFeedConnector("partner_csv", false, contracts.InclusionExcludeInactive))

	plugins := NewRegistry()
	plugins.Register(NewPartnerCSVFeedPlugin())

	resolver := catalog.NewResolver(s, zerolog.Nop())
	dispatcher := NewDispatcher(s, s, s, connectors, plugins, resolver, objStore, zerolog.Nop())

	built, err := dispatcher.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if built != 1 {
		t.Fatalf("expected first tick to build 1 snapshot, got %d", built)
	}

	built, err = dispatcher.Tick(ctx)
	if err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if built != 0 {
		t.Fatalf("expected second tick to skip rebuild on unchanged fingerprint, got %d", built)
	}

	snap, err := s.GetLatestFeedSnapshot(ctx, "t1", "p1", "partner_csv")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected object store dir to exist: %v", err)
	}
	if snap.ListingCount != 1 {
		t.Fatalf("expected 1 listing in snapshot, got %d", snap.ListingCount)
	}
}
