package catalog

import (
	"context"
	"testing"

	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(store.NewMemoryStore())
}

func TestImportEnumMappingsResolvesAfterward(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	n, err := svc.ImportEnumMappings(ctx, "101evler", "property_type", map[string]string{"apartment": "12"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 import, got %d", n)
	}

	run, err := svc.Preview(ctx, "101evler", []ProposedItem{{Kind: models.CatalogItemEnum, Key: "property_type:apartment", Value: "12"}})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(run.Items) != 1 || run.Items[0].Class != models.CatalogDiffNoop {
		t.Fatalf("expected a noop diff against the just-imported value, got %+v", run.Items)
	}
}

func TestPreviewClassifiesInsertUpdateInvalid(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.ImportEnumMappings(ctx, "101evler", "currency", map[string]string{"TRY": "601"})

	run, err := svc.Preview(ctx, "101evler", []ProposedItem{
		{Kind: models.CatalogItemEnum, Key: "property_type:villa", Value: "14"},
		{Kind: models.CatalogItemEnum, Key: "currency:TRY", Value: "602"},
		{Kind: models.CatalogItemEnum, Key: "badkey", Value: "x"},
	})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if run.Items[0].Class != models.CatalogDiffInsert {
		t.Fatalf("expected insert, got %s", run.Items[0].Class)
	}
	if run.Items[1].Class != models.CatalogDiffUpdate {
		t.Fatalf("expected update, got %s", run.Items[1].Class)
	}
	if run.Items[2].Class != models.CatalogDiffInvalid {
		t.Fatalf("expected invalid for malformed key, got %s", run.Items[2].Class)
	}
}

func TestApplyWritesInsertsAndUpdates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, "101evler", []ProposedItem{
		{Kind: models.CatalogItemGeo, Key: "nicosia:kyrenia", Value: "9001"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	run, err := svc.Preview(ctx, "101evler", []ProposedItem{{Kind: models.CatalogItemGeo, Key: "nicosia:kyrenia", Value: "9001"}})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if run.Items[0].Class != models.CatalogDiffNoop {
		t.Fatalf("expected applied geo mapping to now read as noop, got %s", run.Items[0].Class)
	}
}

func TestCatalogSetLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	set, err := svc.CreateDraftSet(ctx, "101evler", "cy", []models.DestinationCatalogSetItem{
		{Kind: models.CatalogItemEnum, Key: "property_type:apartment", Value: "12"},
	})
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	if set.Status != models.CatalogSetStatusDraft {
		t.Fatalf("expected draft status, got %s", set.Status)
	}

	if _, err := svc.Activate(ctx, set.ID); err == nil {
		t.Fatal("expected activate to refuse a draft set")
	}

	set, err = svc.Submit(ctx, set.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if set.Status != models.CatalogSetStatusPending {
		t.Fatalf("expected pending, got %s", set.Status)
	}

	set, err = svc.Activate(ctx, set.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if set.Status != models.CatalogSetStatusActive {
		t.Fatalf("expected active, got %s", set.Status)
	}

	resolved, ok, err := svc.store.ResolveEnum(ctx, "101evler", "property_type", "apartment")
	if err != nil || !ok || resolved != "12" {
		t.Fatalf("expected activated set's items applied, got %q %v %v", resolved, ok, err)
	}
}

func TestCatalogSetRejectThenRollback(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, _ := svc.CreateDraftSet(ctx, "101evler", "cy", []models.DestinationCatalogSetItem{
		{Kind: models.CatalogItemEnum, Key: "currency:TRY", Value: "601"},
	})
	svc.Submit(ctx, first.ID)
	first, err := svc.Activate(ctx, first.ID)
	if err != nil {
		t.Fatalf("activate first: %v", err)
	}

	second, _ := svc.CreateDraftSet(ctx, "101evler", "cy", []models.DestinationCatalogSetItem{
		{Kind: models.CatalogItemEnum, Key: "currency:TRY", Value: "999"},
	})
	svc.Submit(ctx, second.ID)

	if _, err := svc.Reject(ctx, second.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}

	third, _ := svc.CreateDraftSet(ctx, "101evler", "cy", []models.DestinationCatalogSetItem{
		{Kind: models.CatalogItemEnum, Key: "currency:TRY", Value: "700"},
	})

	rolled, err := svc.Rollback(ctx, "101evler", "cy", third.ID)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if rolled.Status != models.CatalogSetStatusActive {
		t.Fatalf("expected rolled-to set to be active, got %s", rolled.Status)
	}

	resolved, _, _ := svc.store.ResolveEnum(ctx, "101evler", "currency", "TRY")
	if resolved != "700" {
		t.Fatalf("expected rollback target's value applied, got %q", resolved)
	}
	_ = first
}
