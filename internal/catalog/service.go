package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

// Service is the admin-facing layer over store.CatalogStore: direct
// key/value import for quick single-mapping edits, and the versioned
// catalog-set lifecycle for bulk releases that need a preview/approve
// step before going live.
type Service struct {
	store store.CatalogStore
}

func NewService(s store.CatalogStore) *Service {
	return &Service{store: s}
}

// ErrInvalidTransition means the requested status change isn't legal from
// the set's current status.
type ErrInvalidTransition struct {
	From, To string
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("catalog_set: cannot transition %s -> %s", e.From, e.To)
}

// ImportEnumMappings upserts a namespace's full source->destination table
// directly into the flat mapping table, bypassing the catalog-set review
// step. Grounded on mapping_admin_imports.py's import_destination_enums.
func (s *Service) ImportEnumMappings(ctx context.Context, destination, namespace string, mappings map[string]string) (int, error) {
	destination = normalize(destination)
	namespace = normalize(namespace)
	count := 0
	for sourceKey, destValue := range mappings {
		if err := s.store.UpsertEnumMapping(ctx, models.DestinationEnumMapping{
			Destination:      destination,
			Namespace:        namespace,
			SourceKey:        strings.TrimSpace(sourceKey),
			DestinationValue: strings.TrimSpace(destValue),
		}); err != nil {
			return count, fmt.Errorf("catalog: import enum %s/%s: %w", namespace, sourceKey, err)
		}
		count++
	}
	return count, nil
}

// ImportGeoMappings upserts destination-area ids keyed by "city_slug:area_slug".
// Grounded on mapping_admin_imports.py's import_destination_areas, simplified
// to operate directly on the composite slug key rather than joining through
// separate GeoCountry/GeoCity/GeoArea normalization tables: no component in
// this hub needs a country-level join, only the resolved destination area id.
func (s *Service) ImportGeoMappings(ctx context.Context, destination string, mappings map[string]string) (int, error) {
	destination = normalize(destination)
	count := 0
	for geoKey, destAreaID := range mappings {
		if !strings.Contains(geoKey, ":") {
			continue
		}
		if err := s.store.UpsertGeoMapping(ctx, models.DestinationGeoMapping{
			Destination:       destination,
			GeoAreaID:         strings.TrimSpace(geoKey),
			DestinationAreaID: strings.TrimSpace(destAreaID),
		}); err != nil {
			return count, fmt.Errorf("catalog: import geo %s: %w", geoKey, err)
		}
		count++
	}
	return count, nil
}

// ProposedItem is one row a caller wants to check or stage, independent of
// whether it ends up in an import run or a catalog-set item.
type ProposedItem struct {
	Kind  models.CatalogItemKind
	Key   string // "namespace:source_key" for enum, "city_slug:area_slug" for geo
	Value string
}

// Preview classifies each proposed item against current resolved state
// without writing anything, and records the pass as an import run for
// audit purposes. Grounded on mapping_diff.py's diff shape.
func (s *Service) Preview(ctx context.Context, destination string, items []ProposedItem) (models.DestinationCatalogImportRun, error) {
	return s.diff(ctx, destination, items, "preview")
}

// Apply classifies each proposed item the same way Preview does, then
// writes every insert/update directly into the flat tables.
func (s *Service) Apply(ctx context.Context, destination string, items []ProposedItem) (models.DestinationCatalogImportRun, error) {
	run, err := s.diff(ctx, destination, items, "apply")
	if err != nil {
		return run, err
	}
	for i, item := range run.Items {
		switch item.Class {
		case models.CatalogDiffInsert, models.CatalogDiffUpdate:
			if err := s.writeItem(ctx, destination, item); err != nil {
				run.Items[i].Class = models.CatalogDiffInvalid
				run.Items[i].Reason = err.Error()
			}
		}
	}
	return run, nil
}

func (s *Service) diff(ctx context.Context, destination string, items []ProposedItem, mode string) (models.DestinationCatalogImportRun, error) {
	destination = normalize(destination)
	out := make([]models.DestinationCatalogImportItem, 0, len(items))

	for _, item := range items {
		class, reason, current := s.classify(ctx, destination, item)
		out = append(out, models.DestinationCatalogImportItem{
			Kind:   item.Kind,
			Key:    item.Key,
			Value:  item.Value,
			Class:  class,
			Reason: reason,
		})
		_ = current
	}

	return s.store.CreateCatalogImportRun(ctx, models.DestinationCatalogImportRun{
		Destination: destination,
		Mode:        mode,
		Items:       out,
	})
}

func (s *Service) classify(ctx context.Context, destination string, item ProposedItem) (models.CatalogDiffClass, string, string) {
	if strings.TrimSpace(item.Key) == "" || strings.TrimSpace(item.Value) == "" {
		return models.CatalogDiffInvalid, "key and value are required", ""
	}

	var current string
	var ok bool
	var err error

	switch item.Kind {
	case models.CatalogItemEnum:
		namespace, sourceKey := splitOnce(item.Key)
		if namespace == "" || sourceKey == "" {
			return models.CatalogDiffInvalid, "enum key must be namespace:source_key", ""
		}
		current, ok, err = s.store.ResolveEnum(ctx, destination, namespace, sourceKey)
	case models.CatalogItemGeo:
		if !strings.Contains(item.Key, ":") {
			return models.CatalogDiffInvalid, "geo key must be city_slug:area_slug", ""
		}
		current, ok, err = s.store.ResolveGeoArea(ctx, destination, item.Key)
	default:
		return models.CatalogDiffInvalid, fmt.Sprintf("unknown kind: %s", item.Kind), ""
	}

	if err != nil {
		return models.CatalogDiffInvalid, err.Error(), ""
	}
	if !ok {
		return models.CatalogDiffInsert, "", ""
	}
	if current == item.Value {
		return models.CatalogDiffNoop, "", current
	}
	return models.CatalogDiffUpdate, "", current
}

func (s *Service) writeItem(ctx context.Context, destination string, item models.DestinationCatalogImportItem) error {
	switch item.Kind {
	case models.CatalogItemEnum:
		namespace, sourceKey := splitOnce(item.Key)
		return s.store.UpsertEnumMapping(ctx, models.DestinationEnumMapping{
			Destination: destination, Namespace: namespace, SourceKey: sourceKey, DestinationValue: item.Value,
		})
	case models.CatalogItemGeo:
		return s.store.UpsertGeoMapping(ctx, models.DestinationGeoMapping{
			Destination: destination, GeoAreaID: item.Key, DestinationAreaID: item.Value,
		})
	default:
		return fmt.Errorf("unknown kind: %s", item.Kind)
	}
}

// CreateDraftSet starts a new versioned release for (destination,
// countryCode) with its full item bundle. The store has no separate
// "add items to an existing draft" primitive, so unlike
// catalog_sets_admin.py's two-step create-then-add-items flow, callers
// build the item list up front and hand it to CreateDraftSet in one call.
func (s *Service) CreateDraftSet(ctx context.Context, destination, countryCode string, items []models.DestinationCatalogSetItem) (models.DestinationCatalogSet, error) {
	return s.store.CreateCatalogSet(ctx, models.DestinationCatalogSet{
		Destination: normalize(destination),
		CountryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
		Status:      models.CatalogSetStatusDraft,
		Items:       items,
	})
}

// Submit moves a draft set to pending, the point at which an operator
// other than its author should review it before Activate.
func (s *Service) Submit(ctx context.Context, setID string) (models.DestinationCatalogSet, error) {
	return s.transition(ctx, setID, models.CatalogSetStatusDraft, models.CatalogSetStatusPending)
}

// Reject moves a pending set to rejected; it can never be activated.
func (s *Service) Reject(ctx context.Context, setID string) (models.DestinationCatalogSet, error) {
	return s.transition(ctx, setID, models.CatalogSetStatusPending, models.CatalogSetStatusRejected)
}

// Activate applies a pending set's items into the flat tables and marks it
// the active set for its (destination, country_code) pair.
func (s *Service) Activate(ctx context.Context, setID string) (models.DestinationCatalogSet, error) {
	set, err := s.store.GetCatalogSet(ctx, setID)
	if err != nil {
		return models.DestinationCatalogSet{}, err
	}
	if set.Status != models.CatalogSetStatusPending {
		return models.DestinationCatalogSet{}, ErrInvalidTransition{From: set.Status, To: models.CatalogSetStatusActive}
	}
	if err := s.store.ActivateCatalogSet(ctx, setID); err != nil {
		return models.DestinationCatalogSet{}, err
	}
	return s.store.GetCatalogSet(ctx, setID)
}

// Rollback re-activates an earlier set for the same (destination,
// country_code) pair, archiving whatever is active now. Grounded on
// catalog_sets.py's rollback_active_catalog_set.
func (s *Service) Rollback(ctx context.Context, destination, countryCode, toSetID string) (models.DestinationCatalogSet, error) {
	active, err := s.store.GetActiveCatalogSet(ctx, normalize(destination), strings.ToUpper(strings.TrimSpace(countryCode)))
	if err == nil && active.SetID != "" && active.SetID != toSetID {
		_, _ = s.store.UpdateCatalogSetStatus(ctx, active.SetID, models.CatalogSetStatusArchived)
	}
	if err := s.store.ActivateCatalogSet(ctx, toSetID); err != nil {
		return models.DestinationCatalogSet{}, err
	}
	return s.store.GetCatalogSet(ctx, toSetID)
}

func (s *Service) transition(ctx context.Context, setID, from, to string) (models.DestinationCatalogSet, error) {
	set, err := s.store.GetCatalogSet(ctx, setID)
	if err != nil {
		return models.DestinationCatalogSet{}, err
	}
	if set.Status != from {
		return models.DestinationCatalogSet{}, ErrInvalidTransition{From: set.Status, To: to}
	}
	return s.store.UpdateCatalogSetStatus(ctx, setID, to)
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func splitOnce(s string) (string, string) {
	i := strings.Index(s, ":")
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}
