package store

import (
	"context"
	"time"

	"github.com/syndicatehub/hub/pkg/models"
)

func enumKey(destination, namespace, sourceKey string) string {
	return destination + "/" + namespace + "/" + sourceKey
}

func geoKey(destination, geoAreaID string) string { return destination + "/" + geoAreaID }

func activeSetKey(destination, countryCode string) string { return destination + "/" + countryCode }

func (s *MemoryStore) ResolveEnum(_ context.Context, destination, namespace, sourceKey string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.enumMappings[enumKey(destination, namespace, sourceKey)]
	return v, ok, nil
}

func (s *MemoryStore) ResolveGeoArea(_ context.Context, destination, geoAreaID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.geoMappings[geoKey(destination, geoAreaID)]
	return v, ok, nil
}

func (s *MemoryStore) UpsertEnumMapping(_ context.Context, m models.DestinationEnumMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enumMappings[enumKey(m.Destination, m.Namespace, m.SourceKey)] = m.DestinationValue
	return nil
}

func (s *MemoryStore) UpsertGeoMapping(_ context.Context, m models.DestinationGeoMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geoMappings[geoKey(m.Destination, m.GeoAreaID)] = m.DestinationAreaID
	return nil
}

func (s *MemoryStore) CreateCatalogImportRun(_ context.Context, run models.DestinationCatalogImportRun) (models.DestinationCatalogImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	s.catalogRuns[run.ID] = run
	return run, nil
}

func (s *MemoryStore) CreateCatalogSet(_ context.Context, set models.DestinationCatalogSet) (models.DestinationCatalogSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set.ID == "" {
		set.ID = newID()
	}
	now := time.Now().UTC()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}
	set.UpdatedAt = now
	if set.Status == "" {
		set.Status = models.CatalogSetStatusDraft
	}
	s.catalogSets[set.ID] = set
	return set, nil
}

func (s *MemoryStore) GetCatalogSet(_ context.Context, id string) (models.DestinationCatalogSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.catalogSets[id]
	if !ok {
		return models.DestinationCatalogSet{}, ErrNotFound{Entity: "catalog_set", Key: id}
	}
	return set, nil
}

func (s *MemoryStore) UpdateCatalogSetStatus(_ context.Context, id, status string) (models.DestinationCatalogSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.catalogSets[id]
	if !ok {
		return models.DestinationCatalogSet{}, ErrNotFound{Entity: "catalog_set", Key: id}
	}
	set.Status = status
	set.UpdatedAt = time.Now().UTC()
	s.catalogSets[id] = set
	return set, nil
}

// ActivateCatalogSet applies every item in the set into the flat tables and
// updates the (destination, country_code) active pointer. The single store
// mutex stands in for the advisory lock a Postgres implementation would
// take on that pair: no two activations for the same pair can interleave.
func (s *MemoryStore) ActivateCatalogSet(_ context.Context, setID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.catalogSets[setID]
	if !ok {
		return ErrNotFound{Entity: "catalog_set", Key: setID}
	}

	for _, item := range set.Items {
		switch item.Kind {
		case models.CatalogItemEnum:
			// Key is "namespace:source_key" for enum items.
			ns, srcKey := splitOnce(item.Key, ':')
			s.enumMappings[enumKey(set.Destination, ns, srcKey)] = item.Value
		case models.CatalogItemGeo:
			s.geoMappings[geoKey(set.Destination, item.Key)] = item.Value
		}
	}

	set.Status = models.CatalogSetStatusActive
	set.UpdatedAt = time.Now().UTC()
	s.catalogSets[setID] = set

	s.activeSets[activeSetKey(set.Destination, set.CountryCode)] = models.DestinationCatalogSetActive{
		Destination: set.Destination,
		CountryCode: set.CountryCode,
		SetID:       set.ID,
		ActivatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) GetActiveCatalogSet(_ context.Context, destination, countryCode string) (models.DestinationCatalogSetActive, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.activeSets[activeSetKey(destination, countryCode)]
	if !ok {
		return models.DestinationCatalogSetActive{}, ErrNotFound{Entity: "catalog_set_active", Key: activeSetKey(destination, countryCode)}
	}
	return v, nil
}

func splitOnce(s string, sep byte) (string, string) {
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}
