package store

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) ResolveEnum(ctx context.Context, destination, namespace, sourceKey string) (string, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT destination_value FROM destination_enum_mappings WHERE destination=$1 AND namespace=$2 AND source_key=$3`,
		destination, namespace, sourceKey)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *PostgresStore) ResolveGeoArea(ctx context.Context, destination, geoAreaID string) (string, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT destination_area_id FROM destination_geo_mappings WHERE destination=$1 AND geo_area_id=$2`,
		destination, geoAreaID)
	var v string
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *PostgresStore) UpsertEnumMapping(ctx context.Context, m models.DestinationEnumMapping) error {
	if m.ID == "" {
		m.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO destination_enum_mappings (id, destination, namespace, source_key, destination_value)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (destination, namespace, source_key) DO UPDATE SET destination_value = EXCLUDED.destination_value`,
		m.ID, m.Destination, m.Namespace, m.SourceKey, m.DestinationValue)
	return err
}

func (s *PostgresStore) UpsertGeoMapping(ctx context.Context, m models.DestinationGeoMapping) error {
	if m.ID == "" {
		m.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO destination_geo_mappings (id, destination, geo_area_id, destination_area_id)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (destination, geo_area_id) DO UPDATE SET destination_area_id = EXCLUDED.destination_area_id`,
		m.ID, m.Destination, m.GeoAreaID, m.DestinationAreaID)
	return err
}

func (s *PostgresStore) CreateCatalogImportRun(ctx context.Context, run models.DestinationCatalogImportRun) (models.DestinationCatalogImportRun, error) {
	if run.ID == "" {
		run.ID = newID()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.DestinationCatalogImportRun{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO destination_catalog_import_runs (id, destination, mode) VALUES ($1,$2,$3)`,
		run.ID, run.Destination, run.Mode); err != nil {
		return models.DestinationCatalogImportRun{}, err
	}
	for _, item := range run.Items {
		if item.ID == "" {
			item.ID = newID()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO destination_catalog_import_items (id, import_run_id, kind, key, value, class, reason)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, run.ID, item.Kind, item.Key, item.Value, item.Class, item.Reason); err != nil {
			return models.DestinationCatalogImportRun{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.DestinationCatalogImportRun{}, err
	}
	return run, nil
}

func (s *PostgresStore) CreateCatalogSet(ctx context.Context, set models.DestinationCatalogSet) (models.DestinationCatalogSet, error) {
	if set.ID == "" {
		set.ID = newID()
	}
	if set.Status == "" {
		set.Status = models.CatalogSetStatusDraft
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.DestinationCatalogSet{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO destination_catalog_sets (id, destination, country_code, status) VALUES ($1,$2,$3,$4)`,
		set.ID, set.Destination, set.CountryCode, set.Status); err != nil {
		return models.DestinationCatalogSet{}, err
	}
	for _, item := range set.Items {
		if item.ID == "" {
			item.ID = newID()
		}
		if _, err := tx.Exec(ctx, `INSERT INTO destination_catalog_set_items (id, set_id, kind, key, value) VALUES ($1,$2,$3,$4,$5)`,
			item.ID, set.ID, item.Kind, item.Key, item.Value); err != nil {
			return models.DestinationCatalogSet{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return models.DestinationCatalogSet{}, err
	}
	return s.GetCatalogSet(ctx, set.ID)
}

func (s *PostgresStore) GetCatalogSet(ctx context.Context, id string) (models.DestinationCatalogSet, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, destination, country_code, status, created_at, updated_at FROM destination_catalog_sets WHERE id=$1`, id)
	var set models.DestinationCatalogSet
	if err := row.Scan(&set.ID, &set.Destination, &set.CountryCode, &set.Status, &set.CreatedAt, &set.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DestinationCatalogSet{}, ErrNotFound{Entity: "catalog_set", Key: id}
		}
		return models.DestinationCatalogSet{}, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id, set_id, kind, key, value FROM destination_catalog_set_items WHERE set_id=$1`, id)
	if err != nil {
		return models.DestinationCatalogSet{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.DestinationCatalogSetItem
		if err := rows.Scan(&item.ID, &item.SetID, &item.Kind, &item.Key, &item.Value); err != nil {
			return models.DestinationCatalogSet{}, err
		}
		set.Items = append(set.Items, item)
	}
	return set, rows.Err()
}

func (s *PostgresStore) UpdateCatalogSetStatus(ctx context.Context, id, status string) (models.DestinationCatalogSet, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE destination_catalog_sets SET status=$2, updated_at=now() WHERE id=$1`, id, status)
	if err != nil {
		return models.DestinationCatalogSet{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.DestinationCatalogSet{}, ErrNotFound{Entity: "catalog_set", Key: id}
	}
	return s.GetCatalogSet(ctx, id)
}

// ActivateCatalogSet takes a transaction-scoped advisory lock keyed by
// (destination, country_code) so at most one activation for that pair can
// run at a time, applies every item into the flat tables, and updates the
// SetActive pointer — all inside one transaction.
func (s *PostgresStore) ActivateCatalogSet(ctx context.Context, setID string) error {
	set, err := s.GetCatalogSet(ctx, setID)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	lockKey := advisoryLockKey(set.Destination, set.CountryCode)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return err
	}

	for _, item := range set.Items {
		switch item.Kind {
		case models.CatalogItemEnum:
			ns, srcKey := splitOnce(item.Key, ':')
			if _, err := tx.Exec(ctx, `
				INSERT INTO destination_enum_mappings (id, destination, namespace, source_key, destination_value)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (destination, namespace, source_key) DO UPDATE SET destination_value = EXCLUDED.destination_value`,
				newID(), set.Destination, ns, srcKey, item.Value); err != nil {
				return err
			}
		case models.CatalogItemGeo:
			if _, err := tx.Exec(ctx, `
				INSERT INTO destination_geo_mappings (id, destination, geo_area_id, destination_area_id)
				VALUES ($1,$2,$3,$4)
				ON CONFLICT (destination, geo_area_id) DO UPDATE SET destination_area_id = EXCLUDED.destination_area_id`,
				newID(), set.Destination, item.Key, item.Value); err != nil {
				return err
			}
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE destination_catalog_sets SET status='active', updated_at=now() WHERE id=$1`, setID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO destination_catalog_set_active (destination, country_code, set_id)
		VALUES ($1,$2,$3)
		ON CONFLICT (destination, country_code) DO UPDATE SET set_id = EXCLUDED.set_id, activated_at = now()`,
		set.Destination, set.CountryCode, setID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetActiveCatalogSet(ctx context.Context, destination, countryCode string) (models.DestinationCatalogSetActive, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT destination, country_code, set_id, activated_at FROM destination_catalog_set_active
		WHERE destination=$1 AND country_code=$2`, destination, countryCode)
	var v models.DestinationCatalogSetActive
	if err := row.Scan(&v.Destination, &v.CountryCode, &v.SetID, &v.ActivatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DestinationCatalogSetActive{}, ErrNotFound{Entity: "catalog_set_active", Key: destination + "/" + countryCode}
		}
		return models.DestinationCatalogSetActive{}, err
	}
	return v, nil
}

func advisoryLockKey(destination, countryCode string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(destination + "/" + countryCode))
	return int64(h.Sum64())
}
