package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

// UpsertListing relies on the (tenant, partner, agent, source_listing_id)
// unique index: a SELECT of the prior content_hash computes
// materialChange, an INSERT ... ON CONFLICT DO UPDATE writes the row, and a
// final SELECT reads back the stored row — matching the Python service's
// "compare then write" flow in three round trips.
func (s *PostgresStore) UpsertListing(ctx context.Context, l models.Listing) (models.Listing, bool, error) {
	if l.ID == "" {
		l.ID = newID()
	}

	var priorHash string
	hasPrior := true
	row := s.pool.QueryRow(ctx,
		`SELECT content_hash FROM listings WHERE tenant_id=$1 AND partner_id=$2 AND agent_id=$3 AND source_listing_id=$4`,
		l.TenantID, l.PartnerID, l.AgentID, l.SourceListingID)
	if err := row.Scan(&priorHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			hasPrior = false
		} else {
			return models.Listing{}, false, err
		}
	}
	materialChange := !hasPrior || priorHash != l.ContentHash

	_, err := s.pool.Exec(ctx, `
		INSERT INTO listings (id, tenant_id, partner_id, agent_id, source_listing_id, schema, schema_version, payload, content_hash, status, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (tenant_id, partner_id, agent_id, source_listing_id) DO UPDATE SET
			schema = EXCLUDED.schema,
			schema_version = EXCLUDED.schema_version,
			payload = EXCLUDED.payload,
			content_hash = EXCLUDED.content_hash,
			status = EXCLUDED.status,
			is_active = EXCLUDED.is_active,
			updated_at = now()
	`, l.ID, l.TenantID, l.PartnerID, l.AgentID, l.SourceListingID, l.Schema, l.SchemaVersion, toJSONB(l.Payload), l.ContentHash, l.Status, l.IsActive)
	if err != nil {
		return models.Listing{}, false, err
	}

	stored, err := s.listingByScope(ctx, l.TenantID, l.PartnerID, l.AgentID, l.SourceListingID)
	return stored, materialChange, err
}

func (s *PostgresStore) listingByScope(ctx context.Context, tenantID, partnerID, agentID, sourceListingID string) (models.Listing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, agent_id, source_listing_id, schema, schema_version, payload, content_hash, status, is_active, created_at, updated_at
		FROM listings WHERE tenant_id=$1 AND partner_id=$2 AND agent_id=$3 AND source_listing_id=$4`,
		tenantID, partnerID, agentID, sourceListingID)
	return scanListing(row)
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (models.Listing, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, agent_id, source_listing_id, schema, schema_version, payload, content_hash, status, is_active, created_at, updated_at
		FROM listings WHERE id=$1`, id)
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Listing{}, ErrNotFound{Entity: "listing", Key: id}
	}
	return l, err
}

func scanListing(row pgx.Row) (models.Listing, error) {
	var l models.Listing
	var payload []byte
	err := row.Scan(&l.ID, &l.TenantID, &l.PartnerID, &l.AgentID, &l.SourceListingID, &l.Schema, &l.SchemaVersion, &payload, &l.ContentHash, &l.Status, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return models.Listing{}, err
	}
	_ = fromJSONB(payload, &l.Payload)
	return l, nil
}

func (s *PostgresStore) ListListingsByPartner(ctx context.Context, tenantID, partnerID string) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, partner_id, agent_id, source_listing_id, schema, schema_version, payload, content_hash, status, is_active, created_at, updated_at
		FROM listings WHERE tenant_id=$1 AND partner_id=$2`, tenantID, partnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetSourceListingMapping(ctx context.Context, tenantID, partnerID, partnerKey, sourceListingID string) (models.SourceListingMapping, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, partner_key, source_listing_id, listing_id, created_at
		FROM source_listing_mappings WHERE tenant_id=$1 AND partner_id=$2 AND partner_key=$3 AND source_listing_id=$4`,
		tenantID, partnerID, partnerKey, sourceListingID)
	var m models.SourceListingMapping
	if err := row.Scan(&m.ID, &m.TenantID, &m.PartnerID, &m.PartnerKey, &m.SourceListingID, &m.ListingID, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SourceListingMapping{}, ErrNotFound{Entity: "source_listing_mapping", Key: sourceListingID}
		}
		return models.SourceListingMapping{}, err
	}
	return m, nil
}

func (s *PostgresStore) CreateSourceListingMapping(ctx context.Context, m models.SourceListingMapping) (models.SourceListingMapping, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_listing_mappings (id, tenant_id, partner_id, partner_key, source_listing_id, listing_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.TenantID, m.PartnerID, m.PartnerKey, m.SourceListingID, m.ListingID)
	if err != nil {
		if isUniqueViolation(err) {
			return models.SourceListingMapping{}, ErrConflict{Entity: "source_listing_mapping", Key: m.SourceListingID}
		}
		return models.SourceListingMapping{}, err
	}
	return m, nil
}

// CreateIngestRun inserts the idempotency row first; an integrity
// violation on the unique (tenant, partner, partner_key, source_listing_id,
// idempotency_key) index means a replay, which the ingest service handles
// by looking the prior run up and returning its outcome verbatim.
func (s *PostgresStore) CreateIngestRun(ctx context.Context, r models.IngestRun) (models.IngestRun, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_runs (id, tenant_id, partner_id, partner_key, source_listing_id, idempotency_key, adapter_version, raw_payload, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.TenantID, r.PartnerID, r.PartnerKey, r.SourceListingID, r.IdempotencyKey, r.AdapterVersion, toJSONB(r.RawPayload), r.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return models.IngestRun{}, ErrConflict{Entity: "ingest_run", Key: r.IdempotencyKey}
		}
		return models.IngestRun{}, err
	}
	return r, nil
}

func (s *PostgresStore) UpdateIngestRun(ctx context.Context, r models.IngestRun) (models.IngestRun, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs SET canonical_payload=$2, errors=$3, status=$4, listing_id=$5, material_change=$6
		WHERE id=$1`,
		r.ID, toJSONB(r.CanonicalPayload), toJSONB(r.Errors), r.Status, r.ListingID, r.MaterialChange)
	if err != nil {
		return models.IngestRun{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.IngestRun{}, ErrNotFound{Entity: "ingest_run", Key: r.ID}
	}
	return r, nil
}

func (s *PostgresStore) GetIngestRunByIdempotencyKey(ctx context.Context, tenantID, partnerID, partnerKey, sourceListingID, idempotencyKey string) (models.IngestRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, partner_key, source_listing_id, idempotency_key, adapter_version, raw_payload, canonical_payload, errors, status, coalesce(listing_id,''), material_change, created_at
		FROM ingest_runs WHERE tenant_id=$1 AND partner_id=$2 AND partner_key=$3 AND source_listing_id=$4 AND idempotency_key=$5`,
		tenantID, partnerID, partnerKey, sourceListingID, idempotencyKey)
	var r models.IngestRun
	var raw, canon, errs []byte
	err := row.Scan(&r.ID, &r.TenantID, &r.PartnerID, &r.PartnerKey, &r.SourceListingID, &r.IdempotencyKey, &r.AdapterVersion, &raw, &canon, &errs, &r.Status, &r.ListingID, &r.MaterialChange, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.IngestRun{}, ErrNotFound{Entity: "ingest_run", Key: idempotencyKey}
		}
		return models.IngestRun{}, err
	}
	_ = fromJSONB(raw, &r.RawPayload)
	_ = fromJSONB(canon, &r.CanonicalPayload)
	_ = fromJSONB(errs, &r.Errors)
	return r, nil
}

// isUniqueViolation checks the Postgres SQLSTATE for a unique_violation
// (23505) without importing the full pgconn error-code table.
func isUniqueViolation(err error) bool {
	return containsCode(err, "23505")
}
