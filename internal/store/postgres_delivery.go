package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) UpsertDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error) {
	if d.ID == "" {
		d.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deliveries (id, tenant_id, partner_id, agent_id, listing_id, destination, status, attempts, last_error, status_detail, next_retry_at, retryable, last_success_at, dead_lettered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (listing_id, destination) DO UPDATE SET
			status = EXCLUDED.status, attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error,
			status_detail = EXCLUDED.status_detail, next_retry_at = EXCLUDED.next_retry_at,
			retryable = EXCLUDED.retryable, last_success_at = EXCLUDED.last_success_at,
			dead_lettered_at = EXCLUDED.dead_lettered_at, updated_at = now()`,
		d.ID, d.TenantID, d.PartnerID, d.AgentID, d.ListingID, d.Destination, d.Status, d.Attempts, d.LastError,
		d.StatusDetail, d.NextRetryAt, d.Retryable, d.LastSuccessAt, d.DeadLetteredAt)
	if err != nil {
		return models.Delivery{}, err
	}
	return s.GetDeliveryByListingAndDestination(ctx, d.ListingID, d.Destination)
}

func scanDelivery(row pgx.Row) (models.Delivery, error) {
	var d models.Delivery
	err := row.Scan(&d.ID, &d.TenantID, &d.PartnerID, &d.AgentID, &d.ListingID, &d.Destination, &d.Status, &d.Attempts,
		&d.LastError, &d.StatusDetail, &d.NextRetryAt, &d.Retryable, &d.LastSuccessAt, &d.DeadLetteredAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const deliveryColumns = `id, tenant_id, partner_id, agent_id, listing_id, destination, status, attempts, last_error, status_detail, next_retry_at, retryable, last_success_at, dead_lettered_at, created_at, updated_at`

func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (models.Delivery, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id=$1`, id)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: id}
	}
	return d, err
}

func (s *PostgresStore) GetDeliveryByListingAndDestination(ctx context.Context, listingID, destination string) (models.Delivery, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE listing_id=$1 AND destination=$2`, listingID, destination)
	d, err := scanDelivery(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: listingID + "/" + destination}
	}
	return d, err
}

// ClaimDeliveries implements the Delivery Dispatcher's claim: row-locked,
// skip-locked selection of eligible rows followed by a transition to
// publishing, mirroring ClaimOutboxEvents' shape.
func (s *PostgresStore) ClaimDeliveries(ctx context.Context, limit int, now time.Time) ([]models.Delivery, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM deliveries
		WHERE dead_lettered_at IS NULL
		  AND status IN ('pending','failed')
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY updated_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, tx.Commit(ctx)
	}

	claimed := make([]models.Delivery, 0, len(ids))
	for _, id := range ids {
		row := tx.QueryRow(ctx, `UPDATE deliveries SET status='publishing', updated_at=$2 WHERE id=$1 RETURNING `+deliveryColumns, id, now)
		d, err := scanDelivery(row)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, d)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *PostgresStore) UpdateDelivery(ctx context.Context, d models.Delivery) (models.Delivery, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deliveries SET status=$2, attempts=$3, last_error=$4, status_detail=$5, next_retry_at=$6,
			retryable=$7, last_success_at=$8, dead_lettered_at=$9, updated_at=now()
		WHERE id=$1`,
		d.ID, d.Status, d.Attempts, d.LastError, d.StatusDetail, d.NextRetryAt, d.Retryable, d.LastSuccessAt, d.DeadLetteredAt)
	if err != nil {
		return models.Delivery{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Delivery{}, ErrNotFound{Entity: "delivery", Key: d.ID}
	}
	return s.GetDelivery(ctx, d.ID)
}

func (s *PostgresStore) AppendDeliveryAttempt(ctx context.Context, a models.DeliveryAttempt) (models.DeliveryAttempt, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO delivery_attempts (id, delivery_id, status, request_snapshot, response_detail, error_code, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.DeliveryID, a.Status, toJSONB(a.RequestSnapshot), toJSONB(a.ResponseDetail), a.ErrorCode, a.ErrorMessage)
	return a, err
}

func (s *PostgresStore) GetCredential(ctx context.Context, tenantID, partnerID, agentID, destination string) (models.AgentCredential, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, agent_id, destination, active, sealed_secret, created_at, updated_at
		FROM agent_credentials WHERE tenant_id=$1 AND partner_id=$2 AND agent_id=$3 AND destination=$4 AND active=true`,
		tenantID, partnerID, agentID, destination)
	var c models.AgentCredential
	if err := row.Scan(&c.ID, &c.TenantID, &c.PartnerID, &c.AgentID, &c.Destination, &c.Active, &c.SealedSecret, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AgentCredential{}, ErrNotFound{Entity: "agent_credential", Key: destination}
		}
		return models.AgentCredential{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpsertCredential(ctx context.Context, c models.AgentCredential) (models.AgentCredential, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_credentials (id, tenant_id, partner_id, agent_id, destination, active, sealed_secret)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, partner_id, agent_id, destination) DO UPDATE SET
			active = EXCLUDED.active, sealed_secret = EXCLUDED.sealed_secret, updated_at = now()`,
		c.ID, c.TenantID, c.PartnerID, c.AgentID, c.Destination, c.Active, c.SealedSecret)
	if err != nil {
		return models.AgentCredential{}, err
	}
	return c, nil
}

func (s *PostgresStore) GetExternalMapping(ctx context.Context, listingID, destination string) (models.ListingExternalMapping, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, listing_id, destination, coalesce(external_listing_id,''), coalesce(last_synced_hash,''), updated_at
		FROM listing_external_mappings WHERE listing_id=$1 AND destination=$2`, listingID, destination)
	var m models.ListingExternalMapping
	if err := row.Scan(&m.ID, &m.TenantID, &m.ListingID, &m.Destination, &m.ExternalListingID, &m.LastSyncedHash, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ListingExternalMapping{}, ErrNotFound{Entity: "listing_external_mapping", Key: destination}
		}
		return models.ListingExternalMapping{}, err
	}
	return m, nil
}

func (s *PostgresStore) UpsertExternalMapping(ctx context.Context, m models.ListingExternalMapping) (models.ListingExternalMapping, error) {
	if m.ID == "" {
		m.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO listing_external_mappings (id, tenant_id, listing_id, destination, external_listing_id, last_synced_hash)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (listing_id, destination) DO UPDATE SET
			external_listing_id = EXCLUDED.external_listing_id, last_synced_hash = EXCLUDED.last_synced_hash, updated_at = now()`,
		m.ID, m.TenantID, m.ListingID, m.Destination, m.ExternalListingID, m.LastSyncedHash)
	return m, err
}

func (s *PostgresStore) GetAgentExternalIdentity(ctx context.Context, agentID, destination string) (models.AgentExternalIdentity, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, agent_id, destination, external_agent_id FROM agent_external_identities
		WHERE agent_id=$1 AND destination=$2`, agentID, destination)
	var a models.AgentExternalIdentity
	if err := row.Scan(&a.ID, &a.TenantID, &a.AgentID, &a.Destination, &a.ExternalAgentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AgentExternalIdentity{}, ErrNotFound{Entity: "agent_external_identity", Key: destination}
		}
		return models.AgentExternalIdentity{}, err
	}
	return a, nil
}

func (s *PostgresStore) UpsertAgentExternalIdentity(ctx context.Context, a models.AgentExternalIdentity) (models.AgentExternalIdentity, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_external_identities (id, tenant_id, agent_id, destination, external_agent_id)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (agent_id, destination) DO UPDATE SET external_agent_id = EXCLUDED.external_agent_id`,
		a.ID, a.TenantID, a.AgentID, a.Destination, a.ExternalAgentID)
	return a, err
}
