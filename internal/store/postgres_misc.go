package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

// ReserveIdempotencyKey inserts the row if absent; ON CONFLICT DO NOTHING
// plus a follow-up SELECT tells the caller whether this call created the
// row or found an existing one, matching the in-memory store's semantics
// without a second round trip in the common (new key) case.
func (s *PostgresStore) ReserveIdempotencyKey(ctx context.Context, k models.IdempotencyKey) (models.IdempotencyKey, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (tenant_id, key, request_hash, response)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (tenant_id, key) DO NOTHING`,
		k.TenantID, k.Key, k.RequestHash, toJSONB(k.Response))
	if err != nil {
		return models.IdempotencyKey{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return k, true, nil
	}

	row := s.pool.QueryRow(ctx, `SELECT tenant_id, key, request_hash, response, created_at FROM idempotency_keys WHERE tenant_id=$1 AND key=$2`, k.TenantID, k.Key)
	var existing models.IdempotencyKey
	var resp []byte
	if err := row.Scan(&existing.TenantID, &existing.Key, &existing.RequestHash, &resp, &existing.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.IdempotencyKey{}, false, ErrNotFound{Entity: "idempotency_key", Key: k.Key}
		}
		return models.IdempotencyKey{}, false, err
	}
	_ = fromJSONB(resp, &existing.Response)
	return existing, false, nil
}

func (s *PostgresStore) CompleteIdempotencyKey(ctx context.Context, tenantID, key string, response map[string]any) error {
	tag, err := s.pool.Exec(ctx, `UPDATE idempotency_keys SET response=$3 WHERE tenant_id=$1 AND key=$2`, tenantID, key, toJSONB(response))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Entity: "idempotency_key", Key: key}
	}
	return nil
}

func (s *PostgresStore) AppendAuditLog(ctx context.Context, e models.AuditLog) (models.AuditLog, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor, action, entity_type, entity_id, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.TenantID, e.Actor, e.Action, e.EntityType, e.EntityID, toJSONB(e.Detail))
	return e, err
}
