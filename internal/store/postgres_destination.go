package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) GetPartnerDestinationSetting(ctx context.Context, tenantID, partnerID, destination string) (models.PartnerDestinationSetting, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, destination, enabled, config, coalesce(feed_token,''), created_at, updated_at
		FROM partner_destination_settings WHERE tenant_id=$1 AND partner_id=$2 AND destination=$3`,
		tenantID, partnerID, destination)
	v, err := scanPartnerDestSetting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PartnerDestinationSetting{}, ErrNotFound{Entity: "partner_destination_setting", Key: destination}
	}
	return v, err
}

func scanPartnerDestSetting(row pgx.Row) (models.PartnerDestinationSetting, error) {
	var v models.PartnerDestinationSetting
	var config []byte
	if err := row.Scan(&v.ID, &v.TenantID, &v.PartnerID, &v.Destination, &v.Enabled, &config, &v.FeedToken, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return models.PartnerDestinationSetting{}, err
	}
	_ = fromJSONB(config, &v.Config)
	return v, nil
}

// UpsertPartnerDestinationSetting preserves the existing feed_token when
// the incoming value is empty, via COALESCE(NULLIF(new,''), old) — the SQL
// analogue of the in-memory store's "reuse existing token" rule.
func (s *PostgresStore) UpsertPartnerDestinationSetting(ctx context.Context, v models.PartnerDestinationSetting) (models.PartnerDestinationSetting, error) {
	if v.ID == "" {
		v.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO partner_destination_settings (id, tenant_id, partner_id, destination, enabled, config, feed_token)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, partner_id, destination) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			feed_token = COALESCE(NULLIF(EXCLUDED.feed_token, ''), partner_destination_settings.feed_token),
			updated_at = now()`,
		v.ID, v.TenantID, v.PartnerID, v.Destination, v.Enabled, toJSONB(v.Config), v.FeedToken)
	if err != nil {
		return models.PartnerDestinationSetting{}, err
	}
	return s.GetPartnerDestinationSetting(ctx, v.TenantID, v.PartnerID, v.Destination)
}

func (s *PostgresStore) ListEnabledHostedFeedSettings(ctx context.Context) ([]models.PartnerDestinationSetting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, partner_id, destination, enabled, config, coalesce(feed_token,''), created_at, updated_at
		FROM partner_destination_settings WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PartnerDestinationSetting
	for rows.Next() {
		v, err := scanPartnerDestSetting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
