package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) CreateFeedSnapshot(ctx context.Context, snap models.FeedSnapshot) (models.FeedSnapshot, error) {
	if snap.ID == "" {
		snap.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_snapshots (id, tenant_id, partner_id, destination, format, storage_uri, gzip_storage_uri, content_hash, fingerprint, listing_count, meta)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		snap.ID, snap.TenantID, snap.PartnerID, snap.Destination, snap.Format, snap.StorageURI, snap.GzipStorageURI,
		snap.ContentHash, snap.Fingerprint, snap.ListingCount, toJSONB(snap.Meta))
	return snap, err
}

func (s *PostgresStore) GetLatestFeedSnapshot(ctx context.Context, tenantID, partnerID, destination string) (models.FeedSnapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, partner_id, destination, format, storage_uri, coalesce(gzip_storage_uri,''), content_hash, fingerprint, listing_count, meta, created_at
		FROM feed_snapshots WHERE tenant_id=$1 AND partner_id=$2 AND destination=$3
		ORDER BY created_at DESC LIMIT 1`, tenantID, partnerID, destination)
	var snap models.FeedSnapshot
	var meta []byte
	if err := row.Scan(&snap.ID, &snap.TenantID, &snap.PartnerID, &snap.Destination, &snap.Format, &snap.StorageURI,
		&snap.GzipStorageURI, &snap.ContentHash, &snap.Fingerprint, &snap.ListingCount, &meta, &snap.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FeedSnapshot{}, ErrNotFound{Entity: "feed_snapshot", Key: destination}
		}
		return models.FeedSnapshot{}, err
	}
	_ = fromJSONB(meta, &snap.Meta)
	return snap, nil
}
