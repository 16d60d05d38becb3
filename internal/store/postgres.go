package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store, backed by pgxpool: parse config,
// set pool size, ping, run idempotent inline DDL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against connURL, pings it, and applies the
// hub's schema. maxConns mirrors DatabaseConfig.MaxConnections.
func NewPostgresStore(ctx context.Context, connURL string, maxConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// migrate applies the hub's schema as a single idempotent DDL batch. A real
// deployment would prefer a versioned migration tool; this inline approach
// keeps local/dev spin-up to one binary with no external migration step.
func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS partners (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL,
	key TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, key)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	partner_id TEXT NOT NULL REFERENCES partners(id),
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	allowed_destinations JSONB NOT NULL DEFAULT '[]',
	destination_rule TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	source_listing_id TEXT NOT NULL,
	schema TEXT NOT NULL,
	schema_version TEXT NOT NULL,
	payload JSONB NOT NULL,
	content_hash TEXT NOT NULL,
	status TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, partner_id, agent_id, source_listing_id)
);

CREATE TABLE IF NOT EXISTS source_listing_mappings (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	partner_key TEXT NOT NULL,
	source_listing_id TEXT NOT NULL,
	listing_id TEXT NOT NULL REFERENCES listings(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, partner_id, partner_key, source_listing_id)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	partner_key TEXT NOT NULL,
	source_listing_id TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	adapter_version TEXT NOT NULL DEFAULT '',
	raw_payload JSONB,
	canonical_payload JSONB,
	errors JSONB,
	status TEXT NOT NULL,
	listing_id TEXT,
	material_change BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, partner_id, partner_key, source_listing_id, idempotency_key)
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	aggregate_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	payload JSONB,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INT NOT NULL DEFAULT 0,
	lease_id TEXT,
	lease_expires_at TIMESTAMPTZ,
	processing_started_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	last_error TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events (created_at) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INT NOT NULL DEFAULT 0,
	last_error TEXT,
	status_detail TEXT,
	next_retry_at TIMESTAMPTZ,
	retryable BOOLEAN NOT NULL DEFAULT true,
	last_success_at TIMESTAMPTZ,
	dead_lettered_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (listing_id, destination)
);
CREATE INDEX IF NOT EXISTS idx_delivery_eligible ON deliveries (next_retry_at) WHERE dead_lettered_at IS NULL;

CREATE TABLE IF NOT EXISTS delivery_attempts (
	id TEXT PRIMARY KEY,
	delivery_id TEXT NOT NULL REFERENCES deliveries(id),
	status TEXT NOT NULL,
	request_snapshot JSONB,
	response_detail JSONB,
	error_code TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_credentials (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	sealed_secret BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, partner_id, agent_id, destination)
);

CREATE TABLE IF NOT EXISTS agent_external_identities (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	external_agent_id TEXT NOT NULL,
	UNIQUE (agent_id, destination)
);

CREATE TABLE IF NOT EXISTS listing_external_mappings (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	external_listing_id TEXT,
	last_synced_hash TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (listing_id, destination)
);

CREATE TABLE IF NOT EXISTS partner_destination_settings (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT false,
	config JSONB NOT NULL DEFAULT '{}',
	feed_token TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, partner_id, destination)
);

CREATE TABLE IF NOT EXISTS geo_countries (id TEXT PRIMARY KEY, slug TEXT UNIQUE NOT NULL, name TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS geo_cities (id TEXT PRIMARY KEY, country_id TEXT NOT NULL REFERENCES geo_countries(id), slug TEXT NOT NULL, name TEXT NOT NULL);
CREATE TABLE IF NOT EXISTS geo_areas (id TEXT PRIMARY KEY, city_id TEXT NOT NULL REFERENCES geo_cities(id), slug TEXT NOT NULL, name TEXT NOT NULL);

CREATE TABLE IF NOT EXISTS destination_enum_mappings (
	id TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	namespace TEXT NOT NULL,
	source_key TEXT NOT NULL,
	destination_value TEXT NOT NULL,
	UNIQUE (destination, namespace, source_key)
);

CREATE TABLE IF NOT EXISTS destination_geo_mappings (
	id TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	geo_area_id TEXT NOT NULL,
	destination_area_id TEXT NOT NULL,
	UNIQUE (destination, geo_area_id)
);

CREATE TABLE IF NOT EXISTS destination_catalog_import_runs (
	id TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	mode TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS destination_catalog_import_items (
	id TEXT PRIMARY KEY,
	import_run_id TEXT NOT NULL REFERENCES destination_catalog_import_runs(id),
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	class TEXT NOT NULL,
	reason TEXT
);

CREATE TABLE IF NOT EXISTS destination_catalog_sets (
	id TEXT PRIMARY KEY,
	destination TEXT NOT NULL,
	country_code TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS destination_catalog_set_items (
	id TEXT PRIMARY KEY,
	set_id TEXT NOT NULL REFERENCES destination_catalog_sets(id),
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS destination_catalog_set_active (
	destination TEXT NOT NULL,
	country_code TEXT NOT NULL,
	set_id TEXT NOT NULL,
	activated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (destination, country_code)
);

CREATE TABLE IF NOT EXISTS feed_snapshots (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	partner_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	format TEXT NOT NULL,
	storage_uri TEXT NOT NULL,
	gzip_storage_uri TEXT,
	content_hash TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	listing_count INT NOT NULL,
	meta JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_feed_latest ON feed_snapshots (tenant_id, partner_id, destination, created_at DESC);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	tenant_id TEXT NOT NULL,
	key TEXT NOT NULL,
	request_hash TEXT NOT NULL,
	response JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, key)
);

CREATE TABLE IF NOT EXISTS audit_logs (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_type TEXT,
	entity_id TEXT,
	detail JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
