package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)`,
		t.ID, t.Name, t.Slug)
	if err != nil {
		return models.Tenant{}, err
	}
	return s.GetTenant(ctx, t.ID)
}

func (s *PostgresStore) GetTenant(ctx context.Context, id string) (models.Tenant, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, slug, created_at FROM tenants WHERE id = $1`, id)
	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tenant{}, ErrNotFound{Entity: "tenant", Key: id}
		}
		return models.Tenant{}, err
	}
	return t, nil
}

func (s *PostgresStore) CreatePartner(ctx context.Context, p models.Partner) (models.Partner, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO partners (id, tenant_id, name, key, active) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TenantID, p.Name, p.Key, p.Active)
	if err != nil {
		return models.Partner{}, err
	}
	return s.GetPartner(ctx, p.ID)
}

func (s *PostgresStore) GetPartner(ctx context.Context, id string) (models.Partner, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, tenant_id, name, key, active, created_at FROM partners WHERE id = $1`, id)
	var p models.Partner
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Key, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Partner{}, ErrNotFound{Entity: "partner", Key: id}
		}
		return models.Partner{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetPartnerByKey(ctx context.Context, tenantID, key string) (models.Partner, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, key, active, created_at FROM partners WHERE tenant_id = $1 AND key = $2`,
		tenantID, key)
	var p models.Partner
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Key, &p.Active, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Partner{}, ErrNotFound{Entity: "partner", Key: tenantID + "/" + key}
		}
		return models.Partner{}, err
	}
	return p, nil
}

func (s *PostgresStore) CreateAgent(ctx context.Context, a models.Agent) (models.Agent, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (id, tenant_id, partner_id, name, active, allowed_destinations, destination_rule)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TenantID, a.PartnerID, a.Name, a.Active, toJSONB(a.AllowedDestinations), a.DestinationRule)
	if err != nil {
		return models.Agent{}, err
	}
	return s.GetAgent(ctx, a.ID)
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (models.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, partner_id, name, active, allowed_destinations, destination_rule, created_at
		 FROM agents WHERE id = $1`, id)
	var a models.Agent
	var allowed []byte
	if err := row.Scan(&a.ID, &a.TenantID, &a.PartnerID, &a.Name, &a.Active, &allowed, &a.DestinationRule, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Agent{}, ErrNotFound{Entity: "agent", Key: id}
		}
		return models.Agent{}, err
	}
	_ = fromJSONB(allowed, &a.AllowedDestinations)
	return a, nil
}

func (s *PostgresStore) UpdateAgent(ctx context.Context, a models.Agent) (models.Agent, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET name = $2, active = $3, allowed_destinations = $4, destination_rule = $5 WHERE id = $1`,
		a.ID, a.Name, a.Active, toJSONB(a.AllowedDestinations), a.DestinationRule)
	if err != nil {
		return models.Agent{}, err
	}
	if tag.RowsAffected() == 0 {
		return models.Agent{}, ErrNotFound{Entity: "agent", Key: a.ID}
	}
	return s.GetAgent(ctx, a.ID)
}
