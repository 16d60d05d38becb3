package models

import "time"

// IdempotencyKey caches one (tenant, key) request's response. A replay with
// a matching request_hash returns Response verbatim; a replay with a
// different hash is a conflict the caller reports as 409.
type IdempotencyKey struct {
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	Key         string         `json:"key" db:"key"`
	RequestHash string         `json:"request_hash" db:"request_hash"`
	Response    map[string]any `json:"response,omitempty" db:"response"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// AuditLog is an append-only record of an operator action.
type AuditLog struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenant_id" db:"tenant_id"`
	Actor      string         `json:"actor" db:"actor"`
	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entity_type,omitempty" db:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty" db:"entity_id"`
	Detail     map[string]any `json:"detail,omitempty" db:"detail"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}
