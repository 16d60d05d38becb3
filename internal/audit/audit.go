// Package audit is a thin, append-only wrapper over store.AuditStore (C12)
// — every admin handler that mutates state calls Record once its write
// commits.
package audit

import (
	"context"

	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

type Log struct {
	store store.AuditStore
}

func New(s store.AuditStore) *Log {
	return &Log{store: s}
}

// Record appends one operator action. detail should already be redacted by
// the caller if it carries anything secret-shaped.
func (l *Log) Record(ctx context.Context, tenantID, actor, action, entityType, entityID string, detail map[string]any) {
	// Audit logging never fails a request: a logging outage shouldn't take
	// down the admin surface it's observing.
	_, _ = l.store.AppendAuditLog(ctx, models.AuditLog{
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
	})
}
