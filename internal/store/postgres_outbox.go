package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/syndicatehub/hub/pkg/models"
)

func (s *PostgresStore) AppendOutboxEvent(ctx context.Context, e models.OutboxEvent) (models.OutboxEvent, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = models.OutboxStatusPending
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_events (id, tenant_id, aggregate_type, aggregate_id, event_type, payload, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.TenantID, e.AggregateType, e.AggregateID, e.EventType, toJSONB(e.Payload), e.Status)
	return e, err
}

// ReclaimExpiredLeases implements step 1 of the dispatcher tick: any
// processing row whose lease has expired reverts to pending, in a single
// statement so no two dispatchers race on the same reclaim.
func (s *PostgresStore) ReclaimExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events
		SET status = 'pending', lease_id = NULL, lease_expires_at = NULL, last_error = 'requeued: lease expired'
		WHERE status = 'processing' AND lease_expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ClaimOutboxEvents implements step 2: SELECT ... FOR UPDATE SKIP LOCKED
// inside an explicit transaction, then UPDATE the claimed ids in one
// statement and return the updated rows — this is the row-lock +
// skip-locked pattern the outbox dispatcher relies on so two concurrent
// dispatcher processes never hand out the same event.
func (s *PostgresStore) ClaimOutboxEvents(ctx context.Context, limit int, leaseDuration time.Duration, now time.Time) ([]models.OutboxEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
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

	expires := now.Add(leaseDuration)
	claimed := make([]models.OutboxEvent, 0, len(ids))
	for _, id := range ids {
		leaseID := newID()
		row := tx.QueryRow(ctx, `
			UPDATE outbox_events
			SET status = 'processing', attempts = attempts + 1, lease_id = $2, lease_expires_at = $3, processing_started_at = $4
			WHERE id = $1
			RETURNING id, tenant_id, aggregate_type, aggregate_id, event_type, payload, status, attempts, lease_id, lease_expires_at, processing_started_at, processed_at, last_error, created_at`,
			id, leaseID, expires, now)
		e, err := scanOutboxEvent(row)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return claimed, nil
}

func scanOutboxEvent(row pgx.Row) (models.OutboxEvent, error) {
	var e models.OutboxEvent
	var payload []byte
	var leaseID, lastError *string
	err := row.Scan(&e.ID, &e.TenantID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &e.Status, &e.Attempts,
		&leaseID, &e.LeaseExpiresAt, &e.ProcessingStartedAt, &e.ProcessedAt, &lastError, &e.CreatedAt)
	if err != nil {
		return models.OutboxEvent{}, err
	}
	_ = fromJSONB(payload, &e.Payload)
	if leaseID != nil {
		e.LeaseID = *leaseID
	}
	if lastError != nil {
		e.LastError = *lastError
	}
	return e, nil
}

func (s *PostgresStore) GetOutboxEvent(ctx context.Context, id string) (models.OutboxEvent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, aggregate_type, aggregate_id, event_type, payload, status, attempts, lease_id, lease_expires_at, processing_started_at, processed_at, last_error, created_at
		FROM outbox_events WHERE id=$1`, id)
	e, err := scanOutboxEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OutboxEvent{}, ErrNotFound{Entity: "outbox_event", Key: id}
	}
	return e, err
}

// CompleteOutboxEvent is the universal conditional-update pattern: "I still
// own this." Zero rows affected means another dispatcher already reclaimed
// the lease, surfaced as ErrLeaseLost so the worker can abort its side
// effects silently.
func (s *PostgresStore) CompleteOutboxEvent(ctx context.Context, id, leaseID string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET status='done', processed_at=$3, lease_id=NULL, lease_expires_at=NULL
		WHERE id=$1 AND lease_id=$2`, id, leaseID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost{Entity: "outbox_event", ID: id}
	}
	return nil
}

func (s *PostgresStore) RequeueOutboxEvent(ctx context.Context, id, leaseID, lastError string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET status='pending', lease_id=NULL, lease_expires_at=NULL, last_error=$3
		WHERE id=$1 AND lease_id=$2`, id, leaseID, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeaseLost{Entity: "outbox_event", ID: id}
	}
	return nil
}
