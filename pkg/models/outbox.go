package models

import "time"

// OutboxEvent is an append-only write-ahead record coupling a DB change to
// downstream delivery work. The Outbox Dispatcher leases rows so that two
// concurrent dispatchers never process the same event.
type OutboxEvent struct {
	ID                  string         `json:"id" db:"id"`
	TenantID            string         `json:"tenant_id" db:"tenant_id"`
	AggregateType       string         `json:"aggregate_type" db:"aggregate_type"`
	AggregateID         string         `json:"aggregate_id" db:"aggregate_id"`
	EventType           string         `json:"event_type" db:"event_type"`
	Payload             map[string]any `json:"payload" db:"payload"`
	Status              string         `json:"status" db:"status"` // pending | processing | done
	Attempts            int            `json:"attempts" db:"attempts"`
	LeaseID             string         `json:"lease_id,omitempty" db:"lease_id"`
	LeaseExpiresAt      *time.Time     `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	ProcessingStartedAt *time.Time     `json:"processing_started_at,omitempty" db:"processing_started_at"`
	ProcessedAt         *time.Time     `json:"processed_at,omitempty" db:"processed_at"`
	LastError           string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusDone       = "done"

	AggregateTypeListing = "listing"
	EventTypeUpserted    = "listing.upserted"
)
