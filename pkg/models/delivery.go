package models

import "time"

// Delivery is a commitment to publish one listing to one destination. One
// row exists per (tenant, destination, listing); attempts are serialized by
// claiming this row with row-lock + skip-locked semantics.
type Delivery struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	PartnerID      string     `json:"partner_id" db:"partner_id"`
	AgentID        string     `json:"agent_id" db:"agent_id"`
	ListingID      string     `json:"listing_id" db:"listing_id"`
	Destination    string     `json:"destination" db:"destination"`
	Status         string     `json:"status" db:"status"`
	Attempts       int        `json:"attempts" db:"attempts"`
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	StatusDetail   string     `json:"status_detail,omitempty" db:"status_detail"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	Retryable      bool       `json:"retryable" db:"retryable"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty" db:"last_success_at"`
	DeadLetteredAt *time.Time `json:"dead_lettered_at,omitempty" db:"dead_lettered_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	DeliveryStatusPending      = "pending"
	DeliveryStatusPublishing   = "publishing"
	DeliveryStatusSuccess      = "success"
	DeliveryStatusFailed       = "failed"
	DeliveryStatusDeadLettered = "dead_lettered"

	// MaxDeliveryAttempts bounds retries before dead-lettering; grounded on
	// original_source worker/publish.py MAX_DELIVERY_ATTEMPTS.
	MaxDeliveryAttempts = 5
)

// Eligible reports whether d is a candidate for the Delivery Dispatcher's
// claim query at time now.
func (d Delivery) Eligible(now time.Time) bool {
	if d.DeadLetteredAt != nil {
		return false
	}
	if d.Status != DeliveryStatusPending && d.Status != DeliveryStatusFailed {
		return false
	}
	return d.NextRetryAt == nil || !d.NextRetryAt.After(now)
}

// DeliveryAttempt is an append-only record of one publish attempt. Request
// never carries secrets — credentials are redacted before the snapshot is
// taken.
type DeliveryAttempt struct {
	ID              string         `json:"id" db:"id"`
	DeliveryID      string         `json:"delivery_id" db:"delivery_id"`
	Status          string         `json:"status" db:"status"`
	RequestSnapshot map[string]any `json:"request_snapshot,omitempty" db:"request_snapshot"`
	ResponseDetail  map[string]any `json:"response_detail,omitempty" db:"response_detail"`
	ErrorCode       string         `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage    string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

const (
	ErrorCodeNoCredentials = "NO_CREDENTIALS"
	ErrorCodeMaxAttempts   = "MAX_ATTEMPTS_EXCEEDED"
)

// AgentCredential stores encrypted destination credentials. Secret is the
// AES-GCM sealed blob; plaintext is decrypted only on the stack of a
// Delivery worker for the duration of one publish call.
type AgentCredential struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	PartnerID     string    `json:"partner_id" db:"partner_id"`
	AgentID       string    `json:"agent_id" db:"agent_id"`
	Destination   string    `json:"destination" db:"destination"`
	Active        bool      `json:"active" db:"active"`
	SealedSecret  []byte    `json:"-" db:"sealed_secret"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// AgentExternalIdentity records the destination-side agent identifier
// discovered or assigned on first publish, enabling resume after crash.
type AgentExternalIdentity struct {
	ID              string `json:"id" db:"id"`
	TenantID        string `json:"tenant_id" db:"tenant_id"`
	AgentID         string `json:"agent_id" db:"agent_id"`
	Destination     string `json:"destination" db:"destination"`
	ExternalAgentID string `json:"external_agent_id" db:"external_agent_id"`
}

// ListingExternalMapping records the destination-side listing identifier and
// the content hash that was last successfully synced, used both for the
// delivery dedup short-circuit and for idempotent upserts at the connector.
type ListingExternalMapping struct {
	ID                string     `json:"id" db:"id"`
	TenantID          string     `json:"tenant_id" db:"tenant_id"`
	ListingID         string     `json:"listing_id" db:"listing_id"`
	Destination       string     `json:"destination" db:"destination"`
	ExternalListingID string     `json:"external_listing_id,omitempty" db:"external_listing_id"`
	LastSyncedHash    string     `json:"last_synced_hash,omitempty" db:"last_synced_hash"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// PartnerDestinationSetting is per-(partner,destination) enablement and
// config. FeedToken is only meaningful for hosted_feed destinations; an
// upsert that omits it preserves the existing value.
type PartnerDestinationSetting struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	PartnerID   string         `json:"partner_id" db:"partner_id"`
	Destination string         `json:"destination" db:"destination"`
	Enabled     bool           `json:"enabled" db:"enabled"`
	Config      map[string]any `json:"config" db:"config"`
	FeedToken   string         `json:"-" db:"feed_token"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}
