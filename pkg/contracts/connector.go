package contracts

import "context"

// Transport classifies how a destination receives listings.
type Transport string

const (
	TransportPushAPI    Transport = "push_api"
	TransportHostedFeed Transport = "hosted_feed"
	TransportPullOnly   Transport = "pull_only"
)

// ListingInclusionPolicy controls whether inactive listings appear in a
// destination's output.
type ListingInclusionPolicy string

const (
	InclusionExcludeInactive  ListingInclusionPolicy = "exclude_inactive"
	InclusionIncludeWithStatus ListingInclusionPolicy = "include_with_status"
)

// Capabilities describes what a destination supports. The Delivery Engine
// and Hosted-Feed Engine both consult it before dispatching work.
type Capabilities struct {
	Transport         Transport
	SupportsUpsert    bool
	SupportsDelete    bool
	SupportsMedia     bool
	InclusionPolicy   ListingInclusionPolicy
	RateLimitPerMin   int // 0 means unbounded
}

// Credentials is the decrypted secret bundle handed to a connector for the
// duration of a single publish call. Never logged, never persisted.
type Credentials map[string]string

// PublishResult is the outcome of publishing one listing to one destination.
type PublishResult struct {
	OK           bool
	Retryable    bool
	ErrorCode    string
	ErrorMessage string
	ExternalID   string
	Detail       map[string]any
}

// Connector is a destination-specific publisher. HTTP-based connectors
// share a client that classifies transport outcomes into Retryable.
type Connector interface {
	Name() string
	Capabilities() Capabilities
	PublishListing(ctx context.Context, payload map[string]any, creds Credentials) (PublishResult, error)
	DeleteListing(ctx context.Context, externalID string, creds Credentials) (PublishResult, error)
}
