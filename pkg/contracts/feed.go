package contracts

import "context"

// FeedBuildInput is one listing made available to a feed plugin, already
// resolved to its canonical payload and content hash.
type FeedBuildInput struct {
	ListingID   string
	ContentHash string
	Canonical   map[string]any
	IsActive    bool
	Status      string
}

// FeedBuildResult is what a feed plugin returns after serializing a batch
// of listings.
type FeedBuildResult struct {
	Bytes        []byte
	Format       string
	ListingCount int
	ContentHash  string
	Meta         map[string]any
}

// FeedPlugin iterates listings, enforces a destination's inclusion policy,
// resolves enum/geo mappings via the projection it wraps, and serializes the
// result into one destination's feed format (XML, CSV, ...).
type FeedPlugin interface {
	Destination() string
	Format() string
	Build(ctx context.Context, resolver MappingResolver, listings []FeedBuildInput, policy ListingInclusionPolicy) (FeedBuildResult, error)
}
