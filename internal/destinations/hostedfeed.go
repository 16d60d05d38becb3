package destinations

import (
	"context"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// HostedFeedConnector represents a destination that consumes listings via
// a periodically rebuilt feed snapshot rather than a per-listing push. The
// Delivery Engine still tracks a Delivery row per listing for visibility,
// but publishing here is an intentional no-op; the real work happens in
// the Hosted-Feed Engine. One instance covers any hosted-feed destination
// (101evler, partner_csv, ...) — grounded on
// app/destinations/evler101/connector.py and
// app/destinations/partner_csv/connector.py, which differ only in
// destination name, supports_media, and inclusion policy.
type HostedFeedConnector struct {
	name            string
	supportsMedia   bool
	inclusionPolicy contracts.ListingInclusionPolicy
}

func NewHostedFeedConnector(name string, supportsMedia bool, inclusionPolicy contracts.ListingInclusionPolicy) *HostedFeedConnector {
	return &HostedFeedConnector{name: name, supportsMedia: supportsMedia, inclusionPolicy: inclusionPolicy}
}

func (c *HostedFeedConnector) Name() string { return c.name }

func (c *HostedFeedConnector) Capabilities() contracts.Capabilities {
	return contracts.Capabilities{
		Transport:       contracts.TransportHostedFeed,
		SupportsUpsert:  true,
		SupportsDelete:  false,
		SupportsMedia:   c.supportsMedia,
		InclusionPolicy: c.inclusionPolicy,
	}
}

func (c *HostedFeedConnector) PublishListing(context.Context, map[string]any, contracts.Credentials) (contracts.PublishResult, error) {
	return contracts.PublishResult{OK: true, Retryable: false, Detail: map[string]any{"mode": "hosted_feed_noop"}}, nil
}

func (c *HostedFeedConnector) DeleteListing(context.Context, string, contracts.Credentials) (contracts.PublishResult, error) {
	return contracts.PublishResult{OK: false, Retryable: false, ErrorCode: "NOT_SUPPORTED", ErrorMessage: "delete not supported"}, nil
}
