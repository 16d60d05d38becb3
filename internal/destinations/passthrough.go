package destinations

import (
	"context"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// PassthroughConnector is a no-op push_api destination used for smoke tests
// and partner onboarding dry runs. Grounded on
// app/destinations/sample_passthrough_connector.py.
type PassthroughConnector struct{}

func NewPassthroughConnector() *PassthroughConnector { return &PassthroughConnector{} }

func (c *PassthroughConnector) Name() string { return "passthrough" }

func (c *PassthroughConnector) Capabilities() contracts.Capabilities {
	return contracts.Capabilities{
		Transport:       contracts.TransportPushAPI,
		SupportsUpsert:  true,
		SupportsDelete:  false,
		InclusionPolicy: contracts.InclusionExcludeInactive,
	}
}

func (c *PassthroughConnector) PublishListing(_ context.Context, payload map[string]any, _ contracts.Credentials) (contracts.PublishResult, error) {
	id, _ := payload["canonical_id"].(string)
	return contracts.PublishResult{OK: true, Retryable: false, ExternalID: id, Detail: map[string]any{"noop": true}}, nil
}

func (c *PassthroughConnector) DeleteListing(context.Context, string, contracts.Credentials) (contracts.PublishResult, error) {
	return contracts.PublishResult{OK: false, Retryable: false, ErrorCode: "NOT_SUPPORTED", ErrorMessage: "delete not supported"}, nil
}
