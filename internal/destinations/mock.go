package destinations

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// MockConnector simulates a push_api destination for local development and
// tests: a listing titled "FAIL" always fails, and 10% of the rest fail
// with a retryable transient error. Grounded on app/connectors/mock.py.
type MockConnector struct{}

func NewMockConnector() *MockConnector { return &MockConnector{} }

func (c *MockConnector) Name() string { return "mock" }

func (c *MockConnector) Capabilities() contracts.Capabilities {
	return contracts.Capabilities{
		Transport:       contracts.TransportPushAPI,
		SupportsUpsert:  true,
		SupportsDelete:  true,
		InclusionPolicy: contracts.InclusionExcludeInactive,
	}
}

func (c *MockConnector) PublishListing(_ context.Context, payload map[string]any, _ contracts.Credentials) (contracts.PublishResult, error) {
	if title, _ := payload["title"].(string); title == "FAIL" {
		return contracts.PublishResult{OK: false, Retryable: true, ErrorCode: "MOCK_FAIL", ErrorMessage: "forced fail"}, nil
	}
	if rand.Float64() < 0.1 {
		return contracts.PublishResult{OK: false, Retryable: true, ErrorCode: "MOCK_TEMP", ErrorMessage: "temporary error"}, nil
	}
	id, _ := payload["canonical_id"].(string)
	return contracts.PublishResult{OK: true, ExternalID: fmt.Sprintf("ext_%s", id), Detail: map[string]any{"mock": true}}, nil
}

func (c *MockConnector) DeleteListing(_ context.Context, externalID string, _ contracts.Credentials) (contracts.PublishResult, error) {
	return contracts.PublishResult{OK: true, ExternalID: externalID, Detail: map[string]any{"mock": true}}, nil
}
