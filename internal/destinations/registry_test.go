package destinations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/syndicatehub/hub/pkg/contracts"
)

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMockConnector())
	r.Register(NewHostedFeedConnector("101evler", true, contracts.InclusionExcludeInactive))
	r.Register(NewPassthroughConnector())

	names := r.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 destinations, got %d", len(names))
	}
	if names[0] != "101evler" || names[1] != "mock" || names[2] != "passthrough" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestRegistryGetUnknownDestination(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected ErrNotFound for unregistered destination")
	}
}

func TestMockConnectorForcedFail(t *testing.T) {
	c := NewMockConnector()
	result, err := c.PublishListing(context.Background(), map[string]any{"title": "FAIL"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OK || !result.Retryable || result.ErrorCode != "MOCK_FAIL" {
		t.Fatalf("expected forced retryable failure, got %+v", result)
	}
}

func TestHostedFeedConnectorIsNoop(t *testing.T) {
	c := NewHostedFeedConnector("partner_csv", false, contracts.InclusionIncludeWithStatus)
	result, err := c.PublishListing(context.Background(), map[string]any{}, nil)
	if err != nil || !result.OK {
		t.Fatalf("expected hosted feed connector to report a no-op success, got %+v err=%v", result, err)
	}
	if c.Capabilities().Transport != contracts.TransportHostedFeed {
		t.Fatalf("expected hosted_feed transport, got %s", c.Capabilities().Transport)
	}
}

func TestHTTPConnectorClassifiesStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewHTTPConnector("http_dest", srv.URL, contracts.Capabilities{Transport: contracts.TransportPushAPI})
	result, err := c.PublishListing(context.Background(), map[string]any{"canonical_id": "l1"}, contracts.Credentials{"api_key": "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OK {
		t.Fatal("expected a non-OK result for a 429 response")
	}
	if !result.Retryable {
		t.Fatal("expected 429 to classify as retryable")
	}
}

func TestHTTPConnectorSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"ext_123"}`))
	}))
	defer srv.Close()

	c := NewHTTPConnector("http_dest", srv.URL, contracts.Capabilities{Transport: contracts.TransportPushAPI})
	result, err := c.PublishListing(context.Background(), map[string]any{"canonical_id": "l1"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK || result.ExternalID != "ext_123" {
		t.Fatalf("expected successful publish with external id, got %+v", result)
	}
}
