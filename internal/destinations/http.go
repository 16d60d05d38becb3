package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/syndicatehub/hub/internal/retry"
	"github.com/syndicatehub/hub/pkg/contracts"
)

// HTTPConnector is a generic push_api connector that POSTs the projected
// payload to a destination's configured base URL, classifying transport
// outcomes the way original_source's destinations package implies but
// never concretely implements (no HTTP push destination shipped in the
// original system). A gobreaker.CircuitBreaker trips a destination that is
// failing consistently, independent of any single Delivery's own backoff
// schedule; transient per-call errors get up to two inline retries via
// internal/retry's backoff policy before being reported up as retryable.
type HTTPConnector struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	caps    contracts.Capabilities
}

func NewHTTPConnector(name, baseURL string, caps contracts.Capabilities) *HTTPConnector {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &HTTPConnector{
		name:    name,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		breaker: breaker,
		caps:    caps,
	}
}

func (c *HTTPConnector) Name() string                         { return c.name }
func (c *HTTPConnector) Capabilities() contracts.Capabilities { return c.caps }

func (c *HTTPConnector) PublishListing(ctx context.Context, payload map[string]any, creds contracts.Credentials) (contracts.PublishResult, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+"/listings", payload, creds)
}

func (c *HTTPConnector) DeleteListing(ctx context.Context, externalID string, creds contracts.Credentials) (contracts.PublishResult, error) {
	return c.do(ctx, http.MethodDelete, c.baseURL+"/listings/"+externalID, nil, creds)
}

func (c *HTTPConnector) do(ctx context.Context, method, url string, payload map[string]any, creds contracts.Credentials) (contracts.PublishResult, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.attempt(ctx, method, url, payload, creds)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return contracts.PublishResult{OK: false, Retryable: true, ErrorCode: "CIRCUIT_OPEN", ErrorMessage: err.Error()}, nil
		}
		return contracts.PublishResult{OK: false, Retryable: true, ErrorCode: "TRANSPORT_ERROR", ErrorMessage: err.Error()}, nil
	}
	return out.(contracts.PublishResult), nil
}

// attempt retries transient failures inline up to twice before giving up
// and letting the outer breaker record the failure; a non-retryable
// outcome returns (result, nil) immediately so the breaker never penalizes
// a destination for e.g. a 404.
func (c *HTTPConnector) attempt(ctx context.Context, method, url string, payload map[string]any, creds contracts.Credentials) (contracts.PublishResult, error) {
	var last contracts.PublishResult
	policy := backoff.WithMaxRetries(retry.NewExponentialBackOff(), 2)

	op := func() error {
		result, transportErr := c.roundTrip(ctx, method, url, payload, creds)
		last = result
		if transportErr != nil {
			return transportErr
		}
		if !result.OK && result.Retryable {
			return fmt.Errorf("destination %s: retryable error %s", c.name, result.ErrorCode)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if last.OK {
			return last, nil
		}
		return last, err
	}
	return last, nil
}

func (c *HTTPConnector) roundTrip(ctx context.Context, method, url string, payload map[string]any, creds contracts.Credentials) (contracts.PublishResult, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return contracts.PublishResult{}, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return contracts.PublishResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token, ok := creds["api_key"]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return contracts.PublishResult{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var detail map[string]any
	_ = json.Unmarshal(respBody, &detail)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		externalID, _ := detail["id"].(string)
		return contracts.PublishResult{OK: true, ExternalID: externalID, Detail: detail}, nil
	}

	return contracts.PublishResult{
		OK:           false,
		Retryable:    classifyRetryable(resp.StatusCode),
		ErrorCode:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
		ErrorMessage: string(respBody),
		Detail:       detail,
	}, nil
}

// classifyRetryable maps a destination's HTTP status to a retry decision:
// 408/429/5xx are transient, 401/403/404 are not, and anything else
// defaults to non-retryable rather than hammering a destination that's
// rejecting the request on its merits.
func classifyRetryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return status >= 500
}
