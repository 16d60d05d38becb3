// Package retry holds the single backoff formula the hub uses in two
// places: the Delivery Engine's next_retry_at scheduling, and a push-API
// connector's own transient-error retry loop within one publish call.
// Grounded on original_source/app/services/retry.py.
package retry

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseSeconds = 10
	capSeconds  = 900
)

// ComputeBackoffSeconds mirrors retry.py's compute_backoff_seconds: capped
// exponential growth plus up to a third of the window in jitter.
func ComputeBackoffSeconds(attempt int) int {
	if attempt < 1 {
		attempt = 1
	}
	exp := baseSeconds << uint(attempt-1)
	if exp > capSeconds || exp < 0 {
		exp = capSeconds
	}
	jitterMax := exp / 3
	if jitterMax > 30 {
		jitterMax = 30
	}
	jitter := 0
	if jitterMax > 0 {
		jitter = rand.Intn(jitterMax + 1)
	}
	return exp + jitter
}

// NewExponentialBackOff builds a cenkalti/backoff/v4 policy with the same
// base/cap shape, for connectors that want to retry a single transient
// transport error inline rather than waiting for the next Delivery attempt.
func NewExponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseSeconds * time.Second
	b.MaxInterval = capSeconds * time.Second
	b.MaxElapsedTime = 0 // caller bounds attempts with backoff.WithMaxRetries
	return b
}
