// Package metrics exposes the hub's Prometheus instrumentation: counters
// and histograms for the three dispatcher loops (outbox, delivery, feed)
// plus the HTTP surface, wired through a package-level registry and
// promauto (see DESIGN.md for library provenance).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OutboxTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_outbox_ticks_total",
		Help: "Outbox Dispatcher ticks, labeled by outcome.",
	}, []string{"outcome"})

	OutboxEventsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_outbox_events_claimed_total",
		Help: "OutboxEvent rows claimed across all dispatcher ticks.",
	})

	OutboxEventProcessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hub_outbox_event_process_seconds",
		Help:    "Time to apply one claimed OutboxEvent.",
		Buckets: prometheus.DefBuckets,
	})

	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_delivery_attempts_total",
		Help: "Delivery attempts, labeled by destination and outcome.",
	}, []string{"destination", "outcome"})

	DeliveryDedupSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_delivery_dedup_skips_total",
		Help: "Deliveries short-circuited because last_synced_hash matched content_hash.",
	}, []string{"destination"})

	DeliveryDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_delivery_dead_lettered_total",
		Help: "Deliveries that reached dead_lettered.",
	}, []string{"destination"})

	FeedBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_feed_builds_total",
		Help: "Hosted-feed rebuild attempts, labeled by destination and outcome.",
	}, []string{"destination", "outcome"})

	FeedBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hub_feed_build_seconds",
		Help:    "Time to rebuild one hosted-feed snapshot.",
		Buckets: prometheus.DefBuckets,
	}, []string{"destination"})

	PublicFeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_public_feed_requests_total",
		Help: "Public feed endpoint requests, labeled by destination and status.",
	}, []string{"destination", "status"})

	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_rate_limit_rejections_total",
		Help: "Requests rejected by the fixed-window rate limiter.",
	}, []string{"bucket"})

	IngestRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_ingest_requests_total",
		Help: "Ingest endpoint requests, labeled by partner_key and outcome.",
	}, []string{"partner_key", "outcome"})
)

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
