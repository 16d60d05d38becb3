// Package outbox implements the Outbox Dispatcher (C4): it reclaims
// expired leases, claims pending events under a fresh lease, and fans each
// listing.upserted event out to one Delivery row per allowed destination.
// Grounded on original_source/worker/dispatcher.py (the tick/claim loop)
// and original_source/worker/tasks.py (_process_outbox_event).
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/metrics"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

// DestinationLister supplies the set of registered destination names the
// worker checks a listing's agent against. The Connector Registry (C6)
// satisfies this.
type DestinationLister interface {
	Names() []string
}

type Dispatcher struct {
	store         store.OutboxStore
	queue         Queue
	batchSize     int
	leaseDuration time.Duration
	log           zerolog.Logger
}

func NewDispatcher(s store.OutboxStore, q Queue, batchSize int, leaseDuration time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: s, queue: q, batchSize: batchSize, leaseDuration: leaseDuration, log: log.With().Str("component", "outbox_dispatcher").Logger()}
}

// Tick runs one claim cycle and returns the number of events claimed.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	reclaimed, err := d.store.ReclaimExpiredLeases(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("outbox: reclaim expired leases: %w", err)
	}
	if reclaimed > 0 {
		d.log.Warn().Int("count", reclaimed).Msg("reclaimed expired outbox leases")
	}

	claimed, err := d.store.ClaimOutboxEvents(ctx, d.batchSize, d.leaseDuration, now)
	if err != nil {
		metrics.OutboxTicks.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("outbox: claim events: %w", err)
	}
	metrics.OutboxTicks.WithLabelValues("ok").Inc()
	metrics.OutboxEventsClaimed.Add(float64(len(claimed)))

	for _, ev := range claimed {
		job := Job{EventID: ev.ID, LeaseID: ev.LeaseID}
		if err := d.queue.Enqueue(ctx, job); err != nil {
			d.log.Error().Err(err).Str("event_id", ev.ID).Msg("enqueue failed, reverting to pending")
			if reqErr := d.store.RequeueOutboxEvent(ctx, ev.ID, ev.LeaseID, "enqueue failed: "+err.Error()); reqErr != nil {
				d.log.Error().Err(reqErr).Str("event_id", ev.ID).Msg("failed to revert event after enqueue failure")
			}
		}
	}

	return len(claimed), nil
}

// Run ticks on interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Tick(ctx); err != nil {
				d.log.Error().Err(err).Msg("dispatcher tick failed")
			}
		}
	}
}

// Worker consumes Jobs off a Queue and fans listing.upserted events out to
// Delivery rows.
type Worker struct {
	outbox       store.OutboxStore
	listings     store.ListingStore
	scopes       store.ScopeStore
	deliveries   store.DeliveryStore
	destinations DestinationLister
	log          zerolog.Logger
}

func NewWorker(outboxStore store.OutboxStore, listings store.ListingStore, scopes store.ScopeStore, deliveries store.DeliveryStore, destinations DestinationLister, log zerolog.Logger) *Worker {
	return &Worker{
		outbox:       outboxStore,
		listings:     listings,
		scopes:       scopes,
		deliveries:   deliveries,
		destinations: destinations,
		log:          log.With().Str("component", "outbox_worker").Logger(),
	}
}

// Run drains q until ctx is cancelled, processing jobs sequentially. Callers
// wanting concurrency start several Run goroutines over the same queue.
func (w *Worker) Run(ctx context.Context, q *ChannelQueue) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.Jobs():
			w.Process(ctx, job)
		}
	}
}

// Process handles one claimed outbox event. It never panics and never
// returns an error: failures are recorded on the event itself via
// RequeueOutboxEvent so the next dispatcher tick retries it.
func (w *Worker) Process(ctx context.Context, job Job) {
	start := time.Now()
	defer func() { metrics.OutboxEventProcessDuration.Observe(time.Since(start).Seconds()) }()

	ev, err := w.outbox.GetOutboxEvent(ctx, job.EventID)
	if err != nil {
		w.log.Error().Err(err).Str("event_id", job.EventID).Msg("event vanished before processing")
		return
	}
	if ev.LeaseID != job.LeaseID || ev.Status != models.OutboxStatusProcessing {
		// Another dispatcher reclaimed this event, or it's already done.
		return
	}

	if err := w.apply(ctx, ev); err != nil {
		w.log.Error().Err(err).Str("event_id", ev.ID).Msg("processing failed, reverting to pending")
		if reqErr := w.outbox.RequeueOutboxEvent(ctx, ev.ID, ev.LeaseID, err.Error()); reqErr != nil {
			w.log.Error().Err(reqErr).Str("event_id", ev.ID).Msg("failed to revert event after processing failure")
		}
		return
	}

	if err := w.outbox.CompleteOutboxEvent(ctx, ev.ID, ev.LeaseID, time.Now().UTC()); err != nil {
		if _, ok := err.(store.ErrLeaseLost); ok {
			// Lease was reclaimed mid-processing; whoever holds it now will
			// redo this work, so silently stand down.
			return
		}
		w.log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to mark event done")
	}
}

func (w *Worker) apply(ctx context.Context, ev models.OutboxEvent) error {
	switch ev.EventType {
	case models.EventTypeUpserted:
		return w.applyListingUpserted(ctx, ev)
	default:
		// Unknown event types are completed without side effects rather
		// than retried forever.
		w.log.Warn().Str("event_type", ev.EventType).Str("event_id", ev.ID).Msg("no handler for event type")
		return nil
	}
}

func (w *Worker) applyListingUpserted(ctx context.Context, ev models.OutboxEvent) error {
	listingID, _ := ev.Payload["listing_id"].(string)
	if listingID == "" {
		return fmt.Errorf("outbox: listing.upserted event missing listing_id")
	}

	listing, err := w.listings.GetListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("outbox: load listing %s: %w", listingID, err)
	}

	agent, err := w.scopes.GetAgent(ctx, listing.AgentID)
	if err != nil {
		return fmt.Errorf("outbox: load agent %s: %w", listing.AgentID, err)
	}

	for _, destination := range w.destinations.Names() {
		allowed, err := destinationAllowed(agent, listing, destination)
		if err != nil {
			w.log.Warn().Err(err).Str("agent_id", agent.ID).Str("destination", destination).Msg("destination_rule evaluation failed, skipping destination")
			continue
		}
		if !allowed {
			continue
		}
		if err := w.upsertDelivery(ctx, listing, agent, destination); err != nil {
			return fmt.Errorf("outbox: upsert delivery for %s/%s: %w", listingID, destination, err)
		}
	}
	return nil
}

func (w *Worker) upsertDelivery(ctx context.Context, listing models.Listing, agent models.Agent, destination string) error {
	existing, err := w.deliveries.GetDeliveryByListingAndDestination(ctx, listing.ID, destination)
	if err == nil {
		if existing.DeadLetteredAt != nil {
			// A dead-lettered delivery requires operator intervention to
			// revive; a fresh upsert doesn't resurrect it.
			return nil
		}
		existing.Status = models.DeliveryStatusPending
		existing.LastError = ""
		existing.StatusDetail = ""
		existing.NextRetryAt = nil
		_, err := w.deliveries.UpsertDelivery(ctx, existing)
		return err
	}
	if _, ok := err.(store.ErrNotFound); !ok {
		return err
	}

	_, err = w.deliveries.UpsertDelivery(ctx, models.Delivery{
		TenantID:    listing.TenantID,
		PartnerID:   listing.PartnerID,
		AgentID:     agent.ID,
		ListingID:   listing.ID,
		Destination: destination,
		Status:      models.DeliveryStatusPending,
	})
	return err
}

// destinationAllowed applies DestinationRule when the agent carries one,
// falling back to plain AllowedDestinations membership otherwise.
func destinationAllowed(agent models.Agent, listing models.Listing, destination string) (bool, error) {
	if agent.DestinationRule == "" {
		for _, d := range agent.AllowedDestinations {
			if d == destination {
				return true, nil
			}
		}
		return false, nil
	}

	env := map[string]any{
		"destination": destination,
		"status":      listing.Status,
		"is_active":   listing.IsActive,
	}
	program, err := expr.Compile(agent.DestinationRule, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile destination_rule: %w", err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("run destination_rule: %w", err)
	}
	allowed, _ := out.(bool)
	return allowed, nil
}
