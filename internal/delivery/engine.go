// Package delivery implements the Delivery Engine (C5): claims eligible
// Delivery rows, resolves credentials and the destination's projected
// payload, invokes the connector, and advances the state machine
// (pending/failed -> publishing -> success|failed|dead_lettered).
// Grounded on original_source/worker/publish.py.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/catalog"
	"github.com/syndicatehub/hub/internal/crypto"
	"github.com/syndicatehub/hub/internal/destinations"
	"github.com/syndicatehub/hub/internal/metrics"
	"github.com/syndicatehub/hub/internal/projections"
	"github.com/syndicatehub/hub/internal/retry"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/models"
)

// Engine drives the Delivery state machine for one claimed batch at a time.
type Engine struct {
	deliveries store.DeliveryStore
	listings   store.ListingStore
	connectors *destinations.Registry
	projectors *projections.Registry
	resolver   contracts.MappingResolver
	sealer     *crypto.Sealer
	batchSize  int
	log        zerolog.Logger
}

func NewEngine(
	deliveries store.DeliveryStore,
	listings store.ListingStore,
	connectors *destinations.Registry,
	projectors *projections.Registry,
	catalogStore store.CatalogStore,
	sealer *crypto.Sealer,
	batchSize int,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		deliveries: deliveries,
		listings:   listings,
		connectors: connectors,
		projectors: projectors,
		resolver:   catalog.NewResolver(catalogStore, log),
		sealer:     sealer,
		batchSize:  batchSize,
		log:        log.With().Str("component", "delivery_engine").Logger(),
	}
}

// Tick claims up to batchSize eligible deliveries and processes each in
// turn, returning how many were claimed.
func (e *Engine) Tick(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	claimed, err := e.deliveries.ClaimDeliveries(ctx, e.batchSize, now)
	if err != nil {
		return 0, fmt.Errorf("claim deliveries: %w", err)
	}
	for _, d := range claimed {
		e.process(ctx, d)
	}
	return len(claimed), nil
}

// Run ticks on interval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Tick(ctx); err != nil {
				e.log.Error().Err(err).Msg("delivery tick failed")
			}
		}
	}
}

func (e *Engine) process(ctx context.Context, d models.Delivery) {
	log := e.log.With().Str("delivery_id", d.ID).Str("destination", d.Destination).Logger()

	if d.DeadLetteredAt != nil {
		return
	}

	listing, err := e.listings.GetListing(ctx, d.ListingID)
	if err != nil {
		e.recordFailure(ctx, d, "LISTING_LOOKUP_FAILED", err.Error(), false)
		return
	}

	mapping, mappingErr := e.deliveries.GetExternalMapping(ctx, d.ListingID, d.Destination)
	hasMapping := mappingErr == nil
	if hasMapping && mapping.LastSyncedHash != "" && mapping.LastSyncedHash == listing.ContentHash {
		// Idempotent re-publication of content we already synced: skip the
		// outbound call entirely.
		now := time.Now().UTC()
		d.Status = models.DeliveryStatusSuccess
		d.LastError = ""
		d.StatusDetail = ""
		d.NextRetryAt = nil
		d.Retryable = false
		d.LastSuccessAt = &now
		if _, err := e.deliveries.UpdateDelivery(ctx, d); err != nil {
			log.Error().Err(err).Msg("failed to persist dedup short-circuit")
		}
		metrics.DeliveryDedupSkips.WithLabelValues(d.Destination).Inc()
		return
	}

	// Attempts are incremented before the dead-letter check, matching
	// publish.py's ordering: the attempt that crosses the limit is still
	// recorded as an attempt.
	d.Attempts++
	if d.Attempts > models.MaxDeliveryAttempts {
		e.deadLetter(ctx, d, models.ErrorCodeMaxAttempts, "max delivery attempts exceeded")
		return
	}

	connector, err := e.connectors.Get(d.Destination)
	if err != nil {
		e.recordFailure(ctx, d, "UNKNOWN_DESTINATION", err.Error(), false)
		return
	}

	// Hosted-feed and pull-only destinations are driven by the Feed Engine,
	// not a per-listing push, so they carry no AgentCredential row; only
	// push_api destinations need one.
	var creds contracts.Credentials
	if connector.Capabilities().Transport == contracts.TransportPushAPI {
		creds, err = e.loadCredentials(ctx, d)
		if err != nil {
			e.recordFailure(ctx, d, models.ErrorCodeNoCredentials, err.Error(), false)
			return
		}
	}

	externalAgentID := e.lookupExternalAgentID(ctx, d)
	externalListingID := ""
	if hasMapping {
		externalListingID = mapping.ExternalListingID
	}

	payload, err := e.project(ctx, d.Destination, listing, externalAgentID, externalListingID)
	if err != nil {
		e.recordFailure(ctx, d, "PROJECTION_FAILED", err.Error(), false)
		return
	}

	result, err := connector.PublishListing(ctx, payload, creds)
	if err != nil {
		e.recordFailure(ctx, d, "CONNECTOR_ERROR", err.Error(), true)
		return
	}

	e.recordAttempt(ctx, d, result, payload)

	if !result.OK {
		e.recordFailure(ctx, d, result.ErrorCode, result.ErrorMessage, result.Retryable)
		return
	}

	log.Debug().Str("external_id", result.ExternalID).Msg("publish succeeded")

	externalID := externalListingID
	if result.ExternalID != "" {
		externalID = result.ExternalID
	}
	if _, err := e.deliveries.UpsertExternalMapping(ctx, models.ListingExternalMapping{
		TenantID:          d.TenantID,
		ListingID:         d.ListingID,
		Destination:       d.Destination,
		ExternalListingID: externalID,
		LastSyncedHash:    listing.ContentHash,
	}); err != nil {
		log.Error().Err(err).Msg("failed to persist external mapping")
	}

	now := time.Now().UTC()
	d.Status = models.DeliveryStatusSuccess
	d.LastError = ""
	d.StatusDetail = ""
	d.NextRetryAt = nil
	d.Retryable = false
	d.LastSuccessAt = &now
	if _, err := e.deliveries.UpdateDelivery(ctx, d); err != nil {
		log.Error().Err(err).Msg("failed to persist success")
	}
	metrics.DeliveryAttempts.WithLabelValues(d.Destination, "success").Inc()
}

// lookupExternalAgentID resolves the destination-side agent identifier
// discovered or assigned on a prior publish, if any.
func (e *Engine) lookupExternalAgentID(ctx context.Context, d models.Delivery) string {
	identity, err := e.deliveries.GetAgentExternalIdentity(ctx, d.AgentID, d.Destination)
	if err != nil {
		return ""
	}
	return identity.ExternalAgentID
}

func (e *Engine) loadCredentials(ctx context.Context, d models.Delivery) (contracts.Credentials, error) {
	cred, err := e.deliveries.GetCredential(ctx, d.TenantID, d.PartnerID, d.AgentID, d.Destination)
	if err != nil {
		return nil, fmt.Errorf("no credential on file: %w", err)
	}
	if !cred.Active {
		return nil, fmt.Errorf("credential is inactive")
	}
	opened, err := e.sealer.OpenJSON(cred.SealedSecret)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	creds := make(contracts.Credentials, len(opened))
	for k, v := range opened {
		creds[k] = v
	}
	return creds, nil
}

func (e *Engine) project(ctx context.Context, destination string, listing models.Listing, externalAgentID, externalListingID string) (map[string]any, error) {
	projector, err := e.projectors.Get(destination)
	if err != nil {
		projector = projections.NewPassthroughProjection()
	}
	canonical := listing.Payload
	if externalAgentID != "" || externalListingID != "" {
		canonical = make(map[string]any, len(listing.Payload)+2)
		for k, v := range listing.Payload {
			canonical[k] = v
		}
		if externalAgentID != "" {
			canonical["external_agent_id"] = externalAgentID
		}
		if externalListingID != "" {
			canonical["external_listing_id"] = externalListingID
		}
	}
	return projector.Project(ctx, e.resolver, canonical)
}

func (e *Engine) recordAttempt(ctx context.Context, d models.Delivery, result contracts.PublishResult, payload map[string]any) {
	status := models.DeliveryStatusSuccess
	if !result.OK {
		status = models.DeliveryStatusFailed
	}
	if _, err := e.deliveries.AppendDeliveryAttempt(ctx, models.DeliveryAttempt{
		DeliveryID:      d.ID,
		Status:          status,
		RequestSnapshot: payload,
		ResponseDetail:  result.Detail,
		ErrorCode:       result.ErrorCode,
		ErrorMessage:    result.ErrorMessage,
	}); err != nil {
		e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to append delivery attempt")
	}
}

func (e *Engine) recordFailure(ctx context.Context, d models.Delivery, code, message string, retryable bool) {
	e.log.Warn().Str("delivery_id", d.ID).Str("error_code", code).Bool("retryable", retryable).Msg(message)
	metrics.DeliveryAttempts.WithLabelValues(d.Destination, "failed").Inc()

	if _, err := e.deliveries.AppendDeliveryAttempt(ctx, models.DeliveryAttempt{
		DeliveryID:   d.ID,
		Status:       models.DeliveryStatusFailed,
		ErrorCode:    code,
		ErrorMessage: message,
	}); err != nil {
		e.log.Error().Err(err).Msg("failed to append failure attempt")
	}

	if !retryable || d.Attempts >= models.MaxDeliveryAttempts {
		e.deadLetter(ctx, d, code, message)
		return
	}

	backoffSeconds := retry.ComputeBackoffSeconds(d.Attempts)
	nextRetry := time.Now().UTC().Add(time.Duration(backoffSeconds) * time.Second)

	d.Status = models.DeliveryStatusFailed
	d.LastError = message
	d.StatusDetail = code
	d.Retryable = true
	d.NextRetryAt = &nextRetry
	if _, err := e.deliveries.UpdateDelivery(ctx, d); err != nil {
		e.log.Error().Err(err).Msg("failed to persist failure")
	}
}

func (e *Engine) deadLetter(ctx context.Context, d models.Delivery, code, message string) {
	now := time.Now().UTC()
	d.Status = models.DeliveryStatusDeadLettered
	d.LastError = message
	d.StatusDetail = code
	d.Retryable = false
	d.NextRetryAt = nil
	d.DeadLetteredAt = &now
	if _, err := e.deliveries.UpdateDelivery(ctx, d); err != nil {
		e.log.Error().Err(err).Msg("failed to persist dead-letter")
	}
	e.log.Warn().Str("delivery_id", d.ID).Str("error_code", code).Msg("delivery dead-lettered")
	metrics.DeliveryDeadLettered.WithLabelValues(d.Destination).Inc()
}
