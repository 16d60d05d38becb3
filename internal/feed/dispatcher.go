package feed

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/syndicatehub/hub/internal/destinations"
	"github.com/syndicatehub/hub/internal/metrics"
	"github.com/syndicatehub/hub/internal/objectstore"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/models"
)

// Dispatcher rebuilds a hosted-feed artifact for every enabled
// (partner, destination) pair whenever its fingerprint has moved,
// mirroring worker/feed_dispatcher.py's 30-second poll loop.
type Dispatcher struct {
	destSettings store.DestinationStore
	listings     store.ListingStore
	feeds        store.FeedStore
	connectors   *destinations.Registry
	plugins      *Registry
	resolver     contracts.MappingResolver
	objects      objectstore.Store
	log          zerolog.Logger
}

func NewDispatcher(
	destSettings store.DestinationStore,
	listings store.ListingStore,
	feeds store.FeedStore,
	connectors *destinations.Registry,
	plugins *Registry,
	resolver contracts.MappingResolver,
	objects objectstore.Store,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		destSettings: destSettings,
		listings:     listings,
		feeds:        feeds,
		connectors:   connectors,
		plugins:      plugins,
		resolver:     resolver,
		objects:      objects,
		log:          log.With().Str("component", "feed_dispatcher").Logger(),
	}
}

// Tick rebuilds every enabled hosted-feed destination whose fingerprint has
// changed since its last snapshot, returning how many were rebuilt.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	settings, err := d.destSettings.ListEnabledHostedFeedSettings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list enabled hosted-feed settings: %w", err)
	}

	built := 0
	for _, setting := range settings {
		setting, err := d.ensureFeedToken(ctx, setting)
		if err != nil {
			d.log.Error().Err(err).Str("destination", setting.Destination).Str("partner_id", setting.PartnerID).Msg("feed token provisioning failed")
			continue
		}

		start := time.Now()
		rebuilt, err := d.rebuildOne(ctx, setting)
		metrics.FeedBuildDuration.WithLabelValues(setting.Destination).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.FeedBuilds.WithLabelValues(setting.Destination, "error").Inc()
			d.log.Error().Err(err).Str("destination", setting.Destination).Str("partner_id", setting.PartnerID).Msg("feed rebuild failed")
			continue
		}
		if rebuilt {
			built++
			metrics.FeedBuilds.WithLabelValues(setting.Destination, "rebuilt").Inc()
		} else {
			metrics.FeedBuilds.WithLabelValues(setting.Destination, "unchanged").Inc()
		}
	}
	return built, nil
}

// ensureFeedToken generates and persists a feed_token the first time a
// hosted-feed destination is enabled for a partner, so the Public Feed
// Endpoint has something to authenticate GET requests against.
func (d *Dispatcher) ensureFeedToken(ctx context.Context, setting models.PartnerDestinationSetting) (models.PartnerDestinationSetting, error) {
	if setting.FeedToken != "" {
		return setting, nil
	}
	setting.FeedToken = uuid.NewString()
	return d.destSettings.UpsertPartnerDestinationSetting(ctx, setting)
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
				d.log.Error().Err(err).Msg("feed dispatcher tick failed")
			}
		}
	}
}

func (d *Dispatcher) rebuildOne(ctx context.Context, setting models.PartnerDestinationSetting) (bool, error) {
	plugin, err := d.plugins.Get(setting.Destination)
	if err != nil {
		return false, nil // no feed plugin registered for this destination; not an error
	}

	caps, err := d.connectors.Capabilities(setting.Destination)
	if err != nil {
		caps = contracts.Capabilities{InclusionPolicy: contracts.InclusionExcludeInactive}
	}

	rows, err := d.listings.ListListingsByPartner(ctx, setting.TenantID, setting.PartnerID)
	if err != nil {
		return false, fmt.Errorf("list listings: %w", err)
	}

	inputs := make([]contracts.FeedBuildInput, 0, len(rows))
	fingerprintInputs := make([]ListingInput, 0, len(rows))
	for _, l := range rows {
		inputs = append(inputs, contracts.FeedBuildInput{
			ListingID:   l.ID,
			ContentHash: l.ContentHash,
			Canonical:   l.Payload,
			IsActive:    l.IsActive,
			Status:      l.Status,
		})
		fingerprintInputs = append(fingerprintInputs, ListingInput{CanonicalID: l.ID, ContentHash: l.ContentHash})
	}

	fingerprint := ComputeFingerprint(setting.Destination, setting.Config, fingerprintInputs)

	latest, err := d.feeds.GetLatestFeedSnapshot(ctx, setting.TenantID, setting.PartnerID, setting.Destination)
	if err == nil && latest.Fingerprint == fingerprint {
		return false, nil
	}

	result, err := plugin.Build(ctx, d.resolver, inputs, caps.InclusionPolicy)
	if err != nil {
		return false, fmt.Errorf("build feed: %w", err)
	}

	gzipped, err := gzipBytes(result.Bytes)
	if err != nil {
		return false, fmt.Errorf("gzip feed: %w", err)
	}

	ext := result.Format
	baseKey := fmt.Sprintf("%s/%s/%s/feed.%s", setting.TenantID, setting.PartnerID, setting.Destination, ext)
	storageURI, err := d.objects.Put(baseKey, result.Bytes)
	if err != nil {
		return false, fmt.Errorf("store feed artifact: %w", err)
	}
	gzipURI, err := d.objects.Put(baseKey+".gz", gzipped)
	if err != nil {
		return false, fmt.Errorf("store gzip artifact: %w", err)
	}

	if _, err := d.feeds.CreateFeedSnapshot(ctx, models.FeedSnapshot{
		TenantID:       setting.TenantID,
		PartnerID:      setting.PartnerID,
		Destination:    setting.Destination,
		Format:         result.Format,
		StorageURI:     storageURI,
		GzipStorageURI: gzipURI,
		ContentHash:    result.ContentHash,
		Fingerprint:    fingerprint,
		ListingCount:   result.ListingCount,
		Meta:           result.Meta,
	}); err != nil {
		return false, fmt.Errorf("persist feed snapshot: %w", err)
	}

	return true, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
