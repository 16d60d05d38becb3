// Package server is the hub's composition root: it wires every service,
// registry and dispatcher into one http.Handler. It lives in pkg/ (not
// internal/) so both cmd/server and cmd/worker can import the same
// assembly and so an operator embedding the hub as a library has one
// documented entry point: New(ctx) returns a Server whose Handler is ready
// to serve.
package server

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/syndicatehub/hub/internal/adapters"
	"github.com/syndicatehub/hub/internal/api"
	"github.com/syndicatehub/hub/internal/api/handlers"
	"github.com/syndicatehub/hub/internal/audit"
	authpkg "github.com/syndicatehub/hub/internal/auth"
	"github.com/syndicatehub/hub/internal/canonical"
	"github.com/syndicatehub/hub/internal/catalog"
	"github.com/syndicatehub/hub/internal/config"
	"github.com/syndicatehub/hub/internal/crypto"
	"github.com/syndicatehub/hub/internal/delivery"
	"github.com/syndicatehub/hub/internal/destinations"
	"github.com/syndicatehub/hub/internal/feed"
	"github.com/syndicatehub/hub/internal/idempotency"
	"github.com/syndicatehub/hub/internal/ingest"
	"github.com/syndicatehub/hub/internal/objectstore"
	"github.com/syndicatehub/hub/internal/outbox"
	"github.com/syndicatehub/hub/internal/projections"
	"github.com/syndicatehub/hub/internal/ratelimit"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/models"
)

// Server holds every initialized component. cmd/server reads only Handler;
// cmd/worker reads OutboxDispatcher/OutboxWorker/DeliveryEngine/FeedDispatcher
// and drives their Run loops itself, so one process can run the HTTP API
// and another can run the background dispatchers against the same store.
type Server struct {
	Handler http.Handler
	Store   store.Store
	Config  *config.Config

	OutboxDispatcher *outbox.Dispatcher
	OutboxWorker     *outbox.Worker
	OutboxQueue      *outbox.ChannelQueue
	DeliveryEngine   *delivery.Engine
	FeedDispatcher   *feed.Dispatcher

	AuthChain *authpkg.Chain
}

// New builds the full hub against the store selected by HUB_STORE_BACKEND
// (in-memory by default — suitable for local development and the OSS
// default; "postgres" opens a pool against Database.URL).
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()
	dataStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(ctx, cfg, dataStore)
}

// OpenStore opens the backing store named by cfg.StoreBackend. cmd/server
// and cmd/worker both call this so that, with HUB_STORE_BACKEND=postgres and
// a shared DATABASE_URL, the two processes operate on the same durable
// state; the in-memory backend is process-local and only useful when both
// roles run embedded in one binary.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		s, err := store.NewPostgresStore(ctx, cfg.Database.URL, int32(cfg.Database.MaxConnections))
		if err != nil {
			return nil, fmt.Errorf("server: open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("server: unknown HUB_STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// NewWithStore builds the full hub against a caller-supplied store (e.g. a
// PostgresStore the caller opened and migrated), letting cmd/server and
// cmd/worker share identical wiring over the same backing store.
func NewWithStore(ctx context.Context, cfg *config.Config, dataStore store.Store) (*Server, error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	sealer, err := newSealer(cfg.Crypto.CredentialsEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	objects, err := objectstore.NewLocalStore(cfg.Feed.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("server: open object store: %w", err)
	}

	adapterRegistry := adapters.NewRegistry()
	adapterRegistry.Register("default", adapters.NewPassthrough("1.0"))

	validatorRegistry := canonical.NewRegistry()
	validatorRegistry.Register(canonical.NewListingValidator())

	connectorRegistry := destinations.NewRegistry()
	connectorRegistry.Register(destinations.NewMockConnector())
	connectorRegistry.Register(destinations.NewPassthroughConnector())
	connectorRegistry.Register(destinations.NewHostedFeedConnector("101evler", true, contracts.InclusionExcludeInactive))
	connectorRegistry.Register(destinations.NewHostedFeedConnector("partner_csv", false, contracts.InclusionIncludeWithStatus))

	projectionRegistry := projections.NewRegistry()
	projectionRegistry.Register(projections.NewPassthroughProjection())
	projectionRegistry.Register(projections.NewEvler101Projection())

	feedPluginRegistry := feed.NewRegistry()
	feedPluginRegistry.Register(feed.NewEvler101FeedPlugin())
	feedPluginRegistry.Register(feed.NewPartnerCSVFeedPlugin())

	ingestSvc := ingest.New(dataStore, dataStore, adapterRegistry, validatorRegistry)
	catalogSvc := catalog.NewService(dataStore)
	idempotencySvc := idempotency.New(dataStore)
	auditLog := audit.New(dataStore)
	resolver := catalog.NewResolver(dataStore, logger)

	outboxQueue := outbox.NewChannelQueue(cfg.Dispatch.OutboxBatchSize * 4)
	outboxDispatcher := outbox.NewDispatcher(dataStore, outboxQueue, cfg.Dispatch.OutboxBatchSize, cfg.Dispatch.OutboxLeaseDuration, logger)
	outboxWorker := outbox.NewWorker(dataStore, dataStore, dataStore, dataStore, connectorRegistry, logger)

	deliveryEngine := delivery.NewEngine(dataStore, dataStore, connectorRegistry, projectionRegistry, dataStore, sealer, cfg.Dispatch.DeliveryBatchSize, logger)
	feedDispatcher := feed.NewDispatcher(dataStore, dataStore, dataStore, connectorRegistry, feedPluginRegistry, resolver, objects, logger)

	rateLimiter := newRateLimiter(cfg.Redis.URL, logger)

	authChain := authpkg.NewChain()
	apiKeyProvider := authpkg.NewAPIKeyProvider(cfg.Auth.APIKeyHeader, cfg.Auth.APIKeyPepper)
	authChain.RegisterProvider(apiKeyProvider)
	seedDevAPIKeys(apiKeyProvider)

	if err := seedDefaultScope(ctx, dataStore); err != nil {
		logger.Warn().Err(err).Msg("failed to seed default tenant/partner")
	}

	h := handlers.New(
		dataStore,
		ingestSvc,
		catalogSvc,
		idempotencySvc,
		auditLog,
		objects,
		sealer,
		feedPluginRegistry,
		rateLimiter,
		60,
		cfg.Feed.PublicBaseURL,
		cfg.Version,
		logger,
	)

	router := api.NewRouter(api.Config{Version: cfg.Version, RequireAuth: true}, h, authChain)

	return &Server{
		Handler:          router,
		Store:            dataStore,
		Config:           cfg,
		OutboxDispatcher: outboxDispatcher,
		OutboxWorker:     outboxWorker,
		OutboxQueue:      outboxQueue,
		DeliveryEngine:   deliveryEngine,
		FeedDispatcher:   feedDispatcher,
		AuthChain:        authChain,
	}, nil
}

func newSealer(hexKey string) (*crypto.Sealer, error) {
	if hexKey == "" {
		// No key configured (local/dev): derive a process-local key so the
		// server still starts, at the cost of credentials not surviving a
		// restart. Production deployments must set CREDENTIALS_ENCRYPTION_KEY.
		devKey := make([]byte, 32)
		if _, err := crand.Read(devKey); err != nil {
			return nil, fmt.Errorf("generate process-local credentials key: %w", err)
		}
		return crypto.NewSealer(devKey)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode CREDENTIALS_ENCRYPTION_KEY: %w", err)
	}
	return crypto.NewSealer(key)
}

func newRateLimiter(redisURL string, log zerolog.Logger) ratelimit.Limiter {
	// The hub ships only the in-process limiter by default; a Redis-backed
	// one requires a concrete *redis.Client the operator wires in, which is
	// outside the composition root's own dependency surface (see DESIGN.md).
	if redisURL != "" {
		log.Info().Msg("REDIS_URL set but no redis client wired into the composition root; using in-process rate limiter")
	}
	return ratelimit.NewMemoryLimiter()
}

func seedDevAPIKeys(p *authpkg.APIKeyProvider) {
	if key := os.Getenv("HUB_DEV_ADMIN_API_KEY"); key != "" {
		p.Register(key, authpkg.APIKeyRecord{TenantID: "default", PartnerAdmin: true})
	}
}

// seedDefaultScope ensures a "default" tenant/partner pair exists so a
// freshly started hub has somewhere for a dev API key to scope into.
func seedDefaultScope(ctx context.Context, s store.Store) error {
	if _, err := s.GetTenant(ctx, "default"); err == nil {
		return nil
	}
	if _, err := s.CreateTenant(ctx, models.Tenant{ID: "default", Name: "Default Tenant", Slug: "default"}); err != nil {
		return err
	}
	_, err := s.CreatePartner(ctx, models.Partner{ID: "default", TenantID: "default", Name: "Default Partner", Key: "default", Active: true})
	return err
}

var _ = log.Logger
