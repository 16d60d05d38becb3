// Command worker runs the hub's background dispatchers: the outbox
// dispatcher (claim + lease + fan out to Deliveries), the delivery engine
// (per-destination publish state machine), and the feed dispatcher
// (fingerprinted hosted-feed snapshot rebuilds). It shares the composition
// root with cmd/server so both processes wire identical registries against
// the same store; with HUB_STORE_BACKEND=postgres they operate on the same
// durable state the API process writes to.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/syndicatehub/hub/internal/telemetry"
	"github.com/syndicatehub/hub/pkg/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("syndication hub: starting background dispatchers")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize server")
	}
	defer srv.Store.Close()

	shutdownTelemetry, err := telemetry.Init(srv.Config.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}

	dispatch := srv.Config.Dispatch

	go srv.OutboxDispatcher.Run(ctx, dispatch.OutboxPollInterval)
	go srv.OutboxWorker.Run(ctx, srv.OutboxQueue)
	go srv.DeliveryEngine.Run(ctx, dispatch.DeliveryPollInterval)
	go srv.FeedDispatcher.Run(ctx, dispatch.FeedPollInterval)

	log.Info().
		Dur("outbox_poll", dispatch.OutboxPollInterval).
		Dur("delivery_poll", dispatch.DeliveryPollInterval).
		Dur("feed_poll", dispatch.FeedPollInterval).
		Msg("dispatchers running")

	<-ctx.Done()
	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	shutdownTelemetry(shutdownCtx)
}
