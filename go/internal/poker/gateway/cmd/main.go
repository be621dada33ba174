package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/clients/jira_client"
	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/mcdev12/planningpoker/go/internal/poker/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	log.Info().
		Str("room", cfg.Gateway.CoordinatorConfig.Room).
		Str("port", cfg.Port).
		Int("seed_tickets", len(cfg.Gateway.CoordinatorConfig.SeedTickets)).
		Bool("nats", cfg.NATSURL != "").
		Msg("starting planning poker gateway")

	publisher := setupPublisher(cfg)
	source := jira_client.NewSource(cfg.SourceTimeout)
	gatewayService := gateway.NewService(cfg.Gateway, clockwork.NewRealClock(), source, publisher)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     h2c.NewHandler(gateway.CORSMiddleware(cfg.AllowedOrigins, mux), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop the coordinator first so hijacked WebSocket connections are closed.
	cancel()
	select {
	case <-serviceDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("gateway service did not stop in time")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := gatewayService.Stop(); err != nil {
		log.Error().Err(err).Msg("gateway service stop failed")
	}

	log.Info().Msg("planning poker gateway shutdown complete")
}

func setupLogging(level, format string) {
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// setupPublisher connects to NATS when configured. A broker that cannot be
// reached disables publishing rather than the gateway.
func setupPublisher(cfg *Config) events.Publisher {
	if cfg.NATSURL == "" {
		return events.NoopPublisher{}
	}

	natsConfig := events.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.SubjectPrefix = cfg.NATSSubjectPrefix
	natsConfig.MaxReconnects = cfg.NATSMaxReconnects

	publisher, err := events.NewNATSPublisher(natsConfig)
	if err != nil {
		log.Error().Err(err).Str("nats_url", cfg.NATSURL).Msg("failed to connect to NATS, session events disabled")
		return events.NoopPublisher{}
	}
	log.Info().Str("nats_url", cfg.NATSURL).Str("subject_prefix", cfg.NATSSubjectPrefix).Msg("publishing session events")
	return publisher
}
