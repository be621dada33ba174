package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/planningpoker/go/internal/poker/coordinator"
	"github.com/mcdev12/planningpoker/go/internal/poker/events"
	"github.com/rs/zerolog/log"
)

// Service is the planning poker gateway: WebSocket transport, HTTP handlers
// and the session coordinator of one room.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	coordinator       *coordinator.Coordinator
	publisher         events.Publisher
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig  ConnectionConfig
	CoordinatorConfig coordinator.Config
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:  DefaultConnectionConfig(),
		CoordinatorConfig: coordinator.DefaultConfig(),
	}
}

// NewService creates a new gateway service. source may be nil, in which case
// ticket source requests fail with an error to the host.
func NewService(config Config, clock clockwork.Clock, source coordinator.TicketSource, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	connectionManager := NewConnectionManager(config.ConnectionConfig)
	coord := coordinator.New(config.CoordinatorConfig, clock, connectionManager, source, publisher)
	connectionManager.dispatcher = coord

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(coord),
		coordinator:       coord,
		publisher:         publisher,
	}
}

// Start runs the coordinator until ctx is cancelled, then closes every
// connection.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting planning poker gateway service")

	err := s.coordinator.Run(ctx)
	s.connectionManager.CloseAll()

	log.Info().Msg("planning poker gateway service shutting down")
	return err
}

// Stop releases the event publisher.
func (s *Service) Stop() error {
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close event publisher")
		return err
	}
	log.Info().Msg("planning poker gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
