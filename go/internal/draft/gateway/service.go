package gateway

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
)

// Service is the draft gateway: it streams shared session documents to
// WebSocket clients as draft events.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
}

// Config holds configuration for the draft gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	// Sink, when set, receives every derived event of watched sessions.
	Sink EventSink
	// History serves /api/sessions/{sessionID}/events when set.
	History EventHistory
}

// DefaultConfig returns default configuration for the draft gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new draft gateway service over the shared store.
func NewService(config Config, st store.SharedStore, clock clockwork.Clock) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, st, clock)
	connectionManager.feed.sink = config.Sink

	stateHandler := NewStateHandler(st, connectionManager)
	stateHandler.history = config.History

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      stateHandler,
	}
}

// Start runs the broadcast loop until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting draft gateway service")

	s.connectionManager.Start(ctx)

	log.Info().Msg("draft gateway service shutting down")
	return s.Stop()
}

// Stop ends every store subscription.
func (s *Service) Stop() error {
	if err := s.connectionManager.feed.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop event consumer")
	}
	log.Info().Msg("draft gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and state HTTP routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)
	log.Info().Msg("draft gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// BroadcastEvent pushes an event to every socket of a session.
func (s *Service) BroadcastEvent(sessionID string, event *DraftEvent) {
	s.connectionManager.BroadcastToSession(sessionID, event)
}
