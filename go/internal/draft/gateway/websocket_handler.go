package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
)

// WebSocketHandler handles WebSocket upgrade requests for draft sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleSessionConnection handles /ws/{sessionID}?client_id=...
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionID, err := store.NormalizeSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}

	// Clients without an id watch as observers.
	clientID := r.URL.Query().Get("client_id")

	if err := h.connectionManager.UpgradeConnection(w, r, clientID, sessionID); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, errSessionUnavailable):
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		}
		// Otherwise the upgrader has already replied or the socket is hijacked.
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes on r
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/stats", h.HandleConnectionStats)
	r.Get("/ws/{sessionID}", h.HandleSessionConnection)
}
