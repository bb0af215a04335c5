package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// SessionStateResponse is the HTTP view of a session, used by clients to
// catch up before or without a socket.
type SessionStateResponse struct {
	SessionID      string                `json:"session_id"`
	Phase          models.Phase          `json:"phase"`
	CurrentTurn    models.Seat           `json:"current_turn_seat"`
	CompletedPicks int                   `json:"completed_picks"`
	TotalPicks     int                   `json:"total_picks"`
	Connections    int                   `json:"connections"`
	Snapshot       models.SharedDocument `json:"snapshot"`
}

// StateHandler handles HTTP requests for session state
type StateHandler struct {
	store       store.SharedStore
	connections *ConnectionManager
	history     EventHistory
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// NewStateHandler creates a new state handler
func NewStateHandler(st store.SharedStore, cm *ConnectionManager) *StateHandler {
	return &StateHandler{store: st, connections: cm}
}

// HandleGetSessionState handles GET /api/sessions/{sessionID}/state
func (h *StateHandler) HandleGetSessionState(w http.ResponseWriter, r *http.Request) {
	sessionID, err := store.NormalizeSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}

	doc, err := h.store.ReadSnapshot(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to get session state")
		http.Error(w, "Failed to get session state", http.StatusInternalServerError)
		return
	}

	resp := SessionStateResponse{
		SessionID:   sessionID,
		Phase:       doc.State.Phase,
		CurrentTurn: doc.State.CurrentTurnSeat,
		TotalPicks:  len(models.Seats) * len(models.AllSlots),
		Snapshot:    doc,
	}
	for _, seat := range models.Seats {
		resp.CompletedPicks += len(doc.Record(seat).RosterSlots.IDs())
	}
	if h.connections != nil {
		resp.Connections = h.connections.ConnectionCount(sessionID)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode session state response")
	}
}

// HandleGetSessionEvents handles GET /api/sessions/{sessionID}/events?limit=N
func (h *StateHandler) HandleGetSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, err := store.NormalizeSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "Invalid session ID", http.StatusBadRequest)
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	evs, err := h.history.History(r.Context(), sessionID, limit)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to read session events")
		http.Error(w, "Failed to read session events", http.StatusBadGateway)
		return
	}
	if evs == nil {
		evs = []*DraftEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(evs); err != nil {
		log.Error().Err(err).Msg("failed to encode session events response")
	}
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r chi.Router) {
	r.Get("/api/sessions/{sessionID}/state", h.HandleGetSessionState)
	if h.history != nil {
		r.Get("/api/sessions/{sessionID}/events", h.HandleGetSessionEvents)
	}
}
