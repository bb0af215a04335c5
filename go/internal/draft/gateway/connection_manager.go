package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/events"
	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// ConnectionManager manages WebSocket connections for draft sessions
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessionConnections map[string]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	store    store.SharedStore
	feed     *EventConsumer
	clock    clockwork.Clock

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID        string
	ClientID  string
	SessionID string
	// Seat is the seat the client held when it connected.
	Seat    models.Seat
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
	lastPing    atomic.Int64
	// baseVersion is the document version sent when the socket opened.
	baseVersion uint64
	// lastVersion is the newest snapshot version queued to this connection.
	lastVersion atomic.Uint64
	closeOnce   sync.Once
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	SessionID string
	Event     *DraftEvent
	// ExcludeConnID, when set, skips the sending connection.
	ExcludeConnID string
}

// clientMessage is what a client may send over its socket.
type clientMessage struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

const maxAnnouncementLen = 280

// errSessionUnavailable marks failures that happen before the upgrade, while
// the HTTP response can still be written.
var errSessionUnavailable = errors.New("session unavailable")

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, st store.SharedStore, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 64
	}
	cm := &ConnectionManager{
		sessionConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		store:       st,
		clock:       clock,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
	cm.feed = NewEventConsumer(st, cm, clock)
	return cm
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and attaches
// it to the session feed.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, clientID, sessionID string) error {
	doc, err := cm.store.ReadSnapshot(r.Context(), sessionID)
	if err != nil {
		return fmt.Errorf("%w: %w", errSessionUnavailable, err)
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		SessionID:   sessionID,
		Seat:        doc.SeatOf(clientID),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
	}
	connection.lastPing.Store(cm.clock.Now().UnixNano())

	// Queue the current document before any broadcast can reach the connection.
	if ev, err := NewDraftEvent(sessionID, EventTypeSnapshot, doc.Version, cm.clock.Now(), events.SnapshotPayload{Snapshot: doc}); err == nil {
		if data, err := json.Marshal(ev); err == nil {
			connection.Send <- data
			connection.baseVersion = doc.Version
			connection.lastVersion.Store(doc.Version)
		}
	}

	if err := cm.registerConnection(connection); err != nil {
		_ = conn.Close()
		return err
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("client_id", clientID).
		Str("session_id", sessionID).
		Int("seat", int(connection.Seat)).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	if err := cm.feed.Watch(context.Background(), conn.SessionID); err != nil {
		return fmt.Errorf("failed to watch session: %w", err)
	}

	cm.mu.Lock()
	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true
	total := len(cm.sessionConnections[conn.SessionID])
	cm.mu.Unlock()
	if conn.Seat.Valid() {
		cm.setPresence(conn.SessionID, conn.Seat, true)
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("total_connections", total).
		Msg("connection registered")
	return nil
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.sessionConnections[conn.SessionID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	close(conn.Send)

	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}
	seatStillConnected := false
	for other := range connections {
		if other.Seat == conn.Seat {
			seatStillConnected = true
			break
		}
	}
	cm.mu.Unlock()

	if conn.Seat.Valid() && !seatStillConnected {
		cm.setPresence(conn.SessionID, conn.Seat, false)
	}
	cm.feed.Unwatch(conn.SessionID)

	log.Info().
		Str("connection_id", conn.ID).
		Str("client_id", conn.ClientID).
		Str("session_id", conn.SessionID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) setPresence(sessionID string, seat models.Seat, connected bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cm.config.WriteTimeout)
	defer cancel()
	if err := cm.store.SetPresence(ctx, sessionID, seat, connected); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID).
			Int("seat", int(seat)).
			Bool("connected", connected).
			Msg("failed to update presence")
	}
}

// BroadcastToSession sends an event to all connections for a session
func (cm *ConnectionManager) BroadcastToSession(sessionID string, event *DraftEvent) {
	cm.enqueue(BroadcastMessage{SessionID: sessionID, Event: event})
}

// BroadcastExcept sends an event to every connection of a session but one
func (cm *ConnectionManager) BroadcastExcept(sessionID, connID string, event *DraftEvent) {
	cm.enqueue(BroadcastMessage{SessionID: sessionID, Event: event, ExcludeConnID: connID})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("session_id", message.SessionID).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.sessionConnections[message.SessionID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	var targetConnections []*Connection
	for conn := range connections {
		if conn.ID == message.ExcludeConnID {
			continue
		}
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	sent := 0
	for _, conn := range targetConnections {
		if conn.stale(message.Event) {
			continue
		}
		if !conn.trySend(eventData) {
			// Connection is slow or dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("client_id", conn.ClientID).
				Msg("connection send buffer full, closing connection")
			conn.close()
			continue
		}
		if message.Event.Type == EventTypeSnapshot {
			conn.lastVersion.Store(message.Event.Version)
		}
		sent++
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("session_id", message.SessionID).
		Int("connections", sent).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of sockets open for a session.
func (cm *ConnectionManager) ConnectionCount(sessionID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.sessionConnections[sessionID])
}

// ConnectionStats is a summary of open sockets.
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{SessionConnections: make(map[string]int)}
	for sessionID, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[sessionID] = len(connections)
	}
	stats.ActiveSessions = len(cm.sessionConnections)
	return stats
}

// trySend queues data without blocking. It reports false when the buffer
// is full. The send channel may already be closed by unregister.
func (c *Connection) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// stale reports whether ev describes a version the client already has.
func (c *Connection) stale(ev *DraftEvent) bool {
	if ev.Version == 0 {
		return false
	}
	if ev.Type == EventTypeSnapshot {
		return ev.Version <= c.lastVersion.Load()
	}
	return ev.Version <= c.baseVersion
}

func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.Manager.unregisterConnection(c)
		_ = c.Conn.Close()
	})
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.lastPing.Store(c.Manager.clock.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes messages received from the client. Only
// announcements are relayed, and never back to the sender.
func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case EventTypeAnnouncement:
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			return
		}
		if len(text) > maxAnnouncementLen {
			text = text[:maxAnnouncementLen]
		}
		now := c.Manager.clock.Now()
		ev, err := NewDraftEvent(c.SessionID, EventTypeAnnouncement, 0, now, events.AnnouncementPayload{
			Seat:   c.Seat,
			Text:   text,
			SentAt: now,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to build announcement")
			return
		}
		c.Manager.BroadcastExcept(c.SessionID, c.ID, ev)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("client_id", c.ClientID).
			Str("type", string(msg.Type)).
			Msg("received client message")
	}
}
