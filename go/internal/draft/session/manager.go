package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft"
	"github.com/mcdev12/draftslots/go/internal/draft/roomsync"
	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

var (
	// ErrNotJoined is returned for a (session, client) pair with no open App.
	ErrNotJoined = errors.New("client has not joined this session")
	// ErrModeUnavailable is returned when the backend for a mode is not configured.
	ErrModeUnavailable = errors.New("sync mode not available")
	ErrInvalidMode     = errors.New("invalid sync mode")
)

// DefaultLocalNamespace is the seat store namespace of a local game joined
// without a session id.
const DefaultLocalNamespace = "LOCAL"

// Config holds configuration for the session manager
type Config struct {
	DefaultMode models.SyncMode
	// IdleTimeout closes Apps that saw no request for this long. Zero disables reaping.
	IdleTimeout time.Duration
	// App is the template every App is built from. Its Rand and Planner
	// are ignored; each App gets its own.
	App draft.Config
}

// DefaultConfig returns default configuration for the session manager
func DefaultConfig() Config {
	return Config{
		DefaultMode: models.SyncModeShared,
		IdleTimeout: 30 * time.Minute,
	}
}

// JoinRequest opens or attaches to a session.
type JoinRequest struct {
	SessionID string
	ClientID  string
	Mode      models.SyncMode
}

// Joined describes the App a client is now bound to.
type Joined struct {
	SessionID string
	ClientID  string
	Mode      models.SyncMode
	Seat      models.Seat
	Snapshot  models.SharedDocument
}

type key struct {
	sessionID string
	clientID  string
}

type entry struct {
	app      *draft.App
	adapter  draft.SyncAdapter
	mode     models.SyncMode
	lastUsed time.Time
}

// Manager opens sessions and keeps one draft.App per (session, client).
// Local sessions have a single App driving both seats; its client id is empty.
type Manager struct {
	shared store.SharedStore
	seats  seatstore.SeatStore
	config Config
	clock  clockwork.Clock

	mu      sync.Mutex
	entries map[key]*entry
	closed  bool
}

// NewManager creates a session manager. Either backend may be nil, which
// disables the matching mode.
func NewManager(shared store.SharedStore, seats seatstore.SeatStore, config Config, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if !config.DefaultMode.Valid() {
		config.DefaultMode = models.SyncModeShared
		if shared == nil {
			config.DefaultMode = models.SyncModeLocal
		}
	}
	return &Manager{
		shared:  shared,
		seats:   seats,
		config:  config,
		clock:   clock,
		entries: make(map[key]*entry),
	}
}

// Join binds a client to a session, creating either one as needed. A shared
// join claims a free seat when there is one; a repeated join is idempotent.
func (m *Manager) Join(ctx context.Context, req JoinRequest) (Joined, error) {
	mode := req.Mode
	if mode == "" {
		mode = m.config.DefaultMode
	}
	if !mode.Valid() {
		return Joined{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	switch mode {
	case models.SyncModeLocal:
		return m.joinLocal(ctx, req.SessionID)
	default:
		return m.joinShared(ctx, req.SessionID, req.ClientID)
	}
}

func (m *Manager) joinLocal(ctx context.Context, sessionID string) (Joined, error) {
	if m.seats == nil {
		return Joined{}, fmt.Errorf("%w: %s", ErrModeUnavailable, models.SyncModeLocal)
	}
	namespace := DefaultLocalNamespace
	if strings.TrimSpace(sessionID) != "" {
		id, err := store.NormalizeSessionID(sessionID)
		if err != nil {
			return Joined{}, err
		}
		namespace = id
	}

	k := key{sessionID: namespace}
	e, err := m.getOrOpen(k, models.SyncModeLocal, func() (draft.SyncAdapter, error) {
		return roomsync.OpenLocal(ctx, namespace, m.seats)
	})
	if err != nil {
		return Joined{}, err
	}
	return m.joined(ctx, k, e)
}

func (m *Manager) joinShared(ctx context.Context, sessionID, clientID string) (Joined, error) {
	if m.shared == nil {
		return Joined{}, fmt.Errorf("%w: %s", ErrModeUnavailable, models.SyncModeShared)
	}
	if strings.TrimSpace(clientID) == "" {
		clientID = uuid.New().String()
	}

	id, err := m.shared.CreateOrJoinSession(ctx, sessionID)
	if err != nil {
		return Joined{}, fmt.Errorf("failed to open session: %w", err)
	}
	if _, _, err := store.ClaimSeat(ctx, m.shared, id, clientID); err != nil {
		return Joined{}, fmt.Errorf("failed to claim seat: %w", err)
	}

	k := key{sessionID: id, clientID: clientID}
	e, err := m.getOrOpen(k, models.SyncModeShared, func() (draft.SyncAdapter, error) {
		return roomsync.OpenShared(ctx, m.shared, id, clientID)
	})
	if err != nil {
		return Joined{}, err
	}
	return m.joined(ctx, k, e)
}

func (m *Manager) joined(ctx context.Context, k key, e *entry) (Joined, error) {
	doc, err := e.app.Snapshot(ctx)
	if err != nil {
		return Joined{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	seat := e.app.LocalSeat()
	if e.mode == models.SyncModeShared {
		// The adapter may not have seen the claim yet.
		seat = doc.SeatOf(k.clientID)
	}

	log.Info().
		Str("session_id", k.sessionID).
		Str("client_id", k.clientID).
		Str("mode", string(e.mode)).
		Int("seat", int(seat)).
		Msg("client joined draft")

	return Joined{
		SessionID: k.sessionID,
		ClientID:  k.clientID,
		Mode:      e.mode,
		Seat:      seat,
		Snapshot:  doc,
	}, nil
}

func (m *Manager) getOrOpen(k key, mode models.SyncMode, open func() (draft.SyncAdapter, error)) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, store.ErrClosed
	}
	if e, ok := m.entries[k]; ok {
		e.lastUsed = m.clock.Now()
		return e, nil
	}

	adapter, err := open()
	if err != nil {
		return nil, err
	}
	cfg := m.config.App
	cfg.SessionID = k.sessionID
	cfg.Rand = nil
	cfg.Planner = nil

	e := &entry{
		app:      draft.NewApp(adapter, cfg),
		adapter:  adapter,
		mode:     mode,
		lastUsed: m.clock.Now(),
	}
	m.entries[k] = e
	return e, nil
}

// App returns the App a client joined with. Local sessions ignore clientID.
func (m *Manager) App(sessionID, clientID string) (*draft.App, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(sessionID, clientID)
	if !ok {
		return nil, ErrNotJoined
	}
	e.lastUsed = m.clock.Now()
	return e.app, nil
}

// lookup requires m.mu.
func (m *Manager) lookup(sessionID, clientID string) (*entry, bool) {
	id := strings.ToUpper(strings.TrimSpace(sessionID))
	if e, ok := m.entries[key{sessionID: id, clientID: clientID}]; ok {
		return e, true
	}
	if e, ok := m.entries[key{sessionID: id}]; ok && e.mode == models.SyncModeLocal {
		return e, true
	}
	return nil, false
}

// Leave closes a client's App and, in shared mode, gives up its seat.
func (m *Manager) Leave(ctx context.Context, sessionID, clientID string) error {
	m.mu.Lock()
	e, ok := m.lookup(sessionID, clientID)
	if ok {
		for k, v := range m.entries {
			if v == e {
				delete(m.entries, k)
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotJoined
	}

	closeEntry(e)
	if e.mode == models.SyncModeShared {
		if err := store.ReleaseSeat(ctx, m.shared, strings.ToUpper(strings.TrimSpace(sessionID)), clientID); err != nil {
			return fmt.Errorf("failed to release seat: %w", err)
		}
	}
	return nil
}

func closeEntry(e *entry) {
	e.app.Close()
	if err := e.adapter.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close sync adapter")
	}
}

// Count returns the number of open Apps.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Run closes idle Apps until ctx is done. Seats stay claimed, so a client
// that comes back after a reap simply joins again.
func (m *Manager) Run(ctx context.Context) {
	if m.config.IdleTimeout <= 0 {
		<-ctx.Done()
		return
	}
	ticker := m.clock.NewTicker(m.config.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() int {
	cutoff := m.clock.Now().Add(-m.config.IdleTimeout)

	m.mu.Lock()
	var idle []*entry
	for k, e := range m.entries {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			delete(m.entries, k)
			log.Debug().Str("session_id", k.sessionID).Str("client_id", k.clientID).Msg("closing idle draft app")
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		closeEntry(e)
	}
	return len(idle)
}

// Close closes every open App. The backends belong to the caller.
func (m *Manager) Close() {
	m.mu.Lock()
	entries := m.entries
	m.entries = make(map[key]*entry)
	m.closed = true
	m.mu.Unlock()

	for _, e := range entries {
		closeEntry(e)
	}
}
