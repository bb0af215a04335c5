package store

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Memory is an in-process SharedStore. It behaves like the networked
// stores: notifications are asynchronous and carry full documents.
type Memory struct {
	clock  clockwork.Clock
	fanout *Fanout

	mu     sync.Mutex
	docs   map[string]models.SharedDocument
	closed bool
}

// NewMemory creates an empty in-process store.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:  clock,
		fanout: NewFanout(),
		docs:   make(map[string]models.SharedDocument),
	}
}

var _ SharedStore = (*Memory)(nil)

func (m *Memory) CreateOrJoinSession(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	if sessionID == "" {
		for {
			code, err := NewRoomCode()
			if err != nil {
				return "", err
			}
			if _, taken := m.docs[code]; !taken {
				sessionID = code
				break
			}
		}
	} else {
		id, err := NormalizeSessionID(sessionID)
		if err != nil {
			return "", err
		}
		sessionID = id
	}

	if _, ok := m.docs[sessionID]; !ok {
		doc := models.NewSharedDocument(sessionID)
		doc.Version = 1
		doc.UpdatedAt = m.clock.Now()
		m.docs[sessionID] = doc
		log.Info().Str("session_id", sessionID).Msg("created draft session")
	}
	return sessionID, nil
}

func (m *Memory) ReadSnapshot(ctx context.Context, sessionID string) (models.SharedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.SharedDocument{}, ErrClosed
	}
	doc, ok := m.docs[sessionID]
	if !ok {
		return models.SharedDocument{}, ErrSessionNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) WriteSnapshot(ctx context.Context, sessionID string, patch models.Patch) (models.SharedDocument, error) {
	if err := ctx.Err(); err != nil {
		return models.SharedDocument{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.SharedDocument{}, ErrClosed
	}
	doc, ok := m.docs[sessionID]
	if !ok {
		m.mu.Unlock()
		return models.SharedDocument{}, ErrSessionNotFound
	}
	next, err := patch.ApplyTo(doc)
	if err != nil {
		m.mu.Unlock()
		return models.SharedDocument{}, err
	}
	next.UpdatedAt = m.clock.Now()
	m.docs[sessionID] = next
	// Published under the lock so queues see versions in order.
	m.fanout.Publish(next)
	m.mu.Unlock()

	return next.Clone(), nil
}

func (m *Memory) Subscribe(ctx context.Context, sessionID string, fn func(models.SharedDocument)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	doc, ok := m.docs[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	remove, ok := m.fanout.Add(sessionID, fn)
	if !ok {
		return nil, ErrClosed
	}
	// Existing subscribers already saw this version and drop it.
	m.fanout.Publish(doc)
	return remove, nil
}

func (m *Memory) SetPresence(ctx context.Context, sessionID string, seat models.Seat, connected bool) error {
	_, err := m.WriteSnapshot(ctx, sessionID, models.Patch{
		Presence: map[models.Seat]bool{seat: connected},
	})
	return err
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.fanout.Close()
	return nil
}
