package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// EventSink receives every derived event except snapshots, e.g. a
// durable journal.
type EventSink interface {
	Publish(ctx context.Context, event *DraftEvent) error
}

// EventHistory reads back what an EventSink stored.
type EventHistory interface {
	History(ctx context.Context, sessionID string, limit int) ([]*DraftEvent, error)
}

// broadcaster is the part of ConnectionManager the consumer needs.
type broadcaster interface {
	BroadcastToSession(sessionID string, event *DraftEvent)
}

// EventConsumer follows session documents in the shared store and turns
// every new version into draft events for WebSocket clients.
type EventConsumer struct {
	store store.SharedStore
	out   broadcaster
	sink  EventSink
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]*watch
	stopped  bool
}

type watch struct {
	refs        int
	unsubscribe func()

	mu   sync.Mutex
	last *models.SharedDocument
}

// NewEventConsumer creates a consumer that publishes through out.
func NewEventConsumer(st store.SharedStore, out broadcaster, clock clockwork.Clock) *EventConsumer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &EventConsumer{
		store:    st,
		out:      out,
		clock:    clock,
		sessions: make(map[string]*watch),
	}
}

// Watch starts following sessionID. Calls are counted; the subscription
// ends when Unwatch has been called as many times.
func (ec *EventConsumer) Watch(ctx context.Context, sessionID string) error {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.stopped {
		return store.ErrClosed
	}
	if w, ok := ec.sessions[sessionID]; ok {
		w.refs++
		return nil
	}

	w := &watch{refs: 1}
	unsubscribe, err := ec.store.Subscribe(ctx, sessionID, func(doc models.SharedDocument) {
		ec.process(sessionID, w, doc)
	})
	if err != nil {
		return fmt.Errorf("subscribe to session %s: %w", sessionID, err)
	}
	w.unsubscribe = unsubscribe
	ec.sessions[sessionID] = w

	log.Debug().Str("session_id", sessionID).Msg("watching session")
	return nil
}

// Unwatch releases one Watch of sessionID.
func (ec *EventConsumer) Unwatch(sessionID string) {
	ec.mu.Lock()
	w, ok := ec.sessions[sessionID]
	if !ok {
		ec.mu.Unlock()
		return
	}
	w.refs--
	if w.refs > 0 {
		ec.mu.Unlock()
		return
	}
	delete(ec.sessions, sessionID)
	ec.mu.Unlock()

	w.unsubscribe()
	log.Debug().Str("session_id", sessionID).Msg("stopped watching session")
}

// Watching returns the number of sessions being followed.
func (ec *EventConsumer) Watching() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.sessions)
}

func (ec *EventConsumer) process(sessionID string, w *watch, doc models.SharedDocument) {
	w.mu.Lock()
	prev := w.last
	if prev != nil && doc.Version <= prev.Version {
		w.mu.Unlock()
		return
	}
	next := doc.Clone()
	w.last = &next
	w.mu.Unlock()

	evs, err := deriveEvents(prev, doc, ec.clock.Now())
	if err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Uint64("version", doc.Version).
			Msg("failed to derive draft events")
		return
	}
	for _, ev := range evs {
		ec.out.BroadcastToSession(sessionID, ev)
	}
	if ec.sink != nil {
		ec.journal(evs)
	}

	log.Debug().
		Str("session_id", sessionID).
		Uint64("version", doc.Version).
		Int("events", len(evs)).
		Msg("processed session document")
}

const sinkTimeout = 5 * time.Second

func (ec *EventConsumer) journal(evs []*DraftEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	for _, ev := range evs {
		if ev.Type == EventTypeSnapshot {
			continue
		}
		if err := ec.sink.Publish(ctx, ev); err != nil {
			log.Error().
				Err(err).
				Str("event_id", ev.ID).
				Str("event_type", string(ev.Type)).
				Msg("failed to journal draft event")
		}
	}
}

// Stop ends every subscription.
func (ec *EventConsumer) Stop() error {
	log.Info().Msg("stopping event consumer")

	ec.mu.Lock()
	ec.stopped = true
	sessions := ec.sessions
	ec.sessions = make(map[string]*watch)
	ec.mu.Unlock()

	for _, w := range sessions {
		w.unsubscribe()
	}
	return nil
}
