package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/sqlutil"
)

type Config struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // Keepalive for the listener connection
	// ResyncInterval re-reads watched sessions in case a notification was
	// lost while the listener reconnected.
	ResyncInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		NotifyChannel:  "draft_sessions",
		PingInterval:   90 * time.Second,
		ResyncInterval: 30 * time.Second,
	}
}

// Store is a SharedStore on a Postgres table. Writes lock the session row,
// and commits fan out through LISTEN/NOTIFY to every node.
type Store struct {
	db       *sql.DB
	queries  *Queries
	listener *pq.Listener
	clock    clockwork.Clock
	cfg      Config
	fanout   *store.Fanout

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
}

var _ store.SharedStore = (*Store)(nil)

// New ensures the schema and starts listening for session notifications.
func New(ctx context.Context, db *sql.DB, cfg Config, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for session notifications")

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:       db,
		queries:  newQueries(db),
		listener: l,
		clock:    clock,
		cfg:      cfg,
		fanout:   store.NewFanout(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.listen(runCtx)
	return s, nil
}

func (s *Store) listen(ctx context.Context) {
	defer close(s.done)

	pingTicker := s.clock.NewTicker(s.cfg.PingInterval)
	resyncTicker := s.clock.NewTicker(s.cfg.ResyncInterval)
	defer pingTicker.Stop()
	defer resyncTicker.Stop()

	watched := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-s.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			watched[note.Extra] = true
			s.deliver(ctx, note.Extra)
		case <-resyncTicker.Chan():
			for id := range watched {
				if s.fanout.Count(id) == 0 {
					delete(watched, id)
					continue
				}
				s.deliver(ctx, id)
			}
		case <-pingTicker.Chan():
			if err := s.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// deliver reads the committed document and hands it to local subscribers.
func (s *Store) deliver(ctx context.Context, sessionID string) {
	if s.fanout.Count(sessionID) == 0 {
		return
	}
	doc, err := s.ReadSnapshot(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to read notified session")
		return
	}
	s.fanout.Publish(doc)
}

func (s *Store) CreateOrJoinSession(ctx context.Context, sessionID string) (string, error) {
	if s.isClosed() {
		return "", store.ErrClosed
	}

	generated := sessionID == ""
	for {
		id := sessionID
		if generated {
			code, err := store.NewRoomCode()
			if err != nil {
				return "", err
			}
			id = code
		} else {
			normalized, err := store.NormalizeSessionID(sessionID)
			if err != nil {
				return "", err
			}
			id = normalized
		}

		doc := models.NewSharedDocument(id)
		doc.Version = 1
		doc.UpdatedAt = s.clock.Now().UTC()
		data, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("marshal document: %w", err)
		}

		created, err := s.queries.InsertSession(ctx, sessionRow{
			ID:        id,
			Version:   int64(doc.Version),
			Document:  data,
			UpdatedAt: doc.UpdatedAt,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create session %s: %w", id, err)
		}
		if created {
			log.Info().Str("session_id", id).Msg("created draft session")
			return id, nil
		}
		if !generated {
			return id, nil
		}
	}
}

func (s *Store) ReadSnapshot(ctx context.Context, sessionID string) (models.SharedDocument, error) {
	if s.isClosed() {
		return models.SharedDocument{}, store.ErrClosed
	}
	row, err := s.queries.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SharedDocument{}, store.ErrSessionNotFound
		}
		return models.SharedDocument{}, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return decode(row)
}

func (s *Store) WriteSnapshot(ctx context.Context, sessionID string, patch models.Patch) (models.SharedDocument, error) {
	if s.isClosed() {
		return models.SharedDocument{}, store.ErrClosed
	}

	var next models.SharedDocument
	err := sqlutil.Run(ctx, s.db, newTxQueries, func(q *Queries) error {
		row, err := q.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrSessionNotFound
			}
			return fmt.Errorf("failed to lock session %s: %w", sessionID, err)
		}
		doc, err := decode(row)
		if err != nil {
			return err
		}

		next, err = patch.ApplyTo(doc)
		if err != nil {
			return err
		}
		next.UpdatedAt = s.clock.Now().UTC()

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		if err := q.UpdateSession(ctx, sessionRow{
			ID:        sessionID,
			Version:   int64(next.Version),
			Document:  data,
			UpdatedAt: next.UpdatedAt,
		}); err != nil {
			return fmt.Errorf("failed to update session %s: %w", sessionID, err)
		}
		return q.NotifySession(ctx, s.cfg.NotifyChannel, sessionID)
	})
	if err != nil {
		return models.SharedDocument{}, err
	}
	return next, nil
}

func (s *Store) Subscribe(ctx context.Context, sessionID string, fn func(models.SharedDocument)) (func(), error) {
	doc, err := s.ReadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	remove, ok := s.fanout.Add(sessionID, fn)
	if !ok {
		return nil, store.ErrClosed
	}
	s.fanout.Publish(doc)
	return remove, nil
}

func (s *Store) SetPresence(ctx context.Context, sessionID string, seat models.Seat, connected bool) error {
	_, err := s.WriteSnapshot(ctx, sessionID, models.Patch{
		Presence: map[models.Seat]bool{seat: connected},
	})
	return err
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the listener. The *sql.DB belongs to the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	s.fanout.Close()
	return s.listener.Close()
}

func decode(row sessionRow) (models.SharedDocument, error) {
	var doc models.SharedDocument
	if err := json.Unmarshal(row.Document, &doc); err != nil {
		return models.SharedDocument{}, fmt.Errorf("unmarshal session %s: %w", row.ID, err)
	}
	doc.Version = uint64(row.Version)
	if doc.Seats == nil {
		doc.Seats = map[models.Seat]models.PlayerRecord{}
	}
	if doc.Occupants == nil {
		doc.Occupants = map[models.Seat]string{}
	}
	if doc.Presence == nil {
		doc.Presence = map[models.Seat]bool{}
	}
	return doc, nil
}
