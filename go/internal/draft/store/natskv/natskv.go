package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// Config holds configuration for the JetStream key-value store
type Config struct {
	URL            string
	DocumentBucket string
	PresenceBucket string
	// PresenceTTL is how long a seat stays present without a heartbeat.
	PresenceTTL   time.Duration
	History       uint8
	Replicas      int
	MaxReconnects int
	ReconnectWait time.Duration
	// WriteRetries bounds retries of unconditional writes that lose a race.
	WriteRetries int
}

// DefaultConfig returns default key-value store configuration
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		DocumentBucket: "DRAFT_SESSIONS",
		PresenceBucket: "DRAFT_PRESENCE",
		PresenceTTL:    30 * time.Second,
		History:        5,
		Replicas:       1,
		MaxReconnects:  -1, // Infinite
		ReconnectWait:  2 * time.Second,
		WriteRetries:   10,
	}
}

// Store is a SharedStore backed by JetStream key-value buckets. The session
// document lives under its session id; optimistic concurrency uses the KV
// revision of the last read.
type Store struct {
	nc       *nats.Conn
	ownsConn bool
	docs     jetstream.KeyValue
	presence jetstream.KeyValue
	clock    clockwork.Clock
	cfg      Config
	fanout   *store.Fanout

	mu         sync.Mutex
	watchers   map[string]*sessionWatch
	heartbeats map[string]context.CancelFunc
	closed     bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type sessionWatch struct {
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
}

var _ store.SharedStore = (*Store)(nil)

// New connects to NATS and ensures the buckets exist.
func New(ctx context.Context, cfg Config, clock clockwork.Clock) (*Store, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s, err := NewWithConn(ctx, nc, cfg, clock)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// NewWithConn uses an existing connection, which Close leaves open.
func NewWithConn(ctx context.Context, nc *nats.Conn, cfg Config, clock clockwork.Clock) (*Store, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	docs, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.DocumentBucket,
		Description: "Draft session documents",
		History:     cfg.History,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure document bucket: %w", err)
	}

	presence, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.PresenceBucket,
		Description: "Draft seat heartbeats",
		TTL:         cfg.PresenceTTL,
		Storage:     jetstream.MemoryStorage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure presence bucket: %w", err)
	}

	log.Info().
		Str("documents", cfg.DocumentBucket).
		Str("presence", cfg.PresenceBucket).
		Dur("presence_ttl", cfg.PresenceTTL).
		Msg("JetStream key-value store ready")

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		nc:         nc,
		docs:       docs,
		presence:   presence,
		clock:      clock,
		cfg:        cfg,
		fanout:     store.NewFanout(),
		watchers:   make(map[string]*sessionWatch),
		heartbeats: make(map[string]context.CancelFunc),
		runCtx:     runCtx,
		cancel:     cancel,
	}

	s.wg.Add(1)
	go s.reapPresence(runCtx)
	return s, nil
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

		_, err = s.docs.Create(ctx, id, data)
		switch {
		case err == nil:
			log.Info().Str("session_id", id).Msg("created draft session")
			return id, nil
		case errors.Is(err, jetstream.ErrKeyExists):
			if generated {
				continue
			}
			return id, nil
		default:
			return "", fmt.Errorf("create session %s: %w", id, err)
		}
	}
}

func (s *Store) ReadSnapshot(ctx context.Context, sessionID string) (models.SharedDocument, error) {
	doc, _, err := s.read(ctx, sessionID)
	return doc, err
}

func (s *Store) read(ctx context.Context, sessionID string) (models.SharedDocument, uint64, error) {
	if s.isClosed() {
		return models.SharedDocument{}, 0, store.ErrClosed
	}
	entry, err := s.docs.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return models.SharedDocument{}, 0, store.ErrSessionNotFound
		}
		return models.SharedDocument{}, 0, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	doc, err := decode(entry)
	if err != nil {
		return models.SharedDocument{}, 0, err
	}
	return doc, entry.Revision(), nil
}

// WriteSnapshot applies patch with a compare-and-set on the KV revision.
// Conditional patches surface a lost race as models.ErrVersionConflict;
// unconditional ones are re-applied to the newer document.
func (s *Store) WriteSnapshot(ctx context.Context, sessionID string, patch models.Patch) (models.SharedDocument, error) {
	for attempt := 0; ; attempt++ {
		doc, revision, err := s.read(ctx, sessionID)
		if err != nil {
			return models.SharedDocument{}, err
		}
		next, err := patch.ApplyTo(doc)
		if err != nil {
			return models.SharedDocument{}, err
		}
		next.UpdatedAt = s.clock.Now().UTC()

		data, err := json.Marshal(next)
		if err != nil {
			return models.SharedDocument{}, fmt.Errorf("marshal document: %w", err)
		}

		_, err = s.docs.Update(ctx, sessionID, data, revision)
		if err == nil {
			return next, nil
		}
		if !isWrongRevision(err) {
			return models.SharedDocument{}, fmt.Errorf("update session %s: %w", sessionID, err)
		}
		if patch.IfVersion != 0 {
			return models.SharedDocument{}, fmt.Errorf("%w: session %s moved past revision %d", models.ErrVersionConflict, sessionID, revision)
		}
		if attempt >= s.cfg.WriteRetries {
			return models.SharedDocument{}, fmt.Errorf("update session %s: %w", sessionID, models.ErrVersionConflict)
		}
		log.Debug().Str("session_id", sessionID).Int("attempt", attempt+1).Msg("document revision moved, re-applying patch")
	}
}

func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence {
		return true
	}
	return errors.Is(err, jetstream.ErrKeyExists)
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
	if err := s.ensureWatcher(sessionID); err != nil {
		remove()
		return nil, err
	}
	s.fanout.Publish(doc)

	return func() {
		remove()
		s.releaseWatcher(sessionID)
	}, nil
}

func (s *Store) ensureWatcher(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.watchers[sessionID]; ok {
		return nil
	}

	// The watch outlives the request that started it.
	ctx, cancel := context.WithCancel(s.runCtx)
	w, err := s.docs.Watch(ctx, sessionID, jetstream.UpdatesOnly())
	if err != nil {
		cancel()
		return fmt.Errorf("watch session %s: %w", sessionID, err)
	}
	s.watchers[sessionID] = &sessionWatch{watcher: w, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-w.Updates():
				if !ok {
					return
				}
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}
				doc, err := decode(entry)
				if err != nil {
					log.Error().Err(err).Str("session_id", sessionID).Msg("failed to decode session document")
					continue
				}
				s.fanout.Publish(doc)
			}
		}
	}()

	log.Debug().Str("session_id", sessionID).Msg("watching draft session")
	return nil
}

func (s *Store) releaseWatcher(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fanout.Count(sessionID) > 0 {
		return
	}
	if sw, ok := s.watchers[sessionID]; ok {
		sw.stop(sessionID)
		delete(s.watchers, sessionID)
	}
}

func (sw *sessionWatch) stop(sessionID string) {
	sw.cancel()
	if err := sw.watcher.Stop(); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to stop watcher")
	}
}

// SetPresence records the seat in the document and keeps a heartbeat key
// alive while connected. A node that dies stops refreshing the key, and the
// reaper then marks the seat disconnected.
func (s *Store) SetPresence(ctx context.Context, sessionID string, seat models.Seat, connected bool) error {
	key := presenceKey(sessionID, seat)

	s.mu.Lock()
	if stop, ok := s.heartbeats[key]; ok {
		stop()
		delete(s.heartbeats, key)
	}
	s.mu.Unlock()

	if connected {
		if _, err := s.presence.Put(ctx, key, []byte(s.clock.Now().UTC().Format(time.RFC3339))); err != nil {
			return fmt.Errorf("put presence %s: %w", key, err)
		}
		s.startHeartbeat(key)
	} else if err := s.presence.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("failed to delete presence key")
	}

	_, err := s.WriteSnapshot(ctx, sessionID, models.Patch{
		Presence: map[models.Seat]bool{seat: connected},
	})
	return err
}

func (s *Store) startHeartbeat(key string) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return
	}
	s.heartbeats[key] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ticker := s.clock.NewTicker(s.cfg.PresenceTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if _, err := s.presence.Put(ctx, key, []byte(s.clock.Now().UTC().Format(time.RFC3339))); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Str("key", key).Msg("presence heartbeat failed")
				}
			}
		}
	}()
}

// reapPresence clears seats whose heartbeat key expired, for every session
// this node is watching.
func (s *Store) reapPresence(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(s.cfg.PresenceTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		s.mu.Lock()
		sessions := make([]string, 0, len(s.watchers))
		for id := range s.watchers {
			sessions = append(sessions, id)
		}
		s.mu.Unlock()

		for _, id := range sessions {
			doc, err := s.ReadSnapshot(ctx, id)
			if err != nil {
				continue
			}
			for _, seat := range models.Seats {
				if !doc.Presence[seat] {
					continue
				}
				_, err := s.presence.Get(ctx, presenceKey(id, seat))
				if !errors.Is(err, jetstream.ErrKeyNotFound) {
					continue
				}
				log.Info().Str("session_id", id).Int("seat", int(seat)).Msg("presence expired")
				if _, err := s.WriteSnapshot(ctx, id, models.Patch{
					Presence: map[models.Seat]bool{seat: false},
				}); err != nil {
					log.Warn().Err(err).Str("session_id", id).Msg("failed to clear expired presence")
				}
			}
		}
	}
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops watchers and heartbeats, and closes the connection if New opened it.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, sw := range s.watchers {
		sw.stop(id)
		delete(s.watchers, id)
	}
	for key, stop := range s.heartbeats {
		stop()
		delete(s.heartbeats, key)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.fanout.Close()
	if s.ownsConn {
		s.nc.Close()
	}
	return nil
}

func presenceKey(sessionID string, seat models.Seat) string {
	return fmt.Sprintf("%s.%d", sessionID, seat)
}

func decode(entry jetstream.KeyValueEntry) (models.SharedDocument, error) {
	var doc models.SharedDocument
	if err := json.Unmarshal(entry.Value(), &doc); err != nil {
		return models.SharedDocument{}, fmt.Errorf("unmarshal session %s: %w", entry.Key(), err)
	}
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
