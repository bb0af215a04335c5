package roomsync

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// SharedAdapter syncs one client of a networked room. Writes go to the
// store and nothing else: subscribers only ever see documents that came
// back through the store's change notification, the client's own writes
// included.
type SharedAdapter struct {
	store     store.SharedStore
	sessionID string
	clientID  string
	subs      *subscribers

	mu        sync.RWMutex
	latest    models.SharedDocument
	localSeat models.Seat

	unsubscribe func()
}

// OpenShared attaches clientID to an existing session. The client's seat
// is whatever the document's occupants say; claim it first with
// store.ClaimSeat.
func OpenShared(ctx context.Context, st store.SharedStore, sessionID, clientID string) (*SharedAdapter, error) {
	doc, err := st.ReadSnapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	a := &SharedAdapter{
		store:     st,
		sessionID: sessionID,
		clientID:  clientID,
		subs:      newSubscribers(),
		latest:    doc,
		localSeat: doc.SeatOf(clientID),
	}

	unsubscribe, err := st.Subscribe(ctx, sessionID, a.onChange)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", sessionID, err)
	}
	a.unsubscribe = unsubscribe

	log.Info().
		Str("session_id", sessionID).
		Str("client_id", clientID).
		Int("seat", int(a.localSeat)).
		Msg("joined shared draft")
	return a, nil
}

func (a *SharedAdapter) onChange(doc models.SharedDocument) {
	a.mu.Lock()
	if doc.Version < a.latest.Version {
		a.mu.Unlock()
		return
	}
	a.latest = doc
	a.localSeat = doc.SeatOf(a.clientID)
	a.mu.Unlock()

	a.subs.notify(doc)
}

func (a *SharedAdapter) SessionID() string {
	return a.sessionID
}

func (a *SharedAdapter) LocalSeat() models.Seat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.localSeat
}

func (a *SharedAdapter) Mode() models.SyncMode {
	return models.SyncModeShared
}

// Snapshot reads the store, so decisions are made against the newest
// committed document rather than the last one delivered.
func (a *SharedAdapter) Snapshot(ctx context.Context) (models.SharedDocument, error) {
	return a.store.ReadSnapshot(ctx, a.sessionID)
}

// Commit writes patch and returns once the store accepted it. The local
// view changes only when the notification arrives.
func (a *SharedAdapter) Commit(ctx context.Context, patch models.Patch) error {
	_, err := a.store.WriteSnapshot(ctx, a.sessionID, patch)
	return err
}

func (a *SharedAdapter) CommitPlayerRecord(ctx context.Context, seat models.Seat, upd models.PlayerRecordUpdate) error {
	return a.Commit(ctx, models.SeatPatch(seat, upd))
}

func (a *SharedAdapter) CommitSharedState(ctx context.Context, upd models.SharedStateUpdate) error {
	return a.Commit(ctx, models.Patch{Shared: &upd})
}

func (a *SharedAdapter) Subscribe(fn func(models.SharedDocument)) func() {
	return a.subs.add(fn)
}

// Close stops notifications. The store belongs to the caller.
func (a *SharedAdapter) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.subs.clear()
	return nil
}
