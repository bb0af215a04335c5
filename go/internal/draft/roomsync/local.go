package roomsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// LocalAdapter drives a hot-seat game: one client owns both seats. Writes
// apply to memory, each touched seat record is saved to the SeatStore, and
// subscribers are notified before Commit returns. The shared turn and
// phase are never persisted; they are derived again on open.
type LocalAdapter struct {
	namespace string
	seats     seatstore.SeatStore
	subs      *subscribers

	mu  sync.Mutex
	doc models.SharedDocument

	// notifyMu keeps notifications in commit order without holding mu
	// while handlers run.
	notifyMu sync.Mutex
}

var errAdapterClosed = errors.New("sync adapter closed")

// OpenLocal loads both seat records saved under namespace.
func OpenLocal(ctx context.Context, namespace string, seats seatstore.SeatStore) (*LocalAdapter, error) {
	doc := models.NewSharedDocument(namespace)
	doc.Version = 1
	for _, seat := range models.Seats {
		rec, err := seats.LoadSeatRecord(ctx, namespace, seat)
		if err != nil {
			return nil, fmt.Errorf("failed to load seat %d: %w", seat, err)
		}
		if rec != nil {
			doc.Seats[seat] = *rec
		}
	}
	doc.State = restoreState(doc)
	doc.UpdatedAt = time.Now()

	log.Info().
		Str("namespace", namespace).
		Str("phase", string(doc.State.Phase)).
		Int("turn", int(doc.State.CurrentTurnSeat)).
		Msg("opened local draft")

	return &LocalAdapter{
		namespace: namespace,
		seats:     seats,
		subs:      newSubscribers(),
		doc:       doc,
	}, nil
}

// restoreState rebuilds the shared state from the seat records alone.
// Seat one picks first, so the seat with fewer filled slots is on the
// clock, seat one on a tie. A lone nameless seat next to drafted players
// was reset mid-draft and stays in DRAFTING.
func restoreState(doc models.SharedDocument) models.SharedGameState {
	one, two := doc.Record(models.SeatOne), doc.Record(models.SeatTwo)
	st := models.NewSharedGameState()

	if one.Name == "" && two.Name == "" {
		return st
	}
	if one.Name == "" || two.Name == "" {
		if roster.FilledCount(one.RosterSlots)+roster.FilledCount(two.RosterSlots) == 0 {
			return st
		}
		named, reset := models.SeatOne, models.SeatTwo
		if one.Name == "" {
			named, reset = reset, named
		}
		st.Phase = models.PhaseDrafting
		st.CurrentTurnSeat = named
		if roster.IsRosterFull(doc.Record(named).RosterSlots) {
			st.CurrentTurnSeat = reset
		}
		return st
	}
	st.Phase = models.PhaseDrafting
	oneFull, twoFull := roster.IsRosterFull(one.RosterSlots), roster.IsRosterFull(two.RosterSlots)
	switch {
	case oneFull && twoFull:
		st.Phase = models.PhaseComplete
	case oneFull:
		st.CurrentTurnSeat = models.SeatTwo
	case twoFull:
		st.CurrentTurnSeat = models.SeatOne
	case roster.FilledCount(two.RosterSlots) < roster.FilledCount(one.RosterSlots):
		st.CurrentTurnSeat = models.SeatTwo
	}
	return st
}

func (a *LocalAdapter) LocalSeat() models.Seat {
	return models.SeatBoth
}

func (a *LocalAdapter) Mode() models.SyncMode {
	return models.SyncModeLocal
}

func (a *LocalAdapter) Snapshot(ctx context.Context) (models.SharedDocument, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seats == nil {
		return models.SharedDocument{}, errAdapterClosed
	}
	return a.doc.Clone(), nil
}

// Commit applies patch, saves the seats it touched and notifies
// subscribers, all before returning.
func (a *LocalAdapter) Commit(ctx context.Context, patch models.Patch) error {
	a.mu.Lock()
	if a.seats == nil {
		a.mu.Unlock()
		return errAdapterClosed
	}
	next, err := patch.ApplyTo(a.doc)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	for seat, upd := range patch.Seats {
		if err := a.persist(ctx, seat, upd, next.Record(seat)); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	next.UpdatedAt = time.Now()
	a.doc = next

	a.notifyMu.Lock()
	a.mu.Unlock()
	defer a.notifyMu.Unlock()

	a.subs.notify(next)
	return nil
}

func (a *LocalAdapter) persist(ctx context.Context, seat models.Seat, upd models.PlayerRecordUpdate, rec models.PlayerRecord) error {
	if upd.Reset && rec.Name == "" && roster.FilledCount(rec.RosterSlots) == 0 {
		if err := a.seats.ClearSeatRecord(ctx, a.namespace, seat); err != nil {
			return fmt.Errorf("failed to clear seat %d: %w", seat, err)
		}
		return nil
	}
	if err := a.seats.SaveSeatRecord(ctx, a.namespace, seat, rec); err != nil {
		return fmt.Errorf("failed to save seat %d: %w", seat, err)
	}
	return nil
}

func (a *LocalAdapter) CommitPlayerRecord(ctx context.Context, seat models.Seat, upd models.PlayerRecordUpdate) error {
	return a.Commit(ctx, models.SeatPatch(seat, upd))
}

func (a *LocalAdapter) CommitSharedState(ctx context.Context, upd models.SharedStateUpdate) error {
	return a.Commit(ctx, models.Patch{Shared: &upd})
}

func (a *LocalAdapter) Subscribe(fn func(models.SharedDocument)) func() {
	return a.subs.add(fn)
}

// Close drops subscribers. The SeatStore belongs to the caller.
func (a *LocalAdapter) Close() error {
	a.mu.Lock()
	a.seats = nil
	a.mu.Unlock()
	a.subs.clear()
	return nil
}
