package natskv

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// These tests need a JetStream enabled server, e.g. `nats-server -js`.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	cfg := DefaultConfig()
	cfg.URL = url
	suffix := uuid.New().String()[:8]
	cfg.DocumentBucket = "TEST_SESSIONS_" + suffix
	cfg.PresenceBucket = "TEST_PRESENCE_" + suffix
	cfg.PresenceTTL = 3 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WriteAndWatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateOrJoinSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}

	got := make(chan models.SharedDocument, 8)
	unsubscribe, err := s.Subscribe(ctx, id, func(doc models.SharedDocument) { got <- doc })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	name := "Alice"
	written, err := s.WriteSnapshot(ctx, id, models.Patch{
		IfVersion: 1,
		Seats:     map[models.Seat]models.PlayerRecordUpdate{models.SeatOne: {Name: &name}},
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if written.Version != 2 {
		t.Fatalf("version = %d, want 2", written.Version)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case doc := <-got:
			if doc.Version < 2 {
				continue
			}
			if doc.Record(models.SeatOne).Name != name {
				t.Fatalf("notified name = %q, want %q", doc.Record(models.SeatOne).Name, name)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for watch notification")
		}
	}
}

func TestStore_StaleWriteConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateOrJoinSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}
	if _, _, err := store.ClaimSeat(ctx, s, id, "client-a"); err != nil {
		t.Fatalf("ClaimSeat: %v", err)
	}

	_, err = s.WriteSnapshot(ctx, id, models.Patch{
		IfVersion: 1,
		Presence:  map[models.Seat]bool{models.SeatOne: true},
	})
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("stale write error = %v, want ErrVersionConflict", err)
	}
}
