package roomsync

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/draftslots/go/internal/draft/store"
	"github.com/mcdev12/draftslots/go/internal/models"
)

// gatedStore holds every change notification until open is closed.
type gatedStore struct {
	store.SharedStore
	open chan struct{}
}

func (g *gatedStore) Subscribe(ctx context.Context, sessionID string, fn func(models.SharedDocument)) (func(), error) {
	return g.SharedStore.Subscribe(ctx, sessionID, func(doc models.SharedDocument) {
		<-g.open
		fn(doc)
	})
}

func TestSharedAdapter_NoLocalEcho(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(nil)
	defer mem.Close()
	gated := &gatedStore{SharedStore: mem, open: make(chan struct{})}

	id, err := mem.CreateOrJoinSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}
	seat, _, err := store.ClaimSeat(ctx, mem, id, "client-a")
	if err != nil || seat != models.SeatOne {
		t.Fatalf("ClaimSeat = %d, %v", seat, err)
	}

	a, err := OpenShared(ctx, gated, id, "client-a")
	if err != nil {
		t.Fatalf("OpenShared: %v", err)
	}
	defer a.Close()

	if a.LocalSeat() != models.SeatOne || a.Mode() != models.SyncModeShared || a.SessionID() != id {
		t.Fatalf("seat=%d mode=%s session=%s", a.LocalSeat(), a.Mode(), a.SessionID())
	}

	got := make(chan models.SharedDocument, 8)
	a.Subscribe(func(doc models.SharedDocument) { got <- doc })

	if err := a.CommitPlayerRecord(ctx, models.SeatOne, models.PlayerRecordUpdate{Name: models.Ptr("Ann")}); err != nil {
		t.Fatalf("CommitPlayerRecord: %v", err)
	}

	select {
	case doc := <-got:
		t.Fatalf("notified with v%d before the store delivered", doc.Version)
	case <-time.After(50 * time.Millisecond):
	}

	// Snapshot reads through to the store even while delivery is held.
	doc, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if doc.Record(models.SeatOne).Name != "Ann" {
		t.Errorf("snapshot does not show the committed write")
	}

	close(gated.open)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case doc := <-got:
			if doc.Record(models.SeatOne).Name == "Ann" {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the store notification")
		}
	}
}

func TestSharedAdapter_TracksSeat(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(nil)
	defer mem.Close()

	id, err := mem.CreateOrJoinSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}

	a, err := OpenShared(ctx, mem, id, "client-b")
	if err != nil {
		t.Fatalf("OpenShared: %v", err)
	}
	defer a.Close()
	if a.LocalSeat() != models.SeatNone {
		t.Fatalf("unclaimed client seat = %d, want none", a.LocalSeat())
	}

	seen := make(chan models.SharedDocument, 8)
	a.Subscribe(func(doc models.SharedDocument) { seen <- doc })

	if _, _, err := store.ClaimSeat(ctx, mem, id, "client-a"); err != nil {
		t.Fatalf("ClaimSeat a: %v", err)
	}
	if _, _, err := store.ClaimSeat(ctx, mem, id, "client-b"); err != nil {
		t.Fatalf("ClaimSeat b: %v", err)
	}

	timeout := time.After(2 * time.Second)
	for a.LocalSeat() != models.SeatTwo {
		select {
		case <-seen:
		case <-timeout:
			t.Fatalf("seat = %d, want 2", a.LocalSeat())
		}
	}

	if _, err := OpenShared(ctx, mem, "NOPE42", "client-c"); err == nil {
		t.Error("OpenShared on a missing session succeeded")
	}
}
