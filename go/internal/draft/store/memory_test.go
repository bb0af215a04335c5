package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/draftslots/go/internal/models"
)

func newTestMemory(t *testing.T) (*Memory, string) {
	t.Helper()
	s := NewMemory(clockwork.NewFakeClockAt(time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { _ = s.Close() })

	id, err := s.CreateOrJoinSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateOrJoinSession: %v", err)
	}
	return s, id
}

func waitForVersion(t *testing.T, ch <-chan models.SharedDocument, version uint64) models.SharedDocument {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case doc := <-ch:
			if doc.Version == version {
				return doc
			}
			if doc.Version > version {
				t.Fatalf("got version %d, skipped %d", doc.Version, version)
			}
		case <-timeout:
			t.Fatalf("timed out waiting for version %d", version)
		}
	}
}

func TestMemory_CreateOrJoinSession(t *testing.T) {
	s, id := newTestMemory(t)
	ctx := context.Background()

	if len(id) != roomCodeLength {
		t.Fatalf("room code %q has length %d, want %d", id, len(id), roomCodeLength)
	}

	doc, err := s.ReadSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("new session version = %d, want 1", doc.Version)
	}
	if diff := cmp.Diff(models.NewSharedGameState(), doc.State); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}

	joined, err := s.CreateOrJoinSession(ctx, " "+id+" ")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined != id {
		t.Errorf("join returned %q, want %q", joined, id)
	}
	again, _ := s.ReadSnapshot(ctx, id)
	if again.Version != 1 {
		t.Errorf("joining must not rewrite the session, version = %d", again.Version)
	}

	if _, err := s.CreateOrJoinSession(ctx, "bad id!"); !errors.Is(err, ErrInvalidSessionID) {
		t.Errorf("invalid id error = %v, want ErrInvalidSessionID", err)
	}
	if _, err := s.ReadSnapshot(ctx, "NOPE"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemory_WriteSnapshotVersioning(t *testing.T) {
	s, id := newTestMemory(t)
	ctx := context.Background()

	name := "Alice"
	doc, err := s.WriteSnapshot(ctx, id, models.Patch{
		IfVersion: 1,
		Seats:     map[models.Seat]models.PlayerRecordUpdate{models.SeatOne: {Name: &name}},
	})
	if err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d, want 2", doc.Version)
	}
	if got := doc.Record(models.SeatOne).Name; got != name {
		t.Errorf("seat one name = %q, want %q", got, name)
	}

	_, err = s.WriteSnapshot(ctx, id, models.Patch{
		IfVersion: 1,
		Seats:     map[models.Seat]models.PlayerRecordUpdate{models.SeatTwo: {Name: &name}},
	})
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("stale write error = %v, want ErrVersionConflict", err)
	}
	after, _ := s.ReadSnapshot(ctx, id)
	if after.Record(models.SeatTwo).Name != "" {
		t.Errorf("stale write must not apply")
	}
}

func TestMemory_SubscribeDeliversInOrder(t *testing.T) {
	s, id := newTestMemory(t)
	ctx := context.Background()

	ch := make(chan models.SharedDocument, 16)
	unsubscribe, err := s.Subscribe(ctx, id, func(doc models.SharedDocument) { ch <- doc })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	waitForVersion(t, ch, 1)

	for i := 0; i < 3; i++ {
		if err := s.SetPresence(ctx, id, models.SeatOne, i%2 == 0); err != nil {
			t.Fatalf("SetPresence: %v", err)
		}
	}
	for v := uint64(2); v <= 4; v++ {
		doc := waitForVersion(t, ch, v)
		if want := v%2 == 0; doc.Presence[models.SeatOne] != want {
			t.Errorf("version %d presence = %v, want %v", v, doc.Presence[models.SeatOne], want)
		}
	}
}

func TestMemory_NotifiesAfterWriteReturns(t *testing.T) {
	s, id := newTestMemory(t)
	ctx := context.Background()

	release := make(chan struct{})
	got := make(chan models.SharedDocument, 4)
	unsubscribe, err := s.Subscribe(ctx, id, func(doc models.SharedDocument) {
		<-release
		got <- doc
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	// The handler is blocked, so the write must not wait on it.
	done := make(chan struct{})
	go func() {
		_ = s.SetPresence(ctx, id, models.SeatTwo, true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write blocked on a subscriber")
	}

	close(release)
	waitForVersion(t, got, 2)
}

func TestClaimSeat(t *testing.T) {
	s, id := newTestMemory(t)
	ctx := context.Background()

	tests := []struct {
		client string
		want   models.Seat
	}{
		{client: "client-a", want: models.SeatOne},
		{client: "client-b", want: models.SeatTwo},
		{client: "client-c", want: models.SeatNone},
		{client: "client-a", want: models.SeatOne},
	}
	for _, tt := range tests {
		seat, _, err := ClaimSeat(ctx, s, id, tt.client)
		if err != nil {
			t.Fatalf("ClaimSeat(%s): %v", tt.client, err)
		}
		if seat != tt.want {
			t.Errorf("ClaimSeat(%s) = %d, want %d", tt.client, seat, tt.want)
		}
	}

	if err := ReleaseSeat(ctx, s, id, "client-a"); err != nil {
		t.Fatalf("ReleaseSeat: %v", err)
	}
	seat, doc, err := ClaimSeat(ctx, s, id, "client-c")
	if err != nil {
		t.Fatalf("ClaimSeat after release: %v", err)
	}
	if seat != models.SeatOne {
		t.Errorf("released seat went to %d, want seat one", seat)
	}
	if doc.Occupants[models.SeatOne] != "client-c" {
		t.Errorf("occupant = %q, want client-c", doc.Occupants[models.SeatOne])
	}
}

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := NewRoomCode()
		if err != nil {
			t.Fatalf("NewRoomCode: %v", err)
		}
		normalized, err := NormalizeSessionID(code)
		if err != nil || normalized != code {
			t.Fatalf("room code %q does not survive normalization: %v", code, err)
		}
		seen[code] = true
	}
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
}
