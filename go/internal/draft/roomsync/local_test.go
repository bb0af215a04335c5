package roomsync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/draftslots/go/internal/draft/seatstore"
	"github.com/mcdev12/draftslots/go/internal/models"
)

func filled(n int) models.RosterSlots {
	slots := models.NewRosterSlots()
	for _, slot := range models.AllSlots[:n] {
		slots[slot] = &models.PlayerSlot{ExternalID: "p-" + string(slot), DisplayName: string(slot), AssignedSlot: slot}
	}
	return slots
}

func record(name string, slots models.RosterSlots) models.PlayerRecord {
	rec := models.NewPlayerRecord()
	rec.Name = name
	rec.RosterSlots = slots
	return rec
}

func TestLocalAdapter_NotifiesBeforeCommitReturns(t *testing.T) {
	ctx := context.Background()
	a, err := OpenLocal(ctx, "local", seatstore.NewMemory())
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	defer a.Close()

	if a.LocalSeat() != models.SeatBoth || a.Mode() != models.SyncModeLocal {
		t.Fatalf("seat=%d mode=%s", a.LocalSeat(), a.Mode())
	}

	var seen []uint64
	a.Subscribe(func(doc models.SharedDocument) { seen = append(seen, doc.Version) })

	if err := a.CommitPlayerRecord(ctx, models.SeatOne, models.PlayerRecordUpdate{Name: models.Ptr("Ann")}); err != nil {
		t.Fatalf("CommitPlayerRecord: %v", err)
	}
	if diff := cmp.Diff([]uint64{2}, seen); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}

	phase := models.PhaseDrafting
	if err := a.CommitSharedState(ctx, models.SharedStateUpdate{Phase: &phase}); err != nil {
		t.Fatalf("CommitSharedState: %v", err)
	}
	doc, _ := a.Snapshot(ctx)
	if doc.Version != 3 || doc.State.Phase != models.PhaseDrafting {
		t.Errorf("snapshot = v%d %s, want v3 DRAFTING", doc.Version, doc.State.Phase)
	}

	stale := models.SeatPatch(models.SeatTwo, models.PlayerRecordUpdate{Name: models.Ptr("Bo")})
	stale.IfVersion = 2
	if err := a.Commit(ctx, stale); !errors.Is(err, models.ErrVersionConflict) {
		t.Errorf("stale commit error = %v, want ErrVersionConflict", err)
	}
	if len(seen) != 2 {
		t.Errorf("rejected commit notified: %v", seen)
	}
}

func TestLocalAdapter_PersistsSeatRecords(t *testing.T) {
	ctx := context.Background()
	seats := seatstore.NewMemory()

	a, err := OpenLocal(ctx, "local", seats)
	if err != nil {
		t.Fatalf("OpenLocal: %v", err)
	}
	if err := a.CommitPlayerRecord(ctx, models.SeatTwo, models.PlayerRecordUpdate{Name: models.Ptr("Bo"), Slots: filled(2)}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = a.Close()

	if _, err := a.Snapshot(ctx); err == nil {
		t.Error("Snapshot after Close succeeded")
	}

	reopened, err := OpenLocal(ctx, "local", seats)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	doc, _ := reopened.Snapshot(ctx)
	two := doc.Record(models.SeatTwo)
	if two.Name != "Bo" || two.RosterSlots[models.SlotRB] == nil {
		t.Errorf("seat two after reopen = %+v", two)
	}

	// A reset to a blank record removes it from the store.
	if err := reopened.CommitPlayerRecord(ctx, models.SeatTwo, models.PlayerRecordUpdate{Reset: true}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if rec, _ := seats.LoadSeatRecord(ctx, "local", models.SeatTwo); rec != nil {
		t.Errorf("reset record still stored: %+v", rec)
	}
}

func TestRestoreState(t *testing.T) {
	tests := []struct {
		name      string
		one, two  models.PlayerRecord
		wantPhase models.Phase
		wantTurn  models.Seat
	}{
		{"fresh", record("", nil), record("", nil), models.PhaseNameEntry, models.SeatOne},
		{"one name", record("Ann", filled(0)), record("", nil), models.PhaseNameEntry, models.SeatOne},
		{"seat one reset beside a full seat two", record("", nil), record("Bo", filled(8)), models.PhaseDrafting, models.SeatOne},
		{"seat two reset mid-draft", record("Ann", filled(3)), record("", nil), models.PhaseDrafting, models.SeatOne},
		{"seat one reset mid-draft", record("", nil), record("Bo", filled(3)), models.PhaseDrafting, models.SeatTwo},
		{"tie goes to seat one", record("Ann", filled(3)), record("Bo", filled(3)), models.PhaseDrafting, models.SeatOne},
		{"seat two behind", record("Ann", filled(3)), record("Bo", filled(2)), models.PhaseDrafting, models.SeatTwo},
		{"seat one behind", record("Ann", filled(1)), record("Bo", filled(2)), models.PhaseDrafting, models.SeatOne},
		{"seat one full", record("Ann", filled(8)), record("Bo", filled(7)), models.PhaseDrafting, models.SeatTwo},
		{"seat two full", record("Ann", filled(5)), record("Bo", filled(8)), models.PhaseDrafting, models.SeatOne},
		{"both full", record("Ann", filled(8)), record("Bo", filled(8)), models.PhaseComplete, models.SeatOne},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := models.NewSharedDocument("local")
			doc.Seats[models.SeatOne] = tt.one
			doc.Seats[models.SeatTwo] = tt.two
			got := restoreState(doc)
			if got.Phase != tt.wantPhase || got.CurrentTurnSeat != tt.wantTurn {
				t.Errorf("restoreState = %s/%d, want %s/%d", got.Phase, got.CurrentTurnSeat, tt.wantPhase, tt.wantTurn)
			}
		})
	}
}
