package draft

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/draftslots/go/internal/models"
)

func docWith(phase models.Phase, one, two models.PlayerRecord) models.SharedDocument {
	doc := models.NewSharedDocument("rules")
	doc.Version = 1
	doc.State.Phase = phase
	doc.Seats[models.SeatOne] = one
	doc.Seats[models.SeatTwo] = two
	return doc
}

func named(name string, slots models.RosterSlots) models.PlayerRecord {
	rec := models.NewPlayerRecord()
	rec.Name = name
	if slots != nil {
		rec.RosterSlots = slots
	}
	return rec
}

func TestDerivePhase(t *testing.T) {
	tests := []struct {
		name string
		doc  models.SharedDocument
		want models.Phase
	}{
		{"empty phase defaults to name entry", docWith("", named("", nil), named("", nil)), models.PhaseNameEntry},
		{"one name", docWith(models.PhaseNameEntry, named("Ann", nil), named("", nil)), models.PhaseNameEntry},
		{"both names", docWith(models.PhaseNameEntry, named("Ann", nil), named("Bo", nil)), models.PhaseDrafting},
		{"one roster full", docWith(models.PhaseDrafting, named("Ann", fullRoster(falcons)), named("Bo", nil)), models.PhaseDrafting},
		{"both rosters full", docWith(models.PhaseDrafting, named("Ann", fullRoster(falcons)), named("Bo", fullRoster(chiefs))), models.PhaseComplete},
		{"complete never regresses", docWith(models.PhaseComplete, named("", nil), named("", nil)), models.PhaseComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := derivePhase(tt.doc); got != tt.want {
				t.Errorf("derivePhase = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWithPhase(t *testing.T) {
	doc := docWith(models.PhaseNameEntry, named("Ann", nil), named("", nil))
	patch := withPhase(doc, models.SeatPatch(models.SeatTwo, models.PlayerRecordUpdate{Name: models.Ptr("Bo")}))
	if patch.Shared == nil || patch.Shared.Phase == nil || *patch.Shared.Phase != models.PhaseDrafting {
		t.Fatalf("second name did not start the draft: %+v", patch.Shared)
	}

	unchanged := withPhase(doc, models.SeatPatch(models.SeatOne, models.PlayerRecordUpdate{AvatarRef: models.Ptr(Avatars[0])}))
	if unchanged.Shared != nil {
		t.Errorf("avatar change touched shared state: %+v", unchanged.Shared)
	}
}

func TestAssignmentPatch(t *testing.T) {
	doc := docWith(models.PhaseDrafting, named("Ann", nil), named("Bo", nil))
	patch := assignmentPatch(doc, models.SeatOne, mahomes, models.SlotQB, false)
	want := models.Patch{
		Seats: map[models.Seat]models.PlayerRecordUpdate{
			models.SeatOne: {
				Slots:              map[models.Slot]*models.PlayerSlot{models.SlotQB: mahomes.ToSlot(models.SlotQB)},
				HasDraftedThisSpin: models.Ptr(true),
			},
		},
		Shared: &models.SharedStateUpdate{CurrentTurnSeat: models.Ptr(models.SeatTwo)},
	}
	if diff := cmp.Diff(want, patch); diff != "" {
		t.Errorf("assignmentPatch mismatch (-want +got):\n%s", diff)
	}

	// The opponent is full, so the turn stays.
	doc = docWith(models.PhaseDrafting, named("Ann", nil), named("Bo", fullRoster(chiefs)))
	patch = assignmentPatch(doc, models.SeatOne, mahomes, models.SlotQB, true)
	if got := *patch.Shared.CurrentTurnSeat; got != models.SeatOne {
		t.Errorf("turn = %d, want 1", got)
	}
	if !patch.Seats[models.SeatOne].ClearTeamRoster {
		t.Error("ClearTeamRoster not carried")
	}
}

func TestResetPatch(t *testing.T) {
	t.Run("named opponent gets the turn", func(t *testing.T) {
		doc := docWith(models.PhaseDrafting, named("Ann", nil), named("Bo", nil))
		patch := resetPatch(doc, models.SeatOne)
		after, err := patch.ApplyTo(doc)
		if err != nil {
			t.Fatalf("ApplyTo: %v", err)
		}
		if after.Record(models.SeatOne).Name != "" {
			t.Error("seat one not reset")
		}
		if after.State.CurrentTurnSeat != models.SeatTwo || after.State.Phase != models.PhaseDrafting {
			t.Errorf("state = %+v, want seat two on the clock while drafting", after.State)
		}
	})

	t.Run("finished game goes back to drafting", func(t *testing.T) {
		doc := docWith(models.PhaseComplete, named("Ann", fullRoster(falcons)), named("Bo", fullRoster(chiefs)))
		after, err := resetPatch(doc, models.SeatOne).ApplyTo(doc)
		if err != nil {
			t.Fatalf("ApplyTo: %v", err)
		}
		want := models.SharedGameState{CurrentTurnSeat: models.SeatOne, Phase: models.PhaseDrafting}
		if diff := cmp.Diff(want, after.State); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("full opponent leaves the turn with the reset seat", func(t *testing.T) {
		doc := docWith(models.PhaseDrafting, named("Ann", nil), named("Bo", fullRoster(chiefs)))
		doc.State.CurrentTurnSeat = models.SeatOne
		after, err := resetPatch(doc, models.SeatOne).ApplyTo(doc)
		if err != nil {
			t.Fatalf("ApplyTo: %v", err)
		}
		if after.State.CurrentTurnSeat != models.SeatOne || after.State.Phase != models.PhaseDrafting {
			t.Errorf("state = %+v, want seat one on the clock while drafting", after.State)
		}
	})

	t.Run("nameless opponent resets the game", func(t *testing.T) {
		doc := docWith(models.PhaseDrafting, named("Ann", nil), named("", nil))
		doc.State.CurrentTurnSeat = models.SeatTwo
		after, err := resetPatch(doc, models.SeatOne).ApplyTo(doc)
		if err != nil {
			t.Fatalf("ApplyTo: %v", err)
		}
		if diff := cmp.Diff(models.NewSharedGameState(), after.State); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPendingPoints(t *testing.T) {
	if got := pendingPoints(models.NewRosterSlots()); got != nil {
		t.Errorf("empty roster pending = %v", got)
	}

	slots := fullRoster(falcons)
	slots[models.SlotQB].PointsTotal = &models.Points{Value: 12}
	slots[models.SlotK].PointsTotal = models.UnavailablePoints()

	want := []models.Slot{models.SlotRB, models.SlotWR1, models.SlotWR2, models.SlotTE, models.SlotFlex, models.SlotDEF}
	if diff := cmp.Diff(want, pendingPoints(slots)); diff != "" {
		t.Errorf("pendingPoints mismatch (-want +got):\n%s", diff)
	}
}
