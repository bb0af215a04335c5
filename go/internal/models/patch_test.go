package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPatchApplyTo(t *testing.T) {
	doc := NewSharedDocument("ROOM42")
	doc.Version = 4

	patch := Patch{
		IfVersion: 4,
		Seats: map[Seat]PlayerRecordUpdate{
			SeatOne: {Name: Ptr("Ann"), Slots: map[Slot]*PlayerSlot{SlotK: {ExternalID: "107", AssignedSlot: SlotK}}},
		},
		Shared:    &SharedStateUpdate{CurrentTurnSeat: Ptr(SeatTwo)},
		Occupants: map[Seat]string{SeatOne: "client-a"},
		Presence:  map[Seat]bool{SeatOne: true},
	}
	next, err := patch.ApplyTo(doc)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if next.Version != 5 {
		t.Errorf("version = %d, want 5", next.Version)
	}
	if next.Record(SeatOne).Name != "Ann" || next.Record(SeatOne).RosterSlots[SlotK] == nil {
		t.Errorf("seat one = %+v", next.Record(SeatOne))
	}
	if next.State.CurrentTurnSeat != SeatTwo {
		t.Errorf("turn = %d, want 2", next.State.CurrentTurnSeat)
	}
	if next.SeatOf("client-a") != SeatOne || !next.Presence[SeatOne] {
		t.Errorf("occupants=%v presence=%v", next.Occupants, next.Presence)
	}

	// The input document is untouched.
	if doc.Record(SeatOne).Name != "" || doc.Record(SeatOne).RosterSlots[SlotK] != nil || len(doc.Occupants) != 0 {
		t.Error("ApplyTo modified its input")
	}

	if _, err := patch.ApplyTo(next); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale patch error = %v, want ErrVersionConflict", err)
	}

	patch.IfVersion = 0
	if again, err := patch.ApplyTo(next); err != nil || again.Version != 6 {
		t.Errorf("unconditional patch = v%d, %v", again.Version, err)
	}

	release := Patch{Occupants: map[Seat]string{SeatOne: ""}}
	released, _ := release.ApplyTo(next)
	if released.SeatOf("client-a") != SeatNone {
		t.Error("empty occupant did not release the seat")
	}

	bad := SeatPatch(SeatBoth, PlayerRecordUpdate{Name: Ptr("x")})
	if _, err := bad.ApplyTo(doc); err == nil {
		t.Error("patch for an invalid seat applied")
	}
}

func TestPlayerRecordUpdate_ResetFirst(t *testing.T) {
	rec := NewPlayerRecord()
	rec.Name = "Ann"
	rec.HasDraftedThisSpin = true
	rec.CurrentTeamRoster = &TeamRoster{TeamID: "1"}
	rec.RosterSlots[SlotQB] = &PlayerSlot{ExternalID: "101"}

	got := PlayerRecordUpdate{Reset: true, AvatarRef: Ptr("a.svg")}.Apply(rec)
	want := NewPlayerRecord()
	want.AvatarRef = "a.svg"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reset mismatch (-want +got):\n%s", diff)
	}
	if rec.RosterSlots[SlotQB] == nil {
		t.Error("Apply modified its input")
	}
}

func TestPointsJSON(t *testing.T) {
	tests := []struct {
		in   Points
		wire string
	}{
		{Points{Value: 21.4}, `21.4`},
		{Points{}, `0`},
		{Points{Unavailable: true}, `"unavailable"`},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.in)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", tt.in, err)
		}
		if string(b) != tt.wire {
			t.Errorf("Marshal(%v) = %s, want %s", tt.in, b, tt.wire)
		}
		var back Points
		if err := json.Unmarshal(b, &back); err != nil || back != tt.in {
			t.Errorf("Unmarshal(%s) = %v, %v", b, back, err)
		}
	}

	var p Points
	if err := json.Unmarshal([]byte(`"n/a"`), &p); err == nil {
		t.Error("unknown marker accepted")
	}

	// Pending points stay null on the wire.
	b, _ := json.Marshal(PlayerSlot{ExternalID: "1"})
	var raw map[string]any
	_ = json.Unmarshal(b, &raw)
	if v, ok := raw["points_total"]; !ok || v != nil {
		t.Errorf("points_total = %v (present %v), want null", v, ok)
	}
}
