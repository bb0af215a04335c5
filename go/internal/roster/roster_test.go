package roster

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/draftslots/go/internal/models"
)

func filled(slots ...models.Slot) models.RosterSlots {
	r := models.NewRosterSlots()
	for i, s := range slots {
		r[s] = &models.PlayerSlot{ExternalID: string(s) + "-" + string(rune('a'+i)), AssignedSlot: s}
	}
	return r
}

func TestEligibleSlotsFor(t *testing.T) {
	tests := []struct {
		position string
		want     []models.Slot
	}{
		{"QB", []models.Slot{models.SlotQB}},
		{"K", []models.Slot{models.SlotK}},
		{"DEF", []models.Slot{models.SlotDEF}},
		{"RB", []models.Slot{models.SlotRB, models.SlotFlex}},
		{"WR", []models.Slot{models.SlotWR1, models.SlotWR2, models.SlotFlex}},
		{"TE", []models.Slot{models.SlotTE, models.SlotFlex}},
		{"OL", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := EligibleSlotsFor(tt.position)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("EligibleSlotsFor(%q) mismatch (-want +got):\n%s", tt.position, diff)
		}
	}
}

func TestEligibleSlotsForReturnsCopy(t *testing.T) {
	got := EligibleSlotsFor("WR")
	got[0] = models.SlotK
	if again := EligibleSlotsFor("WR"); again[0] != models.SlotWR1 {
		t.Fatalf("eligibility table was mutated through returned slice: %v", again)
	}
}

func TestIsRosterFull(t *testing.T) {
	if IsRosterFull(models.NewRosterSlots()) {
		t.Fatalf("empty roster reported full")
	}
	almost := filled(models.SlotQB, models.SlotRB, models.SlotWR1, models.SlotWR2, models.SlotTE, models.SlotFlex, models.SlotDEF)
	if IsRosterFull(almost) {
		t.Fatalf("roster with K open reported full")
	}
	if got := FilledCount(almost); got != 7 {
		t.Fatalf("FilledCount = %d, want 7", got)
	}
	full := filled(models.AllSlots...)
	if !IsRosterFull(full) {
		t.Fatalf("full roster not reported full")
	}
}

func TestFindFirstOpenSlot(t *testing.T) {
	tests := []struct {
		name     string
		slots    models.RosterSlots
		position string
		want     models.Slot
		ok       bool
	}{
		{"rb prefers RB over Flex", filled(), "RB", models.SlotRB, true},
		{"rb falls to Flex", filled(models.SlotRB), "RB", models.SlotFlex, true},
		{"rb blocked", filled(models.SlotRB, models.SlotFlex), "RB", "", false},
		{"wr second receiver", filled(models.SlotWR1), "WR", models.SlotWR2, true},
		{"wr to flex", filled(models.SlotWR1, models.SlotWR2), "WR", models.SlotFlex, true},
		{"te to flex", filled(models.SlotTE), "TE", models.SlotFlex, true},
		{"qb taken", filled(models.SlotQB), "QB", "", false},
		{"def open", filled(models.SlotQB), "DEF", models.SlotDEF, true},
		{"unknown", filled(), "LB", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindFirstOpenSlot(tt.slots, tt.position)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("FindFirstOpenSlot = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestIsPositionUndraftable(t *testing.T) {
	slots := filled(models.SlotRB, models.SlotFlex, models.SlotQB)
	for pos, want := range map[string]bool{
		"RB":  true,
		"TE":  false,
		"QB":  true,
		"WR":  false,
		"K":   false,
		"DEF": false,
		"P":   true,
	} {
		if got := IsPositionUndraftable(slots, pos); got != want {
			t.Fatalf("IsPositionUndraftable(%q) = %v, want %v", pos, got, want)
		}
	}
}

func TestNormalizePosition(t *testing.T) {
	tests := []struct{ abbr, name, want string }{
		{"PK", "Place Kicker", "K"},
		{"", "PK", "K"},
		{"wr", "Wide Receiver", "WR"},
		{"", "Defense", "DEF"},
		{"DEF", "Defense", "DEF"},
		{"", "", ""},
	}
	for _, tt := range tests {
		if got := NormalizePosition(tt.abbr, tt.name); got != tt.want {
			t.Fatalf("NormalizePosition(%q, %q) = %q, want %q", tt.abbr, tt.name, got, tt.want)
		}
	}
}

func TestDraftedIDs(t *testing.T) {
	doc := models.NewSharedDocument("ROOM42")
	one := doc.Seats[models.SeatOne]
	one.RosterSlots[models.SlotQB] = &models.PlayerSlot{ExternalID: "p1"}
	doc.Seats[models.SeatOne] = one
	two := doc.Seats[models.SeatTwo]
	two.RosterSlots[models.SlotK] = &models.PlayerSlot{ExternalID: "p2"}
	doc.Seats[models.SeatTwo] = two

	want := map[string]models.Seat{"p1": models.SeatOne, "p2": models.SeatTwo}
	if diff := cmp.Diff(want, DraftedIDs(doc)); diff != "" {
		t.Fatalf("DraftedIDs mismatch (-want +got):\n%s", diff)
	}
}
