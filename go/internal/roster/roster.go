// Package roster holds the fantasy slot rules: which positions may fill
// which slots and when a roster is full.
package roster

import (
	"strings"

	"github.com/mcdev12/draftslots/go/internal/models"
)

var eligibility = map[string][]models.Slot{
	"QB":                   {models.SlotQB},
	"K":                    {models.SlotK},
	models.DefensePosition: {models.SlotDEF},
	"RB":                   {models.SlotRB, models.SlotFlex},
	"WR":                   {models.SlotWR1, models.SlotWR2, models.SlotFlex},
	"TE":                   {models.SlotTE, models.SlotFlex},
}

// IsRosterFull reports whether all eight slots are filled.
func IsRosterFull(slots models.RosterSlots) bool {
	for _, s := range models.AllSlots {
		if slots[s] == nil {
			return false
		}
	}
	return true
}

// FilledCount returns how many slots are occupied.
func FilledCount(slots models.RosterSlots) int {
	n := 0
	for _, s := range models.AllSlots {
		if slots[s] != nil {
			n++
		}
	}
	return n
}

// EligibleSlotsFor returns the slots a position may fill, in fixed order.
// Unknown positions get an empty list.
func EligibleSlotsFor(position string) []models.Slot {
	slots := eligibility[position]
	return append([]models.Slot(nil), slots...)
}

// IsEligible reports whether position may occupy slot.
func IsEligible(position string, slot models.Slot) bool {
	for _, s := range eligibility[position] {
		if s == slot {
			return true
		}
	}
	return false
}

// OpenSlotsFor returns the eligible slots for position that are still empty.
func OpenSlotsFor(slots models.RosterSlots, position string) []models.Slot {
	var open []models.Slot
	for _, s := range eligibility[position] {
		if slots[s] == nil {
			open = append(open, s)
		}
	}
	return open
}

// IsPositionUndraftable reports whether every eligible slot for position
// is taken. Unknown positions are always undraftable.
func IsPositionUndraftable(slots models.RosterSlots, position string) bool {
	return len(OpenSlotsFor(slots, position)) == 0
}

// FindFirstOpenSlot returns the first open eligible slot for position.
func FindFirstOpenSlot(slots models.RosterSlots, position string) (models.Slot, bool) {
	open := OpenSlotsFor(slots, position)
	if len(open) == 0 {
		return "", false
	}
	return open[0], true
}

// NormalizePosition picks the abbreviation when present, falls back to the
// long name, and maps the place kicker to K.
func NormalizePosition(abbreviation, name string) string {
	pos := strings.ToUpper(strings.TrimSpace(abbreviation))
	if pos == "" {
		pos = strings.TrimSpace(name)
		if strings.EqualFold(pos, "Defense") {
			pos = models.DefensePosition
		}
	}
	if pos == "PK" {
		return "K"
	}
	return pos
}

// DraftedIDs maps every drafted external id to the seat holding it.
func DraftedIDs(doc models.SharedDocument) map[string]models.Seat {
	ids := make(map[string]models.Seat)
	for _, seat := range models.Seats {
		for _, id := range doc.Record(seat).RosterSlots.IDs() {
			ids[id] = seat
		}
	}
	return ids
}
