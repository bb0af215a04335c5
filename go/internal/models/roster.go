package models

import (
	"encoding/json"
	"fmt"
)

// Slot is one of the eight fantasy roster positions.
type Slot string

const (
	SlotQB   Slot = "QB"
	SlotRB   Slot = "RB"
	SlotWR1  Slot = "WR1"
	SlotWR2  Slot = "WR2"
	SlotTE   Slot = "TE"
	SlotFlex Slot = "Flex"
	SlotDEF  Slot = "DEF"
	SlotK    Slot = "K"
)

// AllSlots is the fixed slot order used for display and auto-draft scans.
var AllSlots = []Slot{SlotQB, SlotRB, SlotWR1, SlotWR2, SlotTE, SlotFlex, SlotDEF, SlotK}

// Valid reports whether s names one of the eight slots.
func (s Slot) Valid() bool {
	for _, slot := range AllSlots {
		if slot == s {
			return true
		}
	}
	return false
}

// PointsUnavailable is the wire form of a points lookup that failed.
const PointsUnavailable = "unavailable"

// Points is a resolved fantasy points figure, or the unavailable marker.
type Points struct {
	Value       float64
	Unavailable bool
}

// UnavailablePoints returns the marker used when a lookup fails.
func UnavailablePoints() *Points {
	return &Points{Unavailable: true}
}

func (p Points) MarshalJSON() ([]byte, error) {
	if p.Unavailable {
		return json.Marshal(PointsUnavailable)
	}
	return json.Marshal(p.Value)
}

func (p *Points) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != PointsUnavailable {
			return fmt.Errorf("unknown points marker %q", s)
		}
		*p = Points{Unavailable: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("points must be a number or %q: %w", PointsUnavailable, err)
	}
	*p = Points{Value: v}
	return nil
}

func (p Points) String() string {
	if p.Unavailable {
		return PointsUnavailable
	}
	return fmt.Sprintf("%.2f", p.Value)
}

// PlayerSlot is a drafted player occupying a roster slot.
type PlayerSlot struct {
	ExternalID       string          `json:"external_id"`
	DisplayName      string          `json:"display_name"`
	OriginalPosition string          `json:"original_position"`
	AssignedSlot     Slot            `json:"assigned_slot"`
	HeadshotRef      string          `json:"headshot_ref,omitempty"`
	PointsTotal      *Points         `json:"points_total"`
	StatsDetail      json.RawMessage `json:"stats_detail,omitempty"`
}

// Clone copies the slot including its points and stats payload.
func (p *PlayerSlot) Clone() *PlayerSlot {
	if p == nil {
		return nil
	}
	out := *p
	if p.PointsTotal != nil {
		pts := *p.PointsTotal
		out.PointsTotal = &pts
	}
	if p.StatsDetail != nil {
		out.StatsDetail = append(json.RawMessage(nil), p.StatsDetail...)
	}
	return &out
}

// RosterSlots maps every slot to its occupant, nil when open.
type RosterSlots map[Slot]*PlayerSlot

// NewRosterSlots returns a roster with all eight slots open.
func NewRosterSlots() RosterSlots {
	slots := make(RosterSlots, len(AllSlots))
	for _, s := range AllSlots {
		slots[s] = nil
	}
	return slots
}

// Clone deep copies the roster.
func (r RosterSlots) Clone() RosterSlots {
	out := NewRosterSlots()
	for slot, p := range r {
		out[slot] = p.Clone()
	}
	return out
}

// IDs returns the external ids of every drafted player.
func (r RosterSlots) IDs() []string {
	ids := make([]string, 0, len(r))
	for _, slot := range AllSlots {
		if p := r[slot]; p != nil {
			ids = append(ids, p.ExternalID)
		}
	}
	return ids
}

// Contains reports whether externalID occupies any slot.
func (r RosterSlots) Contains(externalID string) bool {
	for _, p := range r {
		if p != nil && p.ExternalID == externalID {
			return true
		}
	}
	return false
}
