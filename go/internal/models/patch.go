package models

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned when a patch was computed against a stale snapshot.
var ErrVersionConflict = errors.New("snapshot version conflict")

// PlayerRecordUpdate is a field-level change to one seat record.
// Nil fields are left alone. Reset replaces the record with defaults before
// the other fields apply; a nil value in Slots opens that slot.
type PlayerRecordUpdate struct {
	Reset              bool                 `json:"reset,omitempty"`
	Name               *string              `json:"name,omitempty"`
	AvatarRef          *string              `json:"avatar_ref,omitempty"`
	TeamRoster         *TeamRoster          `json:"team_roster,omitempty"`
	ClearTeamRoster    bool                 `json:"clear_team_roster,omitempty"`
	HasDraftedThisSpin *bool                `json:"has_drafted_this_spin,omitempty"`
	SetupStarted       *bool                `json:"setup_started,omitempty"`
	Slots              map[Slot]*PlayerSlot `json:"slots,omitempty"`
}

// Apply returns rec with the update applied. rec is not modified.
func (u PlayerRecordUpdate) Apply(rec PlayerRecord) PlayerRecord {
	out := rec.Clone()
	if u.Reset {
		out = NewPlayerRecord()
	}
	if u.Name != nil {
		out.Name = *u.Name
	}
	if u.AvatarRef != nil {
		out.AvatarRef = *u.AvatarRef
	}
	if u.ClearTeamRoster {
		out.CurrentTeamRoster = nil
	}
	if u.TeamRoster != nil {
		tr := u.TeamRoster.Clone()
		out.CurrentTeamRoster = &tr
	}
	if u.HasDraftedThisSpin != nil {
		out.HasDraftedThisSpin = *u.HasDraftedThisSpin
	}
	if u.SetupStarted != nil {
		out.SetupStarted = *u.SetupStarted
	}
	if out.RosterSlots == nil {
		out.RosterSlots = NewRosterSlots()
	}
	for slot, p := range u.Slots {
		out.RosterSlots[slot] = p.Clone()
	}
	return out
}

// SharedStateUpdate is a field-level change to the shared game state.
type SharedStateUpdate struct {
	// Reset restores the session start state before the other fields apply.
	Reset           bool   `json:"reset,omitempty"`
	CurrentTurnSeat *Seat  `json:"current_turn_seat,omitempty"`
	Phase           *Phase `json:"phase,omitempty"`
}

// Apply returns st with the update applied.
func (u SharedStateUpdate) Apply(st SharedGameState) SharedGameState {
	if u.Reset {
		st = NewSharedGameState()
	}
	if u.CurrentTurnSeat != nil {
		st.CurrentTurnSeat = *u.CurrentTurnSeat
	}
	if u.Phase != nil {
		st.Phase = *u.Phase
	}
	return st
}

// Patch is one atomic write against a shared document.
type Patch struct {
	// IfVersion, when non-zero, makes the write conditional on the current version.
	IfVersion uint64                      `json:"if_version,omitempty"`
	Seats     map[Seat]PlayerRecordUpdate `json:"seats,omitempty"`
	Shared    *SharedStateUpdate          `json:"shared,omitempty"`
	Occupants map[Seat]string             `json:"occupants,omitempty"`
	Presence  map[Seat]bool               `json:"presence,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.Seats) == 0 && p.Shared == nil && len(p.Occupants) == 0 && len(p.Presence) == 0
}

// ApplyTo returns the next version of doc. doc itself is left untouched.
func (p Patch) ApplyTo(doc SharedDocument) (SharedDocument, error) {
	if p.IfVersion != 0 && p.IfVersion != doc.Version {
		return SharedDocument{}, fmt.Errorf("%w: have %d, patch expects %d", ErrVersionConflict, doc.Version, p.IfVersion)
	}
	for seat := range p.Seats {
		if !seat.Valid() {
			return SharedDocument{}, fmt.Errorf("invalid seat %d in patch", seat)
		}
	}

	out := doc.Clone()
	if out.Seats == nil {
		out.Seats = map[Seat]PlayerRecord{}
	}
	for seat, upd := range p.Seats {
		out.Seats[seat] = upd.Apply(out.Record(seat))
	}
	if p.Shared != nil {
		out.State = p.Shared.Apply(out.State)
	}
	for seat, clientID := range p.Occupants {
		if clientID == "" {
			delete(out.Occupants, seat)
			continue
		}
		out.Occupants[seat] = clientID
	}
	for seat, on := range p.Presence {
		out.Presence[seat] = on
	}
	out.Version = doc.Version + 1
	return out, nil
}

// SeatPatch builds a patch touching only one seat record.
func SeatPatch(seat Seat, upd PlayerRecordUpdate) Patch {
	return Patch{Seats: map[Seat]PlayerRecordUpdate{seat: upd}}
}

// Ptr returns a pointer to v, for building updates.
func Ptr[T any](v T) *T {
	return &v
}
