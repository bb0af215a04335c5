package models

import (
	"time"
)

// Seat identifies one of the two drafting positions in a session.
type Seat int

const (
	// SeatNone is an observer or a client that has not claimed a seat.
	SeatNone Seat = 0
	SeatOne  Seat = 1
	SeatTwo  Seat = 2
	// SeatBoth is reported by hot-seat sessions where one client drives both seats.
	SeatBoth Seat = -1
)

// Seats lists the drafting seats in order.
var Seats = []Seat{SeatOne, SeatTwo}

// Valid reports whether s is a drafting seat.
func (s Seat) Valid() bool {
	return s == SeatOne || s == SeatTwo
}

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	switch s {
	case SeatOne:
		return SeatTwo
	case SeatTwo:
		return SeatOne
	default:
		return SeatNone
	}
}

// Phase is the shared game phase.
type Phase string

const (
	PhaseNameEntry Phase = "NAME_ENTRY"
	PhaseDrafting  Phase = "DRAFTING"
	PhaseComplete  Phase = "COMPLETE"
)

// Rank orders phases so transitions can be checked for regression.
func (p Phase) Rank() int {
	switch p {
	case PhaseNameEntry:
		return 0
	case PhaseDrafting:
		return 1
	case PhaseComplete:
		return 2
	default:
		return -1
	}
}

// SharedGameState is the turn and phase state both seats read.
type SharedGameState struct {
	CurrentTurnSeat Seat  `json:"current_turn_seat"`
	Phase           Phase `json:"phase"`
}

// NewSharedGameState returns the state a fresh session starts with.
func NewSharedGameState() SharedGameState {
	return SharedGameState{
		CurrentTurnSeat: SeatOne,
		Phase:           PhaseNameEntry,
	}
}

// SharedDocument is one full snapshot of a session: both seat records,
// the shared state, seat occupants and presence.
type SharedDocument struct {
	SessionID string                `json:"session_id"`
	Version   uint64                `json:"version"`
	State     SharedGameState       `json:"state"`
	Seats     map[Seat]PlayerRecord `json:"seats"`
	Occupants map[Seat]string       `json:"occupants,omitempty"`
	Presence  map[Seat]bool         `json:"presence,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewSharedDocument returns a version zero document with default records.
func NewSharedDocument(sessionID string) SharedDocument {
	return SharedDocument{
		SessionID: sessionID,
		State:     NewSharedGameState(),
		Seats: map[Seat]PlayerRecord{
			SeatOne: NewPlayerRecord(),
			SeatTwo: NewPlayerRecord(),
		},
		Occupants: map[Seat]string{},
		Presence:  map[Seat]bool{},
	}
}

// Record returns the record for seat, falling back to defaults.
func (d SharedDocument) Record(seat Seat) PlayerRecord {
	if rec, ok := d.Seats[seat]; ok {
		return rec
	}
	return NewPlayerRecord()
}

// SeatOf returns the seat claimed by clientID, or SeatNone.
func (d SharedDocument) SeatOf(clientID string) Seat {
	if clientID == "" {
		return SeatNone
	}
	for _, seat := range Seats {
		if d.Occupants[seat] == clientID {
			return seat
		}
	}
	return SeatNone
}

// Clone returns a deep copy so callers can never alias another holder's maps.
func (d SharedDocument) Clone() SharedDocument {
	out := d
	out.Seats = make(map[Seat]PlayerRecord, len(d.Seats))
	for seat, rec := range d.Seats {
		out.Seats[seat] = rec.Clone()
	}
	out.Occupants = make(map[Seat]string, len(d.Occupants))
	for seat, id := range d.Occupants {
		out.Occupants[seat] = id
	}
	out.Presence = make(map[Seat]bool, len(d.Presence))
	for seat, on := range d.Presence {
		out.Presence[seat] = on
	}
	return out
}

// SyncMode selects how a session's state is shared between clients.
type SyncMode string

const (
	// SyncModeLocal is a hot-seat session: one client drives both seats.
	SyncModeLocal SyncMode = "local"
	// SyncModeShared is a networked room with one client per seat.
	SyncModeShared SyncMode = "shared"
)

// Valid reports whether m is a known mode.
func (m SyncMode) Valid() bool {
	return m == SyncModeLocal || m == SyncModeShared
}
