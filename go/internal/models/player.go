package models

// ExternalPlayer is a roster entry as ingested from a roster provider,
// already normalized to one shape regardless of source.
type ExternalPlayer struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	Position    string `json:"position"`
	HeadshotRef string `json:"headshot_ref,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
}

// ToSlot builds the slot occupant for p assigned to slot.
func (p ExternalPlayer) ToSlot(slot Slot) *PlayerSlot {
	return &PlayerSlot{
		ExternalID:       p.ExternalID,
		DisplayName:      p.DisplayName,
		OriginalPosition: p.Position,
		AssignedSlot:     slot,
		HeadshotRef:      p.HeadshotRef,
	}
}

// PlayerRecord is everything one seat owns.
type PlayerRecord struct {
	Name               string      `json:"name"`
	AvatarRef          string      `json:"avatar_ref,omitempty"`
	CurrentTeamRoster  *TeamRoster `json:"current_team_roster"`
	HasDraftedThisSpin bool        `json:"has_drafted_this_spin"`
	RosterSlots        RosterSlots `json:"roster_slots"`
	SetupStarted       bool        `json:"setup_started"`
}

// NewPlayerRecord returns an empty seat record.
func NewPlayerRecord() PlayerRecord {
	return PlayerRecord{
		RosterSlots: NewRosterSlots(),
	}
}

// Clone deep copies the record.
func (r PlayerRecord) Clone() PlayerRecord {
	out := r
	out.RosterSlots = r.RosterSlots.Clone()
	if r.CurrentTeamRoster != nil {
		tr := r.CurrentTeamRoster.Clone()
		out.CurrentTeamRoster = &tr
	}
	return out
}
