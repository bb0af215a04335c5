package models

// DefensePosition is the position carried by the synthesized team defense.
const DefensePosition = "DEF"

// Team is one NFL team from the team catalog.
type Team struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Abbreviation string `json:"abbreviation" yaml:"abbreviation"`
	LogoRef      string `json:"logo_ref,omitempty" yaml:"logo"`
}

// DefenseID is the external id of the team defense pseudo-player.
func (t Team) DefenseID() string {
	return "DEF-" + t.ID
}

// DefensePlayer returns the team defense as a draftable player.
func (t Team) DefensePlayer() ExternalPlayer {
	return ExternalPlayer{
		ExternalID:  t.DefenseID(),
		DisplayName: t.Name,
		Position:    DefensePosition,
		HeadshotRef: t.LogoRef,
		TeamID:      t.ID,
	}
}

// TeamRoster is the fetched roster attached to a seat after a team roll.
type TeamRoster struct {
	TeamID   string           `json:"team_id"`
	TeamName string           `json:"team_name"`
	LogoRef  string           `json:"logo_ref,omitempty"`
	Players  []ExternalPlayer `json:"players"`
}

// Clone copies the roster and its player list.
func (t TeamRoster) Clone() TeamRoster {
	out := t
	out.Players = append([]ExternalPlayer(nil), t.Players...)
	return out
}

// Find returns the player with externalID from the roster.
func (t TeamRoster) Find(externalID string) (ExternalPlayer, bool) {
	for _, p := range t.Players {
		if p.ExternalID == externalID {
			return p, true
		}
	}
	return ExternalPlayer{}, false
}
