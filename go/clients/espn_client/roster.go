package espn_client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// ESPN roster response structures
type ESPNPosition struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
}

type ESPNHeadshot struct {
	Href string `json:"href"`
	Alt  string `json:"alt"`
}

type ESPNAthlete struct {
	ID          string        `json:"id"`
	FullName    string        `json:"fullName"`
	DisplayName string        `json:"displayName"`
	Jersey      string        `json:"jersey"`
	Position    *ESPNPosition `json:"position"`
	Headshot    *ESPNHeadshot `json:"headshot"`
}

// ESPNPositionGroup is one of offense, defense or special teams.
type ESPNPositionGroup struct {
	Position string        `json:"position"`
	Items    []ESPNAthlete `json:"items"`
}

type ESPNTeam struct {
	ID           string `json:"id"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
}

type ESPNRosterResponse struct {
	Athletes []ESPNPositionGroup `json:"athletes"`
	Team     ESPNTeam            `json:"team"`
}

// GetTeamRoster retrieves the raw roster for an ESPN team id
func (c *ESPNClient) GetTeamRoster(ctx context.Context, teamID string) (*ESPNRosterResponse, error) {
	endpoint := fmt.Sprintf(TeamRosterEndpoint, url.PathEscape(teamID))

	var response ESPNRosterResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get team roster: %w", err)
	}

	return &response, nil
}

// FetchTeamRoster returns the team's players flattened out of their position
// groups and normalized. Athletes without an id or position are dropped.
func (c *ESPNClient) FetchTeamRoster(ctx context.Context, teamID string) ([]models.ExternalPlayer, error) {
	resp, err := c.GetTeamRoster(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return NormalizeRoster(teamID, resp), nil
}

// NormalizeRoster converts an ESPN roster response to canonical players.
func NormalizeRoster(teamID string, resp *ESPNRosterResponse) []models.ExternalPlayer {
	var players []models.ExternalPlayer
	seen := make(map[string]bool)
	for _, group := range resp.Athletes {
		for _, a := range group.Items {
			if a.ID == "" || a.Position == nil || seen[a.ID] {
				continue
			}
			pos := roster.NormalizePosition(a.Position.Abbreviation, a.Position.Name)
			if pos == "" {
				continue
			}
			seen[a.ID] = true

			name := a.DisplayName
			if name == "" {
				name = a.FullName
			}
			p := models.ExternalPlayer{
				ExternalID:  a.ID,
				DisplayName: name,
				Position:    pos,
				TeamID:      teamID,
			}
			if a.Headshot != nil {
				p.HeadshotRef = a.Headshot.Href
			}
			players = append(players, p)
		}
	}
	return players
}
