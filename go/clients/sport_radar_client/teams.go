package sport_radar_client

import (
	"context"
	"fmt"

	"github.com/mcdev12/draftslots/go/internal/models"
	"github.com/mcdev12/draftslots/go/internal/roster"
)

// SportRadar API response structures
type SRTeam struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Alias  string `json:"alias"`
	Market string `json:"market"`
	SrID   string `json:"sr_id"`
}

type SRLeague struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

type SRTeamsResponse struct {
	League SRLeague `json:"league"`
	Teams  []SRTeam `json:"teams"`
}

// SRPlayer represents a player in the SportRadar API response
type SRPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Position  string `json:"position"`
	Jersey    string `json:"jersey"`
	Status    string `json:"status"`
	SrID      string `json:"sr_id"`
}

type SRRosterResponse struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Market  string     `json:"market"`
	Alias   string     `json:"alias"`
	Players []SRPlayer `json:"players"`
}

// GetNFLTeams retrieves all NFL teams, cached after the first success
func (c *SportRadarClient) GetNFLTeams(ctx context.Context) ([]SRTeam, error) {
	c.teamsMu.Lock()
	defer c.teamsMu.Unlock()
	if c.teams != nil {
		return c.teams, nil
	}

	var response SRTeamsResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(TeamsEndpoint, languageCodeEnglish), &response); err != nil {
		return nil, fmt.Errorf("failed to get NFL teams: %w", err)
	}
	c.teams = response.Teams
	return c.teams, nil
}

// GetTeamRoster retrieves the full roster for a SportRadar team id
func (c *SportRadarClient) GetTeamRoster(ctx context.Context, teamID string) (*SRRosterResponse, error) {
	var response SRRosterResponse
	if err := c.GetJSON(ctx, fmt.Sprintf(FullRosterEndpoint, languageCodeEnglish, teamID), &response); err != nil {
		return nil, fmt.Errorf("failed to get team roster: %w", err)
	}
	return &response, nil
}

// GetTeamRosterByAlias retrieves the full roster for a team by its alias (e.g., "SF", "KC")
func (c *SportRadarClient) GetTeamRosterByAlias(ctx context.Context, alias string) (*SRRosterResponse, error) {
	teams, err := c.GetNFLTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	if override, ok := aliasOverrides[alias]; ok {
		alias = override
	}

	for _, team := range teams {
		if team.Alias == alias {
			return c.GetTeamRoster(ctx, team.ID)
		}
	}

	return nil, fmt.Errorf("team with alias '%s' not found", alias)
}

// TeamLookup resolves catalog team ids.
type TeamLookup interface {
	Get(id string) (models.Team, error)
}

// RosterProvider serves catalog team ids out of SportRadar by matching aliases.
type RosterProvider struct {
	client *SportRadarClient
	teams  TeamLookup
}

func NewRosterProvider(client *SportRadarClient, teams TeamLookup) *RosterProvider {
	return &RosterProvider{client: client, teams: teams}
}

// FetchTeamRoster returns the normalized roster of a catalog team.
func (p *RosterProvider) FetchTeamRoster(ctx context.Context, teamID string) ([]models.ExternalPlayer, error) {
	team, err := p.teams.Get(teamID)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.GetTeamRosterByAlias(ctx, team.Abbreviation)
	if err != nil {
		return nil, err
	}

	players := make([]models.ExternalPlayer, 0, len(resp.Players))
	for _, sp := range resp.Players {
		pos := roster.NormalizePosition(sp.Position, "")
		if sp.ID == "" || pos == "" {
			continue
		}
		name := sp.Name
		if name == "" {
			name = sp.FirstName + " " + sp.LastName
		}
		players = append(players, models.ExternalPlayer{
			ExternalID:  sp.ID,
			DisplayName: name,
			Position:    pos,
			TeamID:      teamID,
		})
	}
	return players, nil
}
