package tank01_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// Tank01 wraps every payload in {statusCode, body}; body is an error string
// when nothing matched.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

type PlayerInfo struct {
	PlayerID string `json:"playerID"`
	LongName string `json:"longName"`
	Pos      string `json:"pos"`
	Team     string `json:"team"`
}

type gameLine struct {
	GameID        string `json:"gameID"`
	FantasyPoints string `json:"fantasyPoints"`
}

func (c *Tank01Client) getBody(ctx context.Context, endpoint string) (json.RawMessage, error) {
	var env envelope
	if err := c.GetJSON(ctx, endpoint, &env); err != nil {
		return nil, err
	}
	if env.StatusCode != 0 && env.StatusCode != 200 {
		return nil, fmt.Errorf("tank01 returned status %d", env.StatusCode)
	}
	return env.Body, nil
}

// GetPlayerInfo looks players up by name.
func (c *Tank01Client) GetPlayerInfo(ctx context.Context, name string) ([]PlayerInfo, error) {
	q := url.Values{}
	q.Set("playerName", name)
	q.Set("getStats", "false")

	body, err := c.getBody(ctx, PlayerInfoEndpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to get player info: %w", err)
	}

	body = bytes.TrimSpace(body)
	switch {
	case len(body) == 0 || body[0] == '"':
		return nil, nil
	case body[0] == '{':
		var one PlayerInfo
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player info: %w", err)
		}
		return []PlayerInfo{one}, nil
	default:
		var many []PlayerInfo
		if err := json.Unmarshal(body, &many); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player info: %w", err)
		}
		return many, nil
	}
}

// ResolvePlayerExternalID returns the Tank01 id of the player whose name
// matches displayName, preferring an exact case-insensitive match.
func (c *Tank01Client) ResolvePlayerExternalID(ctx context.Context, displayName string) (string, bool, error) {
	infos, err := c.GetPlayerInfo(ctx, displayName)
	if err != nil {
		return "", false, err
	}
	for _, info := range infos {
		if strings.EqualFold(info.LongName, displayName) && info.PlayerID != "" {
			return info.PlayerID, true, nil
		}
	}
	for _, info := range infos {
		if info.PlayerID != "" {
			return info.PlayerID, true, nil
		}
	}
	return "", false, nil
}

// FetchLastGameStats returns the player's most recent game with fantasy
// points, or nil when there is none. Game ids start with the game date,
// so the greatest id is the latest game.
func (c *Tank01Client) FetchLastGameStats(ctx context.Context, playerID string) (*models.GameStats, error) {
	q := url.Values{}
	q.Set("playerID", playerID)
	q.Set("fantasyPoints", "true")

	body, err := c.getBody(ctx, GamesForPlayerEndpoint+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to get games for player: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, nil
	}
	var games map[string]json.RawMessage
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("failed to unmarshal games: %w", err)
	}
	if len(games) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(games))
	for id := range games {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	latest := ids[len(ids)-1]

	var line gameLine
	if err := json.Unmarshal(games[latest], &line); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", latest, err)
	}
	points, err := strconv.ParseFloat(strings.TrimSpace(line.FantasyPoints), 64)
	if err != nil {
		return nil, fmt.Errorf("game %s has no usable fantasy points %q: %w", latest, line.FantasyPoints, err)
	}

	return &models.GameStats{
		GameID:      latest,
		PointsTotal: points,
		StatsDetail: games[latest],
	}, nil
}
