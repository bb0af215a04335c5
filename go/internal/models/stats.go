package models

import "encoding/json"

// GameStats is the most recent game line for a player.
type GameStats struct {
	GameID      string          `json:"game_id"`
	PointsTotal float64         `json:"points_total"`
	StatsDetail json.RawMessage `json:"stats_detail,omitempty"`
}
