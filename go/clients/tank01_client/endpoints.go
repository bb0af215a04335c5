package tank01_client

const (
	// Base URL
	BaseURL = "https://tank01-nfl-live-in-game-real-time-statistics-nfl.p.rapidapi.com"

	// API Endpoints
	PlayerInfoEndpoint     = "/getNFLPlayerInfo"
	GamesForPlayerEndpoint = "/getNFLGamesForPlayer"

	// Headers
	RapidAPIKeyHeader  = "X-RapidAPI-Key"
	RapidAPIHostHeader = "X-RapidAPI-Host"
	RapidAPIHost       = "tank01-nfl-live-in-game-real-time-statistics-nfl.p.rapidapi.com"
)
