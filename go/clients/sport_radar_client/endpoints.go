package sport_radar_client

const (
	// Base URL - SportRadar uses trial access level by default
	BaseURL = "https://api.sportradar.com/nfl/official/trial/"

	languageCodeEnglish = "en"

	// API Endpoints
	TeamsEndpoint      = "v7/%s/league/teams.json"
	FullRosterEndpoint = "v7/%s/teams/%s/full_roster.json"

	// Headers - SportRadar uses api_key query parameter, not header
	APIKeyParam     = "api_key"
	JsonHeader      = "accept"
	JsonContentType = "application/json"
)

// aliasOverrides maps catalog abbreviations to the aliases SportRadar uses.
var aliasOverrides = map[string]string{
	"WSH": "WAS",
	"LAR": "LA",
	"JAX": "JAC",
}
