package espn_client

const (
	// Base URL of the public site API, no key required
	BaseURL = "https://site.api.espn.com/apis/site/v2/sports/football/nfl"

	// API Endpoints
	TeamRosterEndpoint = "/teams/%s/roster"

	// Headers
	JsonHeader      = "accept"
	JsonContentType = "application/json"
)
