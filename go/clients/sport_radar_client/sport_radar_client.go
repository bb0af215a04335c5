package sport_radar_client

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/mcdev12/draftslots/go/clients"
)

type SportRadarClient struct {
	*clients.BaseClient
	apiKey string

	teamsMu sync.Mutex
	teams   []SRTeam
}

func NewSportRadarClient(apiKey string) *SportRadarClient {
	return NewSportRadarClientWithBaseURL(BaseURL, apiKey)
}

func NewSportRadarClientWithBaseURL(baseURL, apiKey string) *SportRadarClient {
	client := &SportRadarClient{
		BaseClient: clients.NewBaseClient(baseURL),
		apiKey:     apiKey,
	}

	client.SetHeader(JsonHeader, JsonContentType)

	return client
}

// withKey appends the API key query parameter to an endpoint
func (c *SportRadarClient) withKey(endpoint string) string {
	separator := "?"
	if strings.Contains(endpoint, "?") {
		separator = "&"
	}
	return endpoint + separator + APIKeyParam + "=" + url.QueryEscape(c.apiKey)
}

// GetJSON overrides the base method to add the API key query parameter
func (c *SportRadarClient) GetJSON(ctx context.Context, endpoint string, out any) error {
	return c.BaseClient.GetJSON(ctx, c.withKey(endpoint), out)
}
