package espn_client

import (
	"github.com/mcdev12/draftslots/go/clients"
)

type ESPNClient struct {
	*clients.BaseClient
}

func NewESPNClient() *ESPNClient {
	return NewESPNClientWithBaseURL(BaseURL)
}

// NewESPNClientWithBaseURL points the client somewhere other than ESPN, e.g. a test server.
func NewESPNClientWithBaseURL(baseURL string) *ESPNClient {
	client := &ESPNClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(JsonHeader, JsonContentType)

	return client
}
