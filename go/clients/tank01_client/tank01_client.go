package tank01_client

import (
	"github.com/mcdev12/draftslots/go/clients"
)

type Tank01Client struct {
	*clients.BaseClient
}

func NewTank01Client(apiKey string) *Tank01Client {
	return NewTank01ClientWithBaseURL(BaseURL, apiKey)
}

func NewTank01ClientWithBaseURL(baseURL, apiKey string) *Tank01Client {
	client := &Tank01Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(RapidAPIKeyHeader, apiKey)
	client.SetHeader(RapidAPIHostHeader, RapidAPIHost)

	return client
}
