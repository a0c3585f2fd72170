package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient creates an authenticated Bybit V5 client.
func NewBybitClient(apiKey, apiSecret string) *bybit.Client {
	client := bybit.NewClient().WithAuth(apiKey, apiSecret)

	return client
}
