package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates an authenticated Binance spot and wallet client.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	return client
}

// NewBinancePublicClient creates a client limited to public market data.
func NewBinancePublicClient() *binance.Client {
	return binance.NewClient("", "")
}
