//go:build integration

package venue

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/arbiter/internal/clients"
	"github.com/vadiminshakov/arbiter/internal/domain"
)

// TestBybitVenue_Integration calls the real Bybit API.
// To run this test, use: go test -tags=integration -v ./...
func TestBybitVenue_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	apiKey := os.Getenv("BYBIT_API_KEY")
	apiSecret := os.Getenv("BYBIT_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		t.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set for integration tests")
	}

	v, err := NewBybitVenue("bybit", clients.NewBybitClient(apiKey, apiSecret))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("returns price for BTC/USDT pair", func(t *testing.T) {
		pair := domain.Pair{From: "BTC", To: "USDT"}

		price, err := v.Price(ctx, pair)
		require.NoError(t, err)
		require.True(t, price.GreaterThan(decimal.Zero), "Expected price > 0 for %s, got %s", pair.String(), price.String())
		t.Logf("Current %s price: %s", pair.String(), price.String())
	})

	t.Run("returns trading fee in percent", func(t *testing.T) {
		fee, err := v.TradingFee(ctx, domain.Pair{From: "BTC", To: "USDT"})
		require.NoError(t, err)
		assert.True(t, fee.MakerPercent.LessThan(decimal.NewFromInt(1)), "maker fee %s%%", fee.MakerPercent.String())
	})

	t.Run("returns USDT balance", func(t *testing.T) {
		balance, err := v.Balance(ctx, "USDT")
		require.NoError(t, err)
		assert.False(t, balance.Free.IsNegative())
	})

	t.Run("returns error for invalid trading pair", func(t *testing.T) {
		price, err := v.Price(ctx, domain.Pair{From: "INVALID", To: "PAIR"})
		assert.Error(t, err, "Expected error for invalid pair")
		assert.True(t, price.IsZero(), "Expected zero price for invalid pair, got %s", price.String())
	})
}
