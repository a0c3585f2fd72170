package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		in      string
		want    Pair
		wantErr bool
	}{
		{in: "BTC_USDT", want: Pair{From: "BTC", To: "USDT"}},
		{in: " xmr_usdt ", want: Pair{From: "XMR", To: "USDT"}},
		{in: "BTCUSDT", wantErr: true},
		{in: "BTC_", wantErr: true},
		{in: "A_B_C", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePair(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.From+"_"+tt.want.To, got.String())
			assert.Equal(t, tt.want.From+tt.want.To, got.Symbol())
		})
	}
}

func TestSymbolTable(t *testing.T) {
	table := SymbolTable{}
	table.Set("coinex", "trump", "MAGATRUMP")
	table.Set("kucoin", "TRUMPSOL", "TRUMP")

	assert.Equal(t, "MAGATRUMP", table.Local("coinex", "TRUMP"))
	assert.Equal(t, "TRUMP", table.Local("kucoin", "TRUMPSOL"))
	assert.Equal(t, "TRUMP", table.Local("kucoin", "TRUMP"), "unmapped symbols pass through")
	assert.Equal(t, "XMR", table.Local("binance", "XMR"))
	assert.Equal(t, Pair{From: "MAGATRUMP", To: "USDT"}, table.LocalPair("coinex", Pair{From: "TRUMP", To: "USDT"}))

	var empty SymbolTable
	assert.Equal(t, "BTC", empty.Local("any", "BTC"))
}
