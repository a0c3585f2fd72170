// Package venue adapts exchange SDKs to the capability set the arbitrage engine consumes:
// price, trading fee, balance, market order, withdrawal and deposit address.
package venue

import (
	"strings"

	"github.com/shopspring/decimal"
)

// clientOrderPrefix prefixes client order ids so venue order history can be filtered.
const clientOrderPrefix = "arb-"

var hundred = decimal.NewFromInt(100)

// parseDecimal parses a venue amount, treating empty strings as zero.
func parseDecimal(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
