package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AnyVenue registers a fee that applies on every venue without its own entry.
const AnyVenue Venue = ""

// WithdrawFeeTable flat withdrawal fees per venue and asset, in units of the asset.
type WithdrawFeeTable struct {
	// Default fee for assets missing from the table.
	Default decimal.Decimal
	fees    map[Venue]map[string]decimal.Decimal
}

// NewWithdrawFeeTable creates a table with the given fallback fee.
func NewWithdrawFeeTable(def decimal.Decimal) *WithdrawFeeTable {
	return &WithdrawFeeTable{Default: def, fees: make(map[Venue]map[string]decimal.Decimal)}
}

// Set registers the fee of asset on venue.
func (t *WithdrawFeeTable) Set(venue Venue, asset string, fee decimal.Decimal) {
	if t.fees[venue] == nil {
		t.fees[venue] = make(map[string]decimal.Decimal)
	}
	t.fees[venue][strings.ToUpper(asset)] = fee
}

// Fee returns the withdrawal fee of asset on venue, falling back to AnyVenue and then the default.
func (t *WithdrawFeeTable) Fee(venue Venue, asset string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	asset = strings.ToUpper(asset)
	if fee, ok := t.fees[venue][asset]; ok {
		return fee
	}
	if fee, ok := t.fees[AnyVenue][asset]; ok {
		return fee
	}
	return t.Default
}
