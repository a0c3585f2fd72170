package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Margin intermediate and final amounts of one simulated round trip.
type Margin struct {
	TradeableBuyAmount   decimal.Decimal
	BaseReceived         decimal.Decimal
	BaseAfterWithdrawFee decimal.Decimal
	TradeableSellAmount  decimal.Decimal
	QuoteReceived        decimal.Decimal
	FinalQuoteAmount     decimal.Decimal
	// NetProfit quote-asset profit after all fees, negative on loss.
	NetProfit decimal.Decimal
	// ProfitPercent NetProfit relative to the trade amount, in percent.
	ProfitPercent decimal.Decimal
}

// Decision what the scan loop does with a computed plan.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionExecute
	DecisionAlert
)

// String returns the string representation of the decision
func (d Decision) String() string {
	switch d {
	case DecisionExecute:
		return "execute"
	case DecisionAlert:
		return "alert"
	default:
		return "none"
	}
}

// ArbitragePlan one buy-transfer-sell opportunity. Built fresh each tick and never mutated.
type ArbitragePlan struct {
	Pair Pair
	// TradeAmount quote-asset amount spent on the buy venue.
	TradeAmount     decimal.Decimal
	BuyVenue        Venue
	SellVenue       Venue
	BuyPrice        decimal.Decimal
	SellPrice       decimal.Decimal
	BuyFeePercent   decimal.Decimal
	SellFeePercent  decimal.Decimal
	WithdrawFeeBase decimal.Decimal
	Margin          Margin
}

// Validate checks structural invariants of the plan.
func (p ArbitragePlan) Validate() error {
	if p.BuyVenue == p.SellVenue {
		return errors.Wrapf(ErrSelfArbitrage, "venue %s", p.BuyVenue)
	}
	if !p.BuyPrice.IsPositive() || !p.SellPrice.IsPositive() {
		return errors.Errorf("prices must be positive, buy %s sell %s", p.BuyPrice, p.SellPrice)
	}
	if !p.TradeAmount.IsPositive() {
		return errors.Errorf("trade amount must be positive, got %s", p.TradeAmount)
	}
	return nil
}

// String returns a human-readable summary.
func (p ArbitragePlan) String() string {
	return fmt.Sprintf("%s buy on %s at %s, sell on %s at %s, amount %s %s, net profit %s (%s%%)",
		p.Pair.String(), p.BuyVenue, p.BuyPrice.String(), p.SellVenue, p.SellPrice.String(),
		p.TradeAmount.String(), p.Pair.To, p.Margin.NetProfit.StringFixed(4), p.Margin.ProfitPercent.StringFixed(2))
}
