// Package margin turns two ranked quotes into a fee-adjusted round-trip estimate.
package margin

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Inputs everything Compute needs for one round trip.
type Inputs struct {
	TradeAmount    decimal.Decimal
	BuyPrice       decimal.Decimal
	SellPrice      decimal.Decimal
	BuyFeePercent  decimal.Decimal
	SellFeePercent decimal.Decimal
	// WithdrawFeeBase flat fee for moving the base asset off the buy venue.
	WithdrawFeeBase decimal.Decimal
	// SellWithdrawFee flat fee for moving the quote asset off the sell venue.
	SellWithdrawFee decimal.Decimal
}

// Compute runs the round trip: buy fee, conversion, base withdrawal fee, sell fee,
// conversion back and quote withdrawal fee. Steps are applied in this order.
// A non-positive BuyPrice buys nothing and a zero TradeAmount yields a zero
// ProfitPercent; Plan rejects both before calling Compute.
func Compute(in Inputs) domain.Margin {
	var m domain.Margin

	m.TradeableBuyAmount = in.TradeAmount.Sub(in.BuyFeePercent.Div(hundred).Mul(in.TradeAmount))
	m.BaseReceived = decimal.Zero
	if in.BuyPrice.IsPositive() {
		m.BaseReceived = m.TradeableBuyAmount.Div(in.BuyPrice)
	}
	m.BaseAfterWithdrawFee = m.BaseReceived.Sub(in.WithdrawFeeBase)
	m.TradeableSellAmount = m.BaseAfterWithdrawFee.Sub(in.SellFeePercent.Div(hundred).Mul(m.BaseAfterWithdrawFee))
	m.QuoteReceived = m.TradeableSellAmount.Mul(in.SellPrice)
	m.FinalQuoteAmount = m.QuoteReceived.Sub(in.SellWithdrawFee)
	m.NetProfit = m.FinalQuoteAmount.Sub(in.TradeAmount)
	m.ProfitPercent = decimal.Zero
	if !in.TradeAmount.IsZero() {
		m.ProfitPercent = m.NetProfit.Div(in.TradeAmount).Mul(hundred)
	}

	return m
}

// Policy thresholds of the three-way decision, in quote units.
type Policy struct {
	// ProfitThreshold net profit must exceed this to execute. Must be positive.
	ProfitThreshold decimal.Decimal
	// LossAlertThreshold net profit at or below this raises an alert.
	LossAlertThreshold decimal.Decimal
}

// Calculator builds plans from ranked quotes using a withdrawal fee table.
type Calculator struct {
	fees            *domain.WithdrawFeeTable
	sellWithdrawFee decimal.Decimal
	policy          Policy
}

// NewCalculator creates a Calculator. sellWithdrawFee is the flat quote fee charged on the sell venue.
func NewCalculator(fees *domain.WithdrawFeeTable, sellWithdrawFee decimal.Decimal, policy Policy) (*Calculator, error) {
	if !policy.ProfitThreshold.IsPositive() {
		return nil, errors.Errorf("profit threshold must be positive, got %s", policy.ProfitThreshold.String())
	}
	if policy.LossAlertThreshold.GreaterThanOrEqual(policy.ProfitThreshold) {
		return nil, errors.Errorf("loss alert threshold %s must be below profit threshold %s",
			policy.LossAlertThreshold.String(), policy.ProfitThreshold.String())
	}
	if fees == nil {
		fees = domain.NewWithdrawFeeTable(decimal.Zero)
	}
	return &Calculator{fees: fees, sellWithdrawFee: sellWithdrawFee, policy: policy}, nil
}

// Plan computes the arbitrage plan of buying on ranked.Buy and selling on ranked.Sell.
// Maker fees are used for both legs.
func (c *Calculator) Plan(pair domain.Pair, amount decimal.Decimal, ranked domain.RankedPair) (domain.ArbitragePlan, error) {
	plan := domain.ArbitragePlan{
		Pair:            pair,
		TradeAmount:     amount,
		BuyVenue:        ranked.Buy.Venue,
		SellVenue:       ranked.Sell.Venue,
		BuyPrice:        ranked.Buy.Price,
		SellPrice:       ranked.Sell.Price,
		BuyFeePercent:   ranked.Buy.Fee.MakerPercent,
		SellFeePercent:  ranked.Sell.Fee.MakerPercent,
		WithdrawFeeBase: c.fees.Fee(ranked.Buy.Venue, pair.From),
	}
	if err := plan.Validate(); err != nil {
		return domain.ArbitragePlan{}, errors.Wrap(err, "invalid plan")
	}

	plan.Margin = Compute(Inputs{
		TradeAmount:     plan.TradeAmount,
		BuyPrice:        plan.BuyPrice,
		SellPrice:       plan.SellPrice,
		BuyFeePercent:   plan.BuyFeePercent,
		SellFeePercent:  plan.SellFeePercent,
		WithdrawFeeBase: plan.WithdrawFeeBase,
		SellWithdrawFee: c.sellWithdrawFee,
	})

	return plan, nil
}

// Decide maps a margin to execute, alert or nothing.
func (c *Calculator) Decide(m domain.Margin) domain.Decision {
	switch {
	case m.NetProfit.GreaterThan(c.policy.ProfitThreshold):
		return domain.DecisionExecute
	case m.NetProfit.LessThanOrEqual(c.policy.LossAlertThreshold):
		return domain.DecisionAlert
	default:
		return domain.DecisionNone
	}
}
