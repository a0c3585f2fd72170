package margin

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	testCases := []struct {
		name              string
		in                Inputs
		expectedSellBase  string
		expectedFinal     string
		expectedNetProfit string
	}{
		{
			name: "five percent spread on 1000",
			in: Inputs{
				TradeAmount:     d("1000"),
				BuyPrice:        d("100"),
				SellPrice:       d("105"),
				BuyFeePercent:   d("0.1"),
				SellFeePercent:  d("0.1"),
				WithdrawFeeBase: d("0.005"),
				SellWithdrawFee: d("2.5"),
			},
			expectedSellBase:  "9.975015",
			expectedFinal:     "1044.876575",
			expectedNetProfit: "44.876575",
		},
		{
			// flat fees dominate when the sell side returns almost nothing
			name: "flat fees dominate a tiny sell price",
			in: Inputs{
				TradeAmount:     d("1000"),
				BuyPrice:        d("100"),
				SellPrice:       d("1.05"),
				BuyFeePercent:   d("0.1"),
				SellFeePercent:  d("0.1"),
				WithdrawFeeBase: d("0.005"),
				SellWithdrawFee: d("2.5"),
			},
			expectedSellBase:  "9.975015",
			expectedFinal:     "7.97376575",
			expectedNetProfit: "-992.02623425",
		},
		{
			name: "no fees and no spread is break even",
			in: Inputs{
				TradeAmount:     d("500"),
				BuyPrice:        d("50"),
				SellPrice:       d("50"),
				BuyFeePercent:   d("0"),
				SellFeePercent:  d("0"),
				WithdrawFeeBase: d("0"),
				SellWithdrawFee: d("0"),
			},
			expectedSellBase:  "10",
			expectedFinal:     "500",
			expectedNetProfit: "0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Compute(tc.in)

			assert.True(t, d(tc.expectedSellBase).Equal(m.TradeableSellAmount), "tradeable sell %s", m.TradeableSellAmount)
			assert.True(t, d(tc.expectedFinal).Equal(m.FinalQuoteAmount), "final %s", m.FinalQuoteAmount)
			assert.True(t, d(tc.expectedNetProfit).Equal(m.NetProfit), "net profit %s", m.NetProfit)

			expectedPercent := m.NetProfit.Div(tc.in.TradeAmount).Mul(decimal.NewFromInt(100))
			assert.True(t, expectedPercent.Equal(m.ProfitPercent))
		})
	}
}

func TestCompute_IntermediateSteps(t *testing.T) {
	m := Compute(Inputs{
		TradeAmount:     d("1000"),
		BuyPrice:        d("100"),
		SellPrice:       d("105"),
		BuyFeePercent:   d("0.1"),
		SellFeePercent:  d("0.1"),
		WithdrawFeeBase: d("0.005"),
		SellWithdrawFee: d("2.5"),
	})

	assert.Equal(t, "999", m.TradeableBuyAmount.String())
	assert.Equal(t, "9.99", m.BaseReceived.String())
	assert.Equal(t, "9.985", m.BaseAfterWithdrawFee.String())
	assert.Equal(t, "-992.03", Compute(Inputs{
		TradeAmount:     d("1000"),
		BuyPrice:        d("100"),
		SellPrice:       d("1.05"),
		BuyFeePercent:   d("0.1"),
		SellFeePercent:  d("0.1"),
		WithdrawFeeBase: d("0.005"),
		SellWithdrawFee: d("2.5"),
	}).NetProfit.StringFixed(2))
}

func TestCompute_Deterministic(t *testing.T) {
	in := Inputs{
		TradeAmount:     d("250"),
		BuyPrice:        d("0.8123"),
		SellPrice:       d("0.8311"),
		BuyFeePercent:   d("0.2"),
		SellFeePercent:  d("0.1"),
		WithdrawFeeBase: d("4.54"),
		SellWithdrawFee: d("2.5"),
	}

	first := Compute(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Compute(in))
	}
}

func TestCompute_ZeroPriceOrAmount(t *testing.T) {
	var m domain.Margin
	require.NotPanics(t, func() {
		m = Compute(Inputs{TradeAmount: d("100"), BuyPrice: decimal.Zero, SellPrice: d("10")})
	})
	assert.True(t, m.BaseReceived.IsZero())
	assert.Equal(t, "-100", m.NetProfit.String())
	assert.Equal(t, "-100", m.ProfitPercent.String())

	require.NotPanics(t, func() {
		m = Compute(Inputs{TradeAmount: decimal.Zero, BuyPrice: d("10"), SellPrice: d("10")})
	})
	assert.True(t, m.NetProfit.IsZero())
	assert.True(t, m.ProfitPercent.IsZero())
}

func TestCalculator_Decide(t *testing.T) {
	calc, err := NewCalculator(nil, d("2.5"), Policy{ProfitThreshold: d("1"), LossAlertThreshold: d("-5")})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		netProfit string
		expected  domain.Decision
	}{
		{name: "above threshold executes", netProfit: "1.0001", expected: domain.DecisionExecute},
		{name: "large profit executes", netProfit: "250", expected: domain.DecisionExecute},
		{name: "exactly threshold does nothing", netProfit: "1", expected: domain.DecisionNone},
		{name: "zero does nothing", netProfit: "0", expected: domain.DecisionNone},
		{name: "small loss does nothing", netProfit: "-4.99", expected: domain.DecisionNone},
		{name: "alert threshold alerts", netProfit: "-5", expected: domain.DecisionAlert},
		{name: "big loss alerts", netProfit: "-992.03", expected: domain.DecisionAlert},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, calc.Decide(domain.Margin{NetProfit: d(tc.netProfit)}))
		})
	}
}

func TestCalculator_Plan(t *testing.T) {
	fees := domain.NewWithdrawFeeTable(d("0.005"))
	fees.Set("alpha", "TRUMP", d("4.54"))

	calc, err := NewCalculator(fees, d("2.5"), Policy{ProfitThreshold: d("1"), LossAlertThreshold: d("-5")})
	require.NoError(t, err)

	pair := domain.Pair{From: "TRUMP", To: "USDT"}
	ranked := domain.RankedPair{
		Sell: domain.VenueQuote{
			Quote: domain.Quote{Venue: "beta", Price: d("11")},
			Fee:   domain.FeeQuote{Venue: "beta", MakerPercent: d("0.1"), TakerPercent: d("0.2")},
		},
		Buy: domain.VenueQuote{
			Quote: domain.Quote{Venue: "alpha", Price: d("10")},
			Fee:   domain.FeeQuote{Venue: "alpha", MakerPercent: d("0.2"), TakerPercent: d("0.2")},
		},
	}

	plan, err := calc.Plan(pair, d("100"), ranked)
	require.NoError(t, err)

	assert.Equal(t, domain.Venue("alpha"), plan.BuyVenue)
	assert.Equal(t, domain.Venue("beta"), plan.SellVenue)
	assert.Equal(t, "4.54", plan.WithdrawFeeBase.String())
	assert.Equal(t, "0.2", plan.BuyFeePercent.String())
	assert.Equal(t, "0.1", plan.SellFeePercent.String())

	// 100 -> 99.8 -> 9.98 TRUMP -> 5.44 -> 5.43456 -> 59.78016 -> 57.28016
	assert.Equal(t, "-42.71984", plan.Margin.NetProfit.String())
	assert.Equal(t, domain.DecisionAlert, calc.Decide(plan.Margin))
}

func TestCalculator_PlanRejectsSelfArbitrage(t *testing.T) {
	calc, err := NewCalculator(nil, d("2.5"), Policy{ProfitThreshold: d("1"), LossAlertThreshold: d("-5")})
	require.NoError(t, err)

	quote := domain.VenueQuote{Quote: domain.Quote{Venue: "alpha", Price: d("10")}}
	_, err = calc.Plan(domain.Pair{From: "BTC", To: "USDT"}, d("100"), domain.RankedPair{Sell: quote, Buy: quote})
	assert.ErrorIs(t, err, domain.ErrSelfArbitrage)
}

func TestNewCalculator_RejectsBadPolicy(t *testing.T) {
	testCases := []struct {
		name   string
		policy Policy
	}{
		{name: "zero profit threshold", policy: Policy{ProfitThreshold: d("0"), LossAlertThreshold: d("-5")}},
		{name: "negative profit threshold", policy: Policy{ProfitThreshold: d("-1"), LossAlertThreshold: d("-5")}},
		{name: "alert above profit", policy: Policy{ProfitThreshold: d("1"), LossAlertThreshold: d("2")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCalculator(nil, d("2.5"), tc.policy)
			assert.Error(t, err)
		})
	}
}
