package venue

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/clients"
	"github.com/vadiminshakov/arbiter/internal/domain"
)

type fixedPricer struct {
	price decimal.Decimal
}

func (p fixedPricer) Price(context.Context, domain.Pair) (decimal.Decimal, error) {
	return p.price, nil
}

var xmrUSDT = domain.Pair{From: "XMR", To: "USDT"}

func newSimulatePair(t *testing.T) (*clients.SimulateClient, *SimulateVenue, *SimulateVenue) {
	t.Helper()
	ledger := clients.NewSimulateClient(0)
	pricer := fixedPricer{price: decimal.NewFromInt(200)}
	fees := domain.NewWithdrawFeeTable(decimal.RequireFromString("0.01"))

	a, err := NewSimulateVenue("a", ledger, pricer, zap.NewNop(), WithWithdrawFees(fees))
	require.NoError(t, err)
	b, err := NewSimulateVenue("b", ledger, pricer, zap.NewNop(),
		WithPriceShift(decimal.NewFromInt(2)), WithFeePercent(decimal.RequireFromString("0.2")), WithWithdrawFees(fees))
	require.NoError(t, err)
	return ledger, a, b
}

func TestSimulateVenue_Price(t *testing.T) {
	_, a, b := newSimulatePair(t)
	ctx := context.Background()

	pa, err := a.Price(ctx, xmrUSDT)
	require.NoError(t, err)
	assert.True(t, pa.Equal(decimal.NewFromInt(200)))

	pb, err := b.Price(ctx, xmrUSDT)
	require.NoError(t, err)
	assert.True(t, pb.Equal(decimal.NewFromInt(204)), pb.String())

	fee, err := b.TradingFee(ctx, xmrUSDT)
	require.NoError(t, err)
	assert.Equal(t, "0.2", fee.MakerPercent.String())
	assert.Equal(t, domain.Venue("b"), fee.Venue)
}

func TestSimulateVenue_Orders(t *testing.T) {
	ledger, a, _ := newSimulatePair(t)
	ctx := context.Background()
	ledger.Fund("a", "USDT", decimal.NewFromInt(1000))

	res, err := a.PlaceOrder(ctx, xmrUSDT, domain.SideBuy, decimal.NewFromInt(2))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	assert.NotEmpty(t, res.OrderID)

	// 2 * 200 spent, 0.1% fee taken from the base received
	assert.True(t, ledger.Free("a", "USDT").Equal(decimal.NewFromInt(600)))
	assert.True(t, ledger.Free("a", "XMR").Equal(decimal.RequireFromString("1.998")))

	res, err = a.PlaceOrder(ctx, xmrUSDT, domain.SideSell, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	assert.True(t, ledger.Free("a", "USDT").Equal(decimal.RequireFromString("799.8")))

	res, err = a.PlaceOrder(ctx, xmrUSDT, domain.SideBuy, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, domain.ResultCodeFailure, res.Code)
	assert.Contains(t, res.Message, "insufficient")

	res, err = a.PlaceOrder(ctx, xmrUSDT, domain.SideBuy, decimal.Zero)
	require.NoError(t, err)
	assert.False(t, res.OK())
}

func TestSimulateVenue_WithdrawAndDeposit(t *testing.T) {
	ledger, a, b := newSimulatePair(t)
	ctx := context.Background()
	ledger.Fund("a", "XMR", decimal.NewFromInt(1))

	address, err := b.DepositAddress(ctx, "XMR", "ERC20")
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(address), address)

	again, err := b.DepositAddress(ctx, "XMR", "ERC20")
	require.NoError(t, err)
	assert.Equal(t, address, again)

	res, err := a.Withdraw(ctx, "XMR", decimal.RequireFromString("0.9"), address, "ERC20")
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)

	assert.True(t, ledger.Free("a", "XMR").Equal(decimal.RequireFromString("0.09")))
	balance, err := b.Balance(ctx, "XMR")
	require.NoError(t, err)
	assert.True(t, balance.Free.Equal(decimal.RequireFromString("0.9")), balance.Free.String())

	res, err = a.Withdraw(ctx, "XMR", decimal.NewFromInt(5), address, "ERC20")
	require.NoError(t, err)
	assert.False(t, res.OK())

	res, err = a.Withdraw(ctx, "XMR", decimal.RequireFromString("0.01"), "0x0000000000000000000000000000000000000001", "ERC20")
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Contains(t, res.Message, "unknown deposit address")
}

func TestNewSimulateVenue_Validation(t *testing.T) {
	_, err := NewSimulateVenue("a", nil, fixedPricer{}, nil)
	assert.Error(t, err)

	_, err = NewSimulateVenue("a", clients.NewSimulateClient(0), nil, nil)
	assert.Error(t, err)
}
