package venue

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/clients"
	"github.com/vadiminshakov/arbiter/internal/domain"
)

// Pricer defines an interface for getting the price of a trading pair.
type Pricer interface {
	Price(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// SimulateVenue is a paper venue on top of a shared SimulateClient ledger.
// Prices come from a reference pricer shifted by a fixed percent so that two
// simulated venues can disagree.
type SimulateVenue struct {
	name         domain.Venue
	ledger       *clients.SimulateClient
	pricer       Pricer
	priceShift   decimal.Decimal
	feePercent   decimal.Decimal
	withdrawFees *domain.WithdrawFeeTable
	logger       *zap.Logger
}

// SimulateOption configures a SimulateVenue.
type SimulateOption func(*SimulateVenue)

// WithPriceShift moves every quote by percent (0.5 means 0.5% above the reference).
func WithPriceShift(percent decimal.Decimal) SimulateOption {
	return func(v *SimulateVenue) {
		v.priceShift = percent
	}
}

// WithFeePercent sets both maker and taker fee.
func WithFeePercent(percent decimal.Decimal) SimulateOption {
	return func(v *SimulateVenue) {
		v.feePercent = percent
	}
}

// WithWithdrawFees charges withdrawals according to the table.
func WithWithdrawFees(table *domain.WithdrawFeeTable) SimulateOption {
	return func(v *SimulateVenue) {
		v.withdrawFees = table
	}
}

// NewSimulateVenue creates a new SimulateVenue.
func NewSimulateVenue(name domain.Venue, ledger *clients.SimulateClient, pricer Pricer, logger *zap.Logger, opts ...SimulateOption) (*SimulateVenue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ledger == nil {
		return nil, errors.New("ledger is required for SimulateVenue")
	}
	if pricer == nil {
		return nil, errors.New("pricer is required for SimulateVenue")
	}
	v := &SimulateVenue{
		name:       name,
		ledger:     ledger,
		pricer:     pricer,
		priceShift: decimal.Zero,
		feePercent: decimal.NewFromFloat(0.1),
		logger:     logger.With(zap.String("venue", string(name))),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *SimulateVenue) Name() domain.Venue {
	return v.name
}

func (v *SimulateVenue) Price(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	price, err := v.pricer.Price(ctx, pair)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to get reference price")
	}
	return price.Mul(decimal.NewFromInt(1).Add(v.priceShift.Div(hundred))), nil
}

func (v *SimulateVenue) TradingFee(_ context.Context, _ domain.Pair) (domain.FeeQuote, error) {
	return domain.FeeQuote{Venue: v.name, MakerPercent: v.feePercent, TakerPercent: v.feePercent}, nil
}

func (v *SimulateVenue) Balance(_ context.Context, asset string) (domain.Balance, error) {
	return domain.Balance{Asset: asset, Free: v.ledger.Free(v.name, asset), Locked: decimal.Zero}, nil
}

// PlaceOrder fills a market order at the current shifted price, charging the fee in the received asset.
func (v *SimulateVenue) PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, size decimal.Decimal) (domain.ExecutionResult, error) {
	if !size.IsPositive() {
		return domain.Failed("order size must be positive, got " + size.String()), nil
	}

	price, err := v.Price(ctx, pair)
	if err != nil {
		return domain.Failed(err.Error()), err
	}

	keep := decimal.NewFromInt(1).Sub(v.feePercent.Div(hundred))
	notional := size.Mul(price)

	switch side {
	case domain.SideBuy:
		err = v.ledger.Exchange(v.name, pair.To, notional, pair.From, size.Mul(keep))
	case domain.SideSell:
		err = v.ledger.Exchange(v.name, pair.From, size, pair.To, notional.Mul(keep))
	default:
		return domain.Failed("unknown side " + side.String()), nil
	}
	if err != nil {
		return domain.Failed(err.Error()), nil
	}

	id := uuid.NewString()
	v.logger.Info("Simulated order executed",
		zap.String("id", id),
		zap.String("pair", pair.String()),
		zap.String("side", side.String()),
		zap.String("size", size.String()),
		zap.String("price", price.String()))
	return domain.Succeeded(id, "filled"), nil
}

func (v *SimulateVenue) Withdraw(_ context.Context, asset string, amount decimal.Decimal, address, network string) (domain.ExecutionResult, error) {
	fee := v.withdrawFees.Fee(v.name, asset)
	if err := v.ledger.Transfer(v.name, asset, amount, fee, address); err != nil {
		return domain.Failed(err.Error()), nil
	}

	id := uuid.NewString()
	v.logger.Info("Simulated withdrawal submitted",
		zap.String("id", id),
		zap.String("asset", asset),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
		zap.String("network", network))
	return domain.Succeeded(id, "withdrawal submitted"), nil
}

func (v *SimulateVenue) DepositAddress(_ context.Context, asset, network string) (string, error) {
	return v.ledger.DepositAddress(v.name, asset, network), nil
}
