package executor

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/pkg/retrier"
)

var (
	errNotSettled = errors.New("balance not settled")
	hundred       = decimal.NewFromInt(100)
)

// awaitSettlement polls the free balance of asset on v until it exceeds the reserve.
// A credentials rejection ends the wait at once.
// It returns the spendable amount: free balance minus the reserve.
func (o *Orchestrator) awaitSettlement(ctx context.Context, v Venue, asset string, logger *zap.Logger) (decimal.Decimal, error) {
	opts := retrier.Fixed(o.settings.PollInterval, o.settings.MaxAttempts)
	opts = append(opts, retrier.WithOnRetry(func(attempt int, err error) {
		logger.Debug("waiting for balance to settle",
			zap.String("venue", v.Name().String()),
			zap.String("asset", asset),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}))

	spendable, err := retrier.DoWithData(retrier.New(opts...), ctx, func(ctx context.Context) (decimal.Decimal, error) {
		balance, err := v.Balance(ctx, asset)
		if err != nil {
			err = errors.Wrapf(err, "balance %s on %s", asset, v.Name())
			if errors.Is(err, domain.ErrVenueAuth) {
				return decimal.Zero, retrier.Permanent(err)
			}
			return decimal.Zero, err
		}
		available := Spendable(balance.Free, o.settings.ReservePercent)
		if !available.IsPositive() {
			return decimal.Zero, errors.Wrapf(errNotSettled, "free %s %s", balance.Free.String(), asset)
		}
		return available, nil
	})
	if err != nil {
		if errors.Is(err, retrier.ErrExhausted) {
			return decimal.Zero, errors.Wrapf(domain.ErrSettlementTimeout, "%s on %s after %d polls: %v",
				asset, v.Name(), o.settings.MaxAttempts, errors.Unwrap(err))
		}
		return decimal.Zero, err
	}

	logger.Info("balance settled",
		zap.String("venue", v.Name().String()),
		zap.String("asset", asset),
		zap.String("spendable", spendable.String()))
	return spendable, nil
}

// Spendable returns free minus reservePercent of free.
func Spendable(free, reservePercent decimal.Decimal) decimal.Decimal {
	return free.Sub(free.Mul(reservePercent).Div(hundred))
}
