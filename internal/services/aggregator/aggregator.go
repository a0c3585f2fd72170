// Package aggregator collects prices and fees from every venue and ranks them.
package aggregator

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// Quoter is a venue able to price a pair and report its trading fee.
type Quoter interface {
	Name() domain.Venue
	Price(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	TradingFee(ctx context.Context, pair domain.Pair) (domain.FeeQuote, error)
}

// Aggregator queries venues concurrently. A failing venue never fails its sibling.
type Aggregator struct {
	venues  []Quoter
	symbols domain.SymbolTable
	logger  *zap.Logger
}

// NewAggregator creates an Aggregator over venues, ranked ties keep this order.
func NewAggregator(logger *zap.Logger, symbols domain.SymbolTable, venues ...Quoter) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(venues) < 2 {
		return nil, errors.Errorf("at least two venues are required, got %d", len(venues))
	}
	return &Aggregator{venues: venues, symbols: symbols, logger: logger}, nil
}

// FetchRanked returns the two best venues ordered by price, or ErrInsufficientData.
func (a *Aggregator) FetchRanked(ctx context.Context, pair domain.Pair) (*domain.RankedPair, error) {
	quotes := a.collect(ctx, pair)

	if len(quotes) < 2 {
		return nil, errors.Wrapf(domain.ErrInsufficientData, "%s: %d of %d venues quoted", pair.String(), len(quotes), len(a.venues))
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Price.GreaterThan(quotes[j].Price)
	})

	ranked := &domain.RankedPair{Sell: quotes[0], Buy: quotes[1]}

	a.logger.Debug("venues ranked",
		zap.String("pair", pair.String()),
		zap.String("sell_venue", ranked.Sell.Venue.String()),
		zap.String("sell_price", ranked.Sell.Price.String()),
		zap.String("buy_venue", ranked.Buy.Venue.String()),
		zap.String("buy_price", ranked.Buy.Price.String()))

	return ranked, nil
}

// collect returns the venues with a valid price, in configured order.
func (a *Aggregator) collect(ctx context.Context, pair domain.Pair) []domain.VenueQuote {
	prices := make([]decimal.Decimal, len(a.venues))
	fees := make([]domain.FeeQuote, len(a.venues))
	priceErrs := make([]error, len(a.venues))

	var g errgroup.Group
	for i, v := range a.venues {
		local := a.symbols.LocalPair(v.Name(), pair)

		g.Go(func() error {
			price, err := v.Price(ctx, local)
			if err == nil && !price.IsPositive() {
				err = errors.Errorf("non-positive price %s", price.String())
			}
			if err != nil {
				priceErrs[i] = errors.Wrapf(domain.ErrQuoteUnavailable, "%s: %v", v.Name(), err)
				return nil
			}
			prices[i] = price
			return nil
		})

		g.Go(func() error {
			fee, err := v.TradingFee(ctx, local)
			if err != nil {
				a.logger.Warn("trading fee unavailable, assuming zero",
					zap.String("venue", v.Name().String()),
					zap.String("pair", local.String()),
					zap.Error(err))
				fee = domain.FeeQuote{MakerPercent: decimal.Zero, TakerPercent: decimal.Zero}
			}
			fee.Venue = v.Name()
			fees[i] = fee
			return nil
		})
	}
	_ = g.Wait()

	quotes := make([]domain.VenueQuote, 0, len(a.venues))
	for i, v := range a.venues {
		if priceErrs[i] != nil {
			a.logger.Warn("venue quote discarded",
				zap.String("venue", v.Name().String()),
				zap.String("pair", pair.String()),
				zap.Error(priceErrs[i]))
			continue
		}
		quotes = append(quotes, domain.VenueQuote{
			Quote: domain.Quote{Venue: v.Name(), Price: prices[i]},
			Fee:   fees[i],
		})
	}
	return quotes
}
