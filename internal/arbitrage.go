package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/events"
)

const defaultTickDelay = 10 * time.Second

type rankedFetcher interface {
	FetchRanked(ctx context.Context, pair domain.Pair) (*domain.RankedPair, error)
}

type planner interface {
	Plan(pair domain.Pair, amount decimal.Decimal, ranked domain.RankedPair) (domain.ArbitragePlan, error)
	Decide(m domain.Margin) domain.Decision
}

type planExecutor interface {
	Execute(ctx context.Context, plan domain.ArbitragePlan) domain.Report
}

type notifier interface {
	Notify(ctx context.Context, text string)
}

type publisher interface {
	Publish(e events.ExecutionEvent)
}

// Engine runs scan ticks: fetch ranked quotes, plan, decide and execute.
type Engine struct {
	prices   rankedFetcher
	planner  planner
	executor planExecutor
	notify   notifier
	events   publisher
	logger   *zap.Logger
}

// NewEngine creates an Engine. notify and events may be nil.
func NewEngine(logger *zap.Logger, prices rankedFetcher, p planner, executor planExecutor, notify notifier, pub publisher) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil || p == nil || executor == nil {
		return nil, errors.New("price aggregator, planner and executor are required")
	}
	return &Engine{
		prices:   prices,
		planner:  p,
		executor: executor,
		notify:   notify,
		events:   pub,
		logger:   logger,
	}, nil
}

// Tick runs one cycle for pair. The report is non-nil only when a plan was executed.
func (e *Engine) Tick(ctx context.Context, pair domain.Pair, amount decimal.Decimal) (*domain.Report, error) {
	ranked, err := e.prices.FetchRanked(ctx, pair)
	if err != nil {
		return nil, err
	}

	plan, err := e.planner.Plan(pair, amount, *ranked)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build plan")
	}
	decision := e.planner.Decide(plan.Margin)

	logger := e.logger.With(
		zap.String("pair", pair.String()),
		zap.String("buy_venue", plan.BuyVenue.String()),
		zap.String("sell_venue", plan.SellVenue.String()),
		zap.String("buy_price", plan.BuyPrice.String()),
		zap.String("sell_price", plan.SellPrice.String()),
		zap.String("net_profit", plan.Margin.NetProfit.StringFixed(4)),
		zap.String("profit_percent", plan.Margin.ProfitPercent.StringFixed(2)),
	)
	e.publish(events.ExecutionEvent{
		Kind:      events.KindTick,
		Pair:      pair.String(),
		Decision:  decision.String(),
		BuyVenue:  plan.BuyVenue.String(),
		SellVenue: plan.SellVenue.String(),
		Amount:    amount.String(),
		NetProfit: plan.Margin.NetProfit.String(),
	})

	switch decision {
	case domain.DecisionExecute:
		logger.Info("profitable arbitrage found")
		e.notifyf(ctx, "Arbitrage opportunity: %s", plan.String())
		report := e.executor.Execute(ctx, plan)
		if report.Err != nil {
			logger.Error("arbitrage execution failed",
				zap.String("last_state", report.LastState.String()), zap.Error(report.Err))
		} else {
			logger.Info("arbitrage executed",
				zap.String("bought", report.BoughtAmount.String()),
				zap.String("sold", report.SoldAmount.String()))
		}
		return &report, nil
	case domain.DecisionAlert:
		logger.Warn("spread is deeply negative")
		e.notifyf(ctx, "Loss alert: %s", plan.String())
	default:
		logger.Info("no profitable arbitrage found")
	}
	return nil, nil
}

// Run ticks pair every tickDelay until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, pair domain.Pair, amount decimal.Decimal, tickDelay time.Duration) error {
	if tickDelay <= 0 {
		tickDelay = defaultTickDelay
	}
	ticker := time.NewTicker(tickDelay)
	defer ticker.Stop()

	e.logger.Info("Starting arbitrage loop", zap.String("pair", pair.String()), zap.Duration("tick_delay", tickDelay))

	for {
		e.tick(ctx, pair, amount)

		select {
		case <-ctx.Done():
			e.logger.Info("Context done, stopping arbitrage loop.", zap.String("pair", pair.String()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunList sweeps every base against quote, pausing assetDelay between assets and
// tickDelay between sweeps, until ctx is cancelled.
func (e *Engine) RunList(ctx context.Context, bases []string, quote string, amount decimal.Decimal, assetDelay, tickDelay time.Duration) error {
	if len(bases) == 0 {
		return errors.New("no base assets to scan")
	}

	e.logger.Info("Starting arbitrage scan",
		zap.Strings("bases", bases), zap.String("quote", quote),
		zap.Duration("asset_delay", assetDelay), zap.Duration("tick_delay", tickDelay))

	for {
		for i, base := range bases {
			e.tick(ctx, domain.Pair{From: base, To: quote}, amount)
			if i == len(bases)-1 {
				break
			}
			if err := sleep(ctx, assetDelay); err != nil {
				e.logger.Info("Context done, stopping arbitrage scan.")
				return err
			}
		}
		if err := sleep(ctx, tickDelay); err != nil {
			e.logger.Info("Context done, stopping arbitrage scan.")
			return err
		}
	}
}

func (e *Engine) tick(ctx context.Context, pair domain.Pair, amount decimal.Decimal) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Debug("Arbitrage tick", zap.String("pair", pair.String()))

	if _, err := e.Tick(ctx, pair, amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			e.logger.Warn("Skipping tick", zap.String("pair", pair.String()), zap.Error(err))
		} else {
			e.logger.Error("Arbitrage tick failed", zap.String("pair", pair.String()), zap.Error(err))
		}
	}
}

func (e *Engine) publish(ev events.ExecutionEvent) {
	if e.events != nil {
		e.events.Publish(ev)
	}
}

func (e *Engine) notifyf(ctx context.Context, format string, args ...any) {
	if e.notify != nil {
		e.notify.Notify(ctx, fmt.Sprintf(format, args...))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
