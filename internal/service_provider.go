package internal

import (
	"context"
	"fmt"
	"os"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal/clients"
	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/services/aggregator"
	"github.com/vadiminshakov/arbiter/internal/services/executor"
	"github.com/vadiminshakov/arbiter/internal/services/margin"
	"github.com/vadiminshakov/arbiter/internal/services/venue"
)

// venueService is a full exchange adapter: quoting plus the execution surface.
type venueService interface {
	executor.Venue
	Price(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
	TradingFee(ctx context.Context, pair domain.Pair) (domain.FeeQuote, error)
}

type confirmer interface {
	Confirm(ctx context.Context, plan domain.ArbitragePlan) (bool, error)
}

// Clients holds the SDK clients created for the configured venues.
type Clients struct {
	byVenue map[domain.Venue]any
	// Ledger shared by simulated venues, nil when none is configured.
	Ledger *clients.SimulateClient
}

// NewClients creates one client per venue. Live platforms read credentials from the environment.
func NewClients(cfg config.Config) (*Clients, error) {
	c := &Clients{byVenue: make(map[domain.Venue]any, len(cfg.Venues))}

	for _, vc := range cfg.Venues {
		switch vc.Platform {
		case config.PlatformBinance:
			apiKey := os.Getenv("BINANCE_API_KEY")
			apiSecret := os.Getenv("BINANCE_API_SECRET")
			if apiKey == "" || apiSecret == "" {
				return nil, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
			}
			c.byVenue[vc.Name] = clients.NewBinanceClient(apiKey, apiSecret)
		case config.PlatformBybit:
			apiKey := os.Getenv("BYBIT_API_KEY")
			apiSecret := os.Getenv("BYBIT_API_SECRET")
			if apiKey == "" || apiSecret == "" {
				return nil, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
			}
			c.byVenue[vc.Name] = clients.NewBybitClient(apiKey, apiSecret)
		case config.PlatformSimulate:
			if c.Ledger == nil {
				c.Ledger = clients.NewSimulateClient(cfg.Simulate.SettleDelay)
			}
			c.byVenue[vc.Name] = c.Ledger
		default:
			return nil, fmt.Errorf("unsupported platform: %s", vc.Platform)
		}
	}

	return c, nil
}

// SetClient overrides the client of a venue.
func (c *Clients) SetClient(name domain.Venue, client any) {
	c.byVenue[name] = client
}

// newVenue creates the adapter matching the client type.
// This is the single point of truth for dispatching to platform-specific implementations.
func newVenue(name domain.Venue, client any, opts []venue.SimulateOption, pricer venue.Pricer, logger *zap.Logger) (venueService, error) {
	switch c := client.(type) {
	case *binance.Client:
		return venue.NewBinanceVenue(name, c)
	case *bybit.Client:
		return venue.NewBybitVenue(name, c)
	case *clients.SimulateClient:
		if pricer == nil {
			bv, err := venue.NewBinanceVenue("reference", c.GetBinanceClient())
			if err != nil {
				return nil, err
			}
			pricer = bv
		}
		return venue.NewSimulateVenue(name, c, pricer, logger, opts...)
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

// EngineDeps optional collaborators of the engine.
type EngineDeps struct {
	Confirm confirmer
	Notify  notifier
	Events  publisher
	// Pricer reference price feed for simulated venues, defaults to the Binance public API.
	Pricer venue.Pricer
}

// BuildEngine wires venues, the price aggregator, the margin calculator and the orchestrator.
func BuildEngine(cfg config.Config, cl *Clients, deps EngineDeps, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Confirm == nil {
		return nil, errors.New("confirmer is required")
	}

	simulated := 0
	venues := make([]venueService, 0, len(cfg.Venues))
	for _, vc := range cfg.Venues {
		client, ok := cl.byVenue[vc.Name]
		if !ok {
			return nil, fmt.Errorf("no client for venue %s", vc.Name)
		}

		var opts []venue.SimulateOption
		if vc.Platform == config.PlatformSimulate {
			shift := decimal.Zero
			if simulated > 0 {
				shift = cfg.Simulate.SpreadPercent
			}
			simulated++
			opts = append(opts,
				venue.WithPriceShift(shift),
				venue.WithFeePercent(cfg.Simulate.FeePercent),
				venue.WithWithdrawFees(cfg.WithdrawFees))
		}

		v, err := newVenue(vc.Name, client, opts, deps.Pricer, logger)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create venue %s", vc.Name)
		}
		venues = append(venues, v)
	}

	if cl.Ledger != nil {
		for _, vc := range cfg.Venues {
			for asset, amount := range cfg.Simulate.Balances {
				cl.Ledger.Fund(vc.Name, asset, amount)
			}
		}
	}

	quoters := make([]aggregator.Quoter, 0, len(venues))
	execVenues := make([]executor.Venue, 0, len(venues))
	for _, v := range venues {
		quoters = append(quoters, v)
		execVenues = append(execVenues, v)
	}

	agg, err := aggregator.NewAggregator(logger.Named("aggregator"), cfg.Symbols, quoters...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create price aggregator")
	}

	calc, err := margin.NewCalculator(cfg.WithdrawFees, cfg.SellWithdrawFee, margin.Policy{
		ProfitThreshold:    cfg.ProfitThreshold,
		LossAlertThreshold: cfg.LossAlertThreshold,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create margin calculator")
	}

	var opts []executor.Option
	if deps.Notify != nil {
		opts = append(opts, executor.WithNotifier(deps.Notify))
	}
	if deps.Events != nil {
		opts = append(opts, executor.WithPublisher(deps.Events))
	}
	orch, err := executor.NewOrchestrator(logger.Named("executor"), executor.Settings{
		Sizing:          executor.Sizing(cfg.Sizing),
		SizePrecision:   cfg.SizePrecision,
		Network:         cfg.Network,
		Networks:        cfg.Networks,
		Symbols:         cfg.Symbols,
		ReservePercent:  cfg.Settlement.ReservePercent,
		PollInterval:    cfg.Settlement.PollInterval,
		MaxAttempts:     cfg.Settlement.MaxAttempts,
		WithdrawBuffer:  cfg.WithdrawBuffer,
		WithdrawFees:    cfg.WithdrawFees,
		ReturnQuote:     cfg.ReturnQuote,
		SellWithdrawFee: cfg.SellWithdrawFee,
	}, deps.Confirm, execVenues, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create orchestrator")
	}

	return NewEngine(logger.Named("engine"), agg, calc, orch, deps.Notify, deps.Events)
}
