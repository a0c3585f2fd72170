// Command arbiter watches the price of one asset on two exchanges and, when the
// spread covers every fee, buys on the cheaper venue, moves the coins and sells
// on the dearer one.
//
// Usage:
//
//	arbiter [--config arbiter.yaml] [--scan] [--simulate] [base] [quote] [amount]
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//
// Optional: TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID, TELEGRAM_MSG=YES,
// OPPORTUNITY_FIND=manual|auto, TRADING_AMOUNT_BY=balance|input.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal"
	"github.com/vadiminshakov/arbiter/internal/events"
	"github.com/vadiminshakov/arbiter/internal/services/confirm"
	"github.com/vadiminshakov/arbiter/internal/services/notifier"
	"github.com/vadiminshakov/arbiter/internal/web"
)

type notifyService interface {
	Notify(ctx context.Context, text string)
}

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("arbiter stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var notify notifyService = notifier.Log{Logger: logger.Named("notify")}
	if cfg.Telegram.Enabled {
		tg, err := notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger.Named("telegram"))
		if err != nil {
			return err
		}
		notify = tg
	}

	deps := internal.EngineDeps{Notify: notify}
	if cfg.Mode == config.ModeManual {
		deps.Confirm = confirm.NewPrompt(notify, cfg.Accessible)
	} else {
		deps.Confirm = confirm.Auto{}
	}

	broadcaster := events.NewBroadcaster(64)
	deps.Events = broadcaster
	go logEvents(ctx, broadcaster, logger.Named("events"))

	if cfg.StatusAddr != "" {
		srv := web.NewServer(cfg.StatusAddr, broadcaster, logger.Named("web"))
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	cl, err := internal.NewClients(cfg)
	if err != nil {
		return err
	}

	engine, err := internal.BuildEngine(cfg, cl, deps, logger)
	if err != nil {
		return err
	}

	logger.Info("arbiter started",
		zap.String("mode", string(cfg.Mode)),
		zap.String("sizing", cfg.Sizing),
		zap.String("buy_amount", cfg.Amount.String()),
		zap.String("venue_a", cfg.Venues[0].Name.String()),
		zap.String("venue_b", cfg.Venues[1].Name.String()))

	if cfg.Scan {
		return engine.RunList(ctx, cfg.ScanBases, cfg.Pair.To, cfg.Amount, cfg.AssetDelay, cfg.TickDelay)
	}
	return engine.Run(ctx, cfg.Pair, cfg.Amount, cfg.TickDelay)
}

// logEvents mirrors state transitions to the console.
func logEvents(ctx context.Context, b *events.Broadcaster, logger *zap.Logger) {
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sub:
			if e.Kind != events.KindTransition {
				continue
			}
			logger.Debug("execution event",
				zap.String("pair", e.Pair),
				zap.String("state", e.State),
				zap.String("buy_venue", e.BuyVenue),
				zap.String("sell_venue", e.SellVenue),
				zap.String("message", e.Message))
		}
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
