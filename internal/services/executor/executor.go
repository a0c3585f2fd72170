// Package executor runs an arbitrage plan: buy, wait for settlement, withdraw to the
// sell venue, wait for the deposit and sell.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/events"
)

// Venue is the part of an exchange adapter the orchestrator drives.
type Venue interface {
	Name() domain.Venue
	Balance(ctx context.Context, asset string) (domain.Balance, error)
	PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, size decimal.Decimal) (domain.ExecutionResult, error)
	Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address, network string) (domain.ExecutionResult, error)
	DepositAddress(ctx context.Context, asset, network string) (string, error)
}

type confirmer interface {
	Confirm(ctx context.Context, plan domain.ArbitragePlan) (bool, error)
}

type notifier interface {
	Notify(ctx context.Context, text string)
}

type publisher interface {
	Publish(e events.ExecutionEvent)
}

// Sizing selects how the buy order is sized.
type Sizing string

const (
	// SizingInput spends the plan trade amount.
	SizingInput Sizing = "input"
	// SizingBalance spends the whole free quote balance of the buy venue.
	SizingBalance Sizing = "balance"
)

// IsValid checks if the Sizing value is valid.
func (s Sizing) IsValid() bool {
	return s == SizingInput || s == SizingBalance
}

// Settings tunes the orchestrator. Zero values fall back to defaults.
type Settings struct {
	Sizing        Sizing
	SizePrecision int32
	// Network canonical withdrawal network, translated per venue through Networks.
	Network  string
	Networks domain.SymbolTable
	Symbols  domain.SymbolTable
	// ReservePercent share of a polled balance treated as unspendable.
	ReservePercent decimal.Decimal
	PollInterval   time.Duration
	MaxAttempts    int
	// WithdrawBuffer base units kept back on withdrawal. Zero uses the fee table.
	WithdrawBuffer decimal.Decimal
	WithdrawFees   *domain.WithdrawFeeTable
	// ReturnQuote sends sell proceeds back to the buy venue after DONE.
	ReturnQuote     bool
	SellWithdrawFee decimal.Decimal
}

func (s *Settings) applyDefaults() {
	if s.Sizing == "" {
		s.Sizing = SizingInput
	}
	if s.SizePrecision < 0 {
		s.SizePrecision = 0
	}
	if s.Network == "" {
		s.Network = "ERC20"
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 3 * time.Second
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 200
	}
	if s.ReservePercent.IsNegative() {
		s.ReservePercent = decimal.Zero
	}
}

// Orchestrator executes one plan at a time. It blocks during settlement waits.
type Orchestrator struct {
	venues   map[domain.Venue]Venue
	settings Settings
	confirm  confirmer
	notify   notifier
	events   publisher
	logger   *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sends terminal state summaries to n.
func WithNotifier(n notifier) Option {
	return func(o *Orchestrator) {
		o.notify = n
	}
}

// WithPublisher publishes every state transition to p.
func WithPublisher(p publisher) Option {
	return func(o *Orchestrator) {
		o.events = p
	}
}

// NewOrchestrator creates an Orchestrator over the given venues.
func NewOrchestrator(logger *zap.Logger, settings Settings, confirm confirmer, venues []Venue, opts ...Option) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirm == nil {
		return nil, errors.New("confirmer is required")
	}
	settings.applyDefaults()
	if !settings.Sizing.IsValid() {
		return nil, errors.Errorf("unknown sizing mode %q", settings.Sizing)
	}

	o := &Orchestrator{
		venues:   make(map[domain.Venue]Venue, len(venues)),
		settings: settings,
		confirm:  confirm,
		logger:   logger,
	}
	for _, v := range venues {
		if _, dup := o.venues[v.Name()]; dup {
			return nil, errors.Errorf("duplicate venue %s", v.Name())
		}
		o.venues[v.Name()] = v
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run holds the per-execution state. It never outlives Execute.
type run struct {
	plan   domain.ArbitragePlan
	report domain.Report
	buy    Venue
	sell   Venue
	logger *zap.Logger
}

// Execute drives plan from IDLE to DONE or FAILED. It never panics on venue errors;
// the failure reason is in Report.Err.
func (o *Orchestrator) Execute(ctx context.Context, plan domain.ArbitragePlan) domain.Report {
	r := &run{
		plan: plan,
		report: domain.Report{
			Plan:      plan,
			State:     domain.StateIdle,
			LastState: domain.StateIdle,
			StartedAt: time.Now(),
		},
		logger: o.logger.With(
			zap.String("pair", plan.Pair.String()),
			zap.String("buy_venue", plan.BuyVenue.String()),
			zap.String("sell_venue", plan.SellVenue.String())),
	}

	if err := plan.Validate(); err != nil {
		return o.fail(ctx, r, err)
	}

	var ok bool
	if r.buy, ok = o.venues[plan.BuyVenue]; !ok {
		return o.fail(ctx, r, errors.Errorf("unknown buy venue %s", plan.BuyVenue))
	}
	if r.sell, ok = o.venues[plan.SellVenue]; !ok {
		return o.fail(ctx, r, errors.Errorf("unknown sell venue %s", plan.SellVenue))
	}

	accepted, err := o.confirm.Confirm(ctx, plan)
	if err != nil {
		return o.fail(ctx, r, errors.Wrap(err, "confirmation failed"))
	}
	if !accepted {
		return o.fail(ctx, r, domain.ErrRejectedByOperator)
	}

	if err := o.buyLeg(ctx, r); err != nil {
		return o.fail(ctx, r, err)
	}

	baseOnBuy := o.settings.Symbols.Local(r.buy.Name(), plan.Pair.From)
	o.transition(r, domain.StateAwaitBuySettlement)
	settled, err := o.awaitSettlement(ctx, r.buy, baseOnBuy, r.logger)
	if err != nil {
		return o.fail(ctx, r, errors.Wrap(err, "buy settlement"))
	}

	if err := o.withdrawLeg(ctx, r, settled); err != nil {
		return o.fail(ctx, r, err)
	}

	baseOnSell := o.settings.Symbols.Local(r.sell.Name(), plan.Pair.From)
	o.transition(r, domain.StateAwaitDepositSettlement)
	deposited, err := o.awaitSettlement(ctx, r.sell, baseOnSell, r.logger)
	if err != nil {
		return o.fail(ctx, r, errors.Wrap(err, "deposit settlement"))
	}

	if err := o.sellLeg(ctx, r, deposited); err != nil {
		return o.fail(ctx, r, err)
	}

	o.transition(r, domain.StateDone)
	r.report.FinishedAt = time.Now()
	o.notifyf(ctx, "Arbitrage done: %s, sold %s %s on %s",
		plan.Pair.String(), r.report.SoldAmount.String(), plan.Pair.From, plan.SellVenue)

	if o.settings.ReturnQuote {
		o.returnLeg(ctx, r)
	}

	return r.report
}

func (o *Orchestrator) buyLeg(ctx context.Context, r *run) error {
	pair := o.settings.Symbols.LocalPair(r.buy.Name(), r.plan.Pair)

	spend := r.plan.TradeAmount
	if o.settings.Sizing == SizingBalance {
		balance, err := r.buy.Balance(ctx, pair.To)
		if err != nil {
			return errors.Wrapf(err, "failed to get %s balance on %s", pair.To, r.buy.Name())
		}
		spend = balance.Free
	}

	size := spend.Div(r.plan.BuyPrice).RoundFloor(o.settings.SizePrecision)
	if !size.IsPositive() {
		return errors.Wrapf(domain.ErrOrderRejected, "buy size rounds to zero for %s %s", spend.String(), pair.To)
	}

	r.logger.Info("placing buy order",
		zap.String("venue", r.buy.Name().String()),
		zap.String("size", size.String()),
		zap.String("price", r.plan.BuyPrice.String()))

	res, err := r.buy.PlaceOrder(ctx, pair, domain.SideBuy, size)
	if err := legError(domain.ErrOrderRejected, res, err); err != nil {
		return errors.Wrapf(err, "buy on %s", r.buy.Name())
	}

	r.report.BoughtAmount = size
	o.transition(r, domain.StateBuyPlaced, zap.String("order_id", res.OrderID))
	return nil
}

func (o *Orchestrator) withdrawLeg(ctx context.Context, r *run, settled decimal.Decimal) error {
	asset := r.plan.Pair.From
	srcAsset := o.settings.Symbols.Local(r.buy.Name(), asset)
	dstAsset := o.settings.Symbols.Local(r.sell.Name(), asset)

	address, err := r.sell.DepositAddress(ctx, dstAsset, o.network(r.sell.Name()))
	if err != nil {
		return errors.Wrapf(domain.ErrWithdrawalRejected, "deposit address on %s: %v", r.sell.Name(), err)
	}
	if err := validateAddress(o.settings.Network, address); err != nil {
		return errors.Wrapf(domain.ErrWithdrawalRejected, "%v", err)
	}

	buffer := o.settings.WithdrawBuffer
	if buffer.IsZero() {
		buffer = o.settings.WithdrawFees.Fee(r.buy.Name(), asset)
	}
	amount := settled.Sub(buffer).RoundFloor(o.settings.SizePrecision)
	if !amount.IsPositive() {
		return errors.Wrapf(domain.ErrWithdrawalRejected, "settled %s %s does not cover withdrawal buffer %s",
			settled.String(), asset, buffer.String())
	}

	r.logger.Info("withdrawing to sell venue",
		zap.String("asset", srcAsset),
		zap.String("amount", amount.String()),
		zap.String("address", address),
		zap.String("network", o.network(r.buy.Name())))

	res, err := r.buy.Withdraw(ctx, srcAsset, amount, address, o.network(r.buy.Name()))
	if err := legError(domain.ErrWithdrawalRejected, res, err); err != nil {
		return errors.Wrapf(err, "withdraw from %s", r.buy.Name())
	}

	r.report.WithdrawnAmount = amount
	o.transition(r, domain.StateWithdrawInitiated, zap.String("withdrawal_id", res.OrderID))
	return nil
}

func (o *Orchestrator) sellLeg(ctx context.Context, r *run, deposited decimal.Decimal) error {
	pair := o.settings.Symbols.LocalPair(r.sell.Name(), r.plan.Pair)
	size := deposited.RoundFloor(o.settings.SizePrecision)
	if !size.IsPositive() {
		return errors.Wrapf(domain.ErrOrderRejected, "sell size rounds to zero for %s %s", deposited.String(), pair.From)
	}

	r.logger.Info("placing sell order",
		zap.String("venue", r.sell.Name().String()),
		zap.String("size", size.String()),
		zap.String("price", r.plan.SellPrice.String()))

	res, err := r.sell.PlaceOrder(ctx, pair, domain.SideSell, size)
	if err := legError(domain.ErrOrderRejected, res, err); err != nil {
		return errors.Wrapf(err, "sell on %s", r.sell.Name())
	}

	r.report.SoldAmount = size
	o.transition(r, domain.StateSellPlaced, zap.String("order_id", res.OrderID))
	return nil
}

// returnLeg moves the quote proceeds back to the buy venue. Failures are reported but keep DONE.
func (o *Orchestrator) returnLeg(ctx context.Context, r *run) {
	quote := r.plan.Pair.To
	srcAsset := o.settings.Symbols.Local(r.sell.Name(), quote)
	dstAsset := o.settings.Symbols.Local(r.buy.Name(), quote)

	settled, err := o.awaitSettlement(ctx, r.sell, srcAsset, r.logger)
	if err != nil {
		r.logger.Error("quote return skipped", zap.Error(err))
		return
	}
	amount := settled.Sub(o.settings.SellWithdrawFee).RoundFloor(o.settings.SizePrecision)
	if !amount.IsPositive() {
		r.logger.Warn("quote return skipped, balance does not cover withdrawal fee",
			zap.String("settled", settled.String()),
			zap.String("fee", o.settings.SellWithdrawFee.String()))
		return
	}

	address, err := r.buy.DepositAddress(ctx, dstAsset, o.network(r.buy.Name()))
	if err == nil {
		err = validateAddress(o.settings.Network, address)
	}
	if err != nil {
		r.logger.Error("quote return skipped, no deposit address", zap.Error(err))
		return
	}

	res, err := r.sell.Withdraw(ctx, srcAsset, amount, address, o.network(r.sell.Name()))
	if err := legError(domain.ErrWithdrawalRejected, res, err); err != nil {
		r.logger.Error("quote return failed", zap.Error(err))
		o.notifyf(ctx, "Quote return of %s %s from %s failed: %v", amount.String(), quote, r.sell.Name(), err)
		return
	}

	r.report.QuoteReturned = amount
	r.logger.Info("quote returned to buy venue",
		zap.String("asset", quote),
		zap.String("amount", amount.String()))
}

func (o *Orchestrator) fail(ctx context.Context, r *run, err error) domain.Report {
	r.report.Err = err
	o.transition(r, domain.StateFailed, zap.Error(err))
	r.report.FinishedAt = time.Now()
	o.notifyf(ctx, "Arbitrage failed: %s after %s: %v", r.plan.Pair.String(), r.report.LastState, err)
	return r.report
}

func (o *Orchestrator) transition(r *run, to domain.State, fields ...zap.Field) {
	from := r.report.State
	if to != domain.StateFailed {
		r.report.LastState = to
	}
	r.report.State = to

	fields = append(fields, zap.String("from", from.String()), zap.String("to", to.String()))
	if to == domain.StateFailed {
		r.logger.Error("arbitrage state changed", fields...)
	} else {
		r.logger.Info("arbitrage state changed", fields...)
	}

	if o.events != nil {
		e := events.ExecutionEvent{
			Kind:      events.KindTransition,
			Pair:      r.plan.Pair.String(),
			State:     to.String(),
			BuyVenue:  r.plan.BuyVenue.String(),
			SellVenue: r.plan.SellVenue.String(),
		}
		if r.report.Err != nil {
			e.Message = r.report.Err.Error()
		}
		o.events.Publish(e)
	}
}

func (o *Orchestrator) notifyf(ctx context.Context, format string, args ...any) {
	if o.notify == nil {
		return
	}
	o.notify.Notify(ctx, fmt.Sprintf(format, args...))
}

func (o *Orchestrator) network(venue domain.Venue) string {
	return o.settings.Networks.Local(venue, o.settings.Network)
}

// legError turns a transport error or a failed venue result into a classified error.
func legError(kind error, res domain.ExecutionResult, err error) error {
	if err != nil {
		return errors.Wrapf(kind, "%v", err)
	}
	if !res.OK() {
		return errors.Wrapf(kind, "venue responded %d: %s", res.Code, res.Message)
	}
	return nil
}

var evmNetworks = map[string]bool{
	"ERC20": true, "ETH": true, "BEP20": true, "BSC": true,
	"ARBITRUM": true, "ARBI": true, "OPTIMISM": true, "OP": true,
	"POLYGON": true, "MATIC": true, "BASE": true, "AVAXC": true,
}

// validateAddress rejects malformed destination addresses on EVM networks.
func validateAddress(network, address string) error {
	if address == "" {
		return errors.New("empty deposit address")
	}
	if evmNetworks[strings.ToUpper(network)] && !common.IsHexAddress(address) {
		return errors.Errorf("deposit address %q is not a valid %s address", address, network)
	}
	return nil
}
