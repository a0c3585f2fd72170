package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/config"
	"github.com/vadiminshakov/arbiter/internal/domain"
	"github.com/vadiminshakov/arbiter/internal/events"
	"github.com/vadiminshakov/arbiter/internal/services/confirm"
	"github.com/vadiminshakov/arbiter/internal/services/margin"
)

var pair = domain.Pair{From: "XMR", To: "USDT"}

type fetchFunc func(ctx context.Context, pair domain.Pair) (*domain.RankedPair, error)

func (f fetchFunc) FetchRanked(ctx context.Context, pair domain.Pair) (*domain.RankedPair, error) {
	return f(ctx, pair)
}

type executorMock struct {
	mock.Mock
}

func (m *executorMock) Execute(ctx context.Context, plan domain.ArbitragePlan) domain.Report {
	args := m.Called(ctx, plan)
	return args.Get(0).(domain.Report)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ExecutionEvent
}

func (p *recordingPublisher) Publish(e events.ExecutionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type staticPricer decimal.Decimal

func (p staticPricer) Price(context.Context, domain.Pair) (decimal.Decimal, error) {
	return decimal.Decimal(p), nil
}

func ranked(buyPrice, sellPrice string) *domain.RankedPair {
	fee := decimal.RequireFromString("0.1")
	return &domain.RankedPair{
		Sell: domain.VenueQuote{
			Quote: domain.Quote{Venue: "bybit", Price: decimal.RequireFromString(sellPrice)},
			Fee:   domain.FeeQuote{Venue: "bybit", MakerPercent: fee, TakerPercent: fee},
		},
		Buy: domain.VenueQuote{
			Quote: domain.Quote{Venue: "binance", Price: decimal.RequireFromString(buyPrice)},
			Fee:   domain.FeeQuote{Venue: "binance", MakerPercent: fee, TakerPercent: fee},
		},
	}
}

func testCalculator(t *testing.T) *margin.Calculator {
	t.Helper()
	calc, err := margin.NewCalculator(domain.NewWithdrawFeeTable(decimal.RequireFromString("0.005")),
		decimal.RequireFromString("2.5"),
		margin.Policy{ProfitThreshold: decimal.NewFromInt(1), LossAlertThreshold: decimal.NewFromInt(-5)})
	require.NoError(t, err)
	return calc
}

func TestEngine_Tick(t *testing.T) {
	tests := []struct {
		name         string
		buy, sell    string
		amount       int64
		wantDecision string
		wantExecute  bool
		wantNotify   string
	}{
		// 100 * 0.999 / 100 - 0.005 = 0.994 base, * 0.999 * 105 - 2.5 = 101.7656 quote
		{name: "profitable spread executes", buy: "100", sell: "105", amount: 100, wantDecision: "execute", wantExecute: true, wantNotify: "Arbitrage opportunity"},
		// flat prices lose 6.9975 on 2000
		{name: "deep loss alerts", buy: "100", sell: "100", amount: 2000, wantDecision: "alert", wantNotify: "Loss alert"},
		// flat prices lose 3.1994 on 100
		{name: "small loss is ignored", buy: "100", sell: "100", amount: 100, wantDecision: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch := fetchFunc(func(context.Context, domain.Pair) (*domain.RankedPair, error) {
				return ranked(tt.buy, tt.sell), nil
			})
			exec := &executorMock{}
			if tt.wantExecute {
				exec.On("Execute", mock.Anything, mock.AnythingOfType("domain.ArbitragePlan")).
					Return(domain.Report{State: domain.StateDone, LastState: domain.StateDone}).Once()
			}
			notify := &recordingNotifier{}
			pub := &recordingPublisher{}

			engine, err := NewEngine(zap.NewNop(), fetch, testCalculator(t), exec, notify, pub)
			require.NoError(t, err)

			report, err := engine.Tick(context.Background(), pair, decimal.NewFromInt(tt.amount))
			require.NoError(t, err)

			if tt.wantExecute {
				require.NotNil(t, report)
				assert.True(t, report.Succeeded())
			} else {
				assert.Nil(t, report)
			}
			exec.AssertExpectations(t)

			if tt.wantNotify == "" {
				assert.Empty(t, notify.messages)
			} else {
				require.Len(t, notify.messages, 1)
				assert.Contains(t, notify.messages[0], tt.wantNotify)
			}

			require.Len(t, pub.events, 1)
			assert.Equal(t, events.KindTick, pub.events[0].Kind)
			assert.Equal(t, tt.wantDecision, pub.events[0].Decision)
			assert.Equal(t, "binance", pub.events[0].BuyVenue)
			assert.Equal(t, "bybit", pub.events[0].SellVenue)
		})
	}
}

func TestEngine_TickInsufficientData(t *testing.T) {
	fetch := fetchFunc(func(context.Context, domain.Pair) (*domain.RankedPair, error) {
		return nil, errors.Wrap(domain.ErrInsufficientData, "XMR_USDT: 1 of 2 venues quoted")
	})
	exec := &executorMock{}

	engine, err := NewEngine(zap.NewNop(), fetch, testCalculator(t), exec, nil, nil)
	require.NoError(t, err)

	report, err := engine.Tick(context.Background(), pair, decimal.NewFromInt(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.Nil(t, report)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestEngine_RunKeepsGoingUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	fetch := fetchFunc(func(context.Context, domain.Pair) (*domain.RankedPair, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		if calls%2 == 0 {
			return nil, errors.New("venue exploded")
		}
		return nil, domain.ErrInsufficientData
	})

	engine, err := NewEngine(zap.NewNop(), fetch, testCalculator(t), &executorMock{}, nil, nil)
	require.NoError(t, err)

	err = engine.Run(ctx, pair, decimal.NewFromInt(10), time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestEngine_RunList(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []string
	fetch := fetchFunc(func(_ context.Context, p domain.Pair) (*domain.RankedPair, error) {
		seen = append(seen, p.String())
		if len(seen) == 4 {
			cancel()
		}
		return nil, domain.ErrInsufficientData
	})

	engine, err := NewEngine(zap.NewNop(), fetch, testCalculator(t), &executorMock{}, nil, nil)
	require.NoError(t, err)

	err = engine.RunList(ctx, []string{"TRUMP", "TRAC", "XMR"}, "USDT", decimal.NewFromInt(10), time.Millisecond, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"TRUMP_USDT", "TRAC_USDT", "XMR_USDT", "TRUMP_USDT"}, seen)

	err = engine.RunList(context.Background(), nil, "USDT", decimal.NewFromInt(10), time.Millisecond, time.Millisecond)
	assert.Error(t, err)
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := NewEngine(zap.NewNop(), nil, testCalculator(t), &executorMock{}, nil, nil)
	assert.Error(t, err)
}

func TestEngine_SimulatedRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Venues = []config.VenueConfig{
		{Name: "sim-a", Platform: config.PlatformSimulate},
		{Name: "sim-b", Platform: config.PlatformSimulate},
	}
	cfg.Amount = decimal.NewFromInt(100)
	cfg.Settlement.PollInterval = time.Millisecond
	cfg.Settlement.MaxAttempts = 5
	cfg.Simulate.SpreadPercent = decimal.NewFromInt(5)
	cfg.Simulate.Balances = map[string]decimal.Decimal{"USDT": decimal.NewFromInt(1000)}
	require.NoError(t, cfg.Validate())

	cl, err := NewClients(cfg)
	require.NoError(t, err)
	require.NotNil(t, cl.Ledger)

	broadcaster := events.NewBroadcaster(64)
	sub := broadcaster.Subscribe()
	defer broadcaster.Unsubscribe(sub)

	engine, err := BuildEngine(cfg, cl, EngineDeps{
		Confirm: confirm.Auto{},
		Notify:  &recordingNotifier{},
		Events:  broadcaster,
		Pricer:  staticPricer(decimal.NewFromInt(100)),
	}, zap.NewNop())
	require.NoError(t, err)

	report, err := engine.Tick(context.Background(), cfg.Pair, cfg.Amount)
	require.NoError(t, err)
	require.NotNil(t, report)
	require.NoError(t, report.Err)
	assert.Equal(t, domain.StateDone, report.State)
	assert.Equal(t, domain.Venue("sim-a"), report.Plan.BuyVenue)
	assert.Equal(t, domain.Venue("sim-b"), report.Plan.SellVenue)

	// buy 1 XMR for 100, receive 0.999, withdraw 0.99 after reserve and 0.005 buffer, sell 0.98
	assert.True(t, report.BoughtAmount.Equal(decimal.NewFromInt(1)), report.BoughtAmount.String())
	assert.True(t, report.WithdrawnAmount.Equal(decimal.RequireFromString("0.99")), report.WithdrawnAmount.String())
	assert.True(t, report.SoldAmount.Equal(decimal.RequireFromString("0.98")), report.SoldAmount.String())

	assert.True(t, cl.Ledger.Free("sim-a", "USDT").Equal(decimal.NewFromInt(900)))
	assert.True(t, cl.Ledger.Free("sim-a", "XMR").Equal(decimal.RequireFromString("0.004")))
	assert.True(t, cl.Ledger.Free("sim-b", "USDT").Equal(decimal.RequireFromString("1102.7971")),
		cl.Ledger.Free("sim-b", "USDT").String())

	var states []string
	for len(sub) > 0 {
		e := <-sub
		if e.Kind == events.KindTransition {
			states = append(states, e.State)
		}
	}
	assert.Equal(t, []string{
		"buy_placed", "await_buy_settlement", "withdraw_initiated",
		"await_deposit_settlement", "sell_placed", "done",
	}, states)
}

func TestNewClients_UnsupportedPlatform(t *testing.T) {
	cfg := config.Default()
	cfg.Venues = []config.VenueConfig{{Name: "k", Platform: "kraken"}, {Name: "s", Platform: config.PlatformSimulate}}

	_, err := NewClients(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform: kraken")
}

func TestNewVenue_UnsupportedClient(t *testing.T) {
	_, err := newVenue("x", struct{}{}, nil, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported client type")
}
