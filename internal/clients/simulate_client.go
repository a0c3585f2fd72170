package clients

import (
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

// SimulateClient is an in-memory ledger shared by simulated venues.
// Withdrawals from one venue are credited to the venue owning the destination
// address once the settle delay has passed.
type SimulateClient struct {
	// use Binance public API for real market prices
	binanceClient *binance.Client

	mu          sync.Mutex
	wallets     map[domain.Venue]map[string]decimal.Decimal
	addresses   map[string]domain.Venue
	pending     []simTransfer
	settleDelay time.Duration
	now         func() time.Time
}

type simTransfer struct {
	venue     domain.Venue
	asset     string
	amount    decimal.Decimal
	creditsAt time.Time
}

// NewSimulateClient creates a ledger whose transfers become spendable after settleDelay.
func NewSimulateClient(settleDelay time.Duration) *SimulateClient {
	return &SimulateClient{
		binanceClient: NewBinancePublicClient(),
		wallets:       make(map[domain.Venue]map[string]decimal.Decimal),
		addresses:     make(map[string]domain.Venue),
		settleDelay:   settleDelay,
		now:           time.Now,
	}
}

// GetBinanceClient returns the underlying Binance client.
func (c *SimulateClient) GetBinanceClient() *binance.Client {
	return c.binanceClient
}

// Fund sets the free balance of asset on venue.
func (c *SimulateClient) Fund(venue domain.Venue, asset string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet(venue)[strings.ToUpper(asset)] = amount
}

// Free returns the spendable balance of asset on venue.
func (c *SimulateClient) Free(venue domain.Venue, asset string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settle()
	return c.wallet(venue)[strings.ToUpper(asset)]
}

// Pending returns the amount of asset in flight towards venue.
func (c *SimulateClient) Pending(venue domain.Venue, asset string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, tr := range c.pending {
		if tr.venue == venue && tr.asset == strings.ToUpper(asset) {
			total = total.Add(tr.amount)
		}
	}
	return total
}

// Exchange atomically debits one asset and credits another on the same venue.
func (c *SimulateClient) Exchange(venue domain.Venue, debitAsset string, debit decimal.Decimal, creditAsset string, credit decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settle()

	w := c.wallet(venue)
	debitAsset, creditAsset = strings.ToUpper(debitAsset), strings.ToUpper(creditAsset)
	if w[debitAsset].LessThan(debit) {
		return errors.Errorf("insufficient %s balance: have %s need %s", debitAsset, w[debitAsset].String(), debit.String())
	}
	w[debitAsset] = w[debitAsset].Sub(debit)
	w[creditAsset] = w[creditAsset].Add(credit)
	return nil
}

// DepositAddress returns a deterministic EVM address for venue and asset.
func (c *SimulateClient) DepositAddress(venue domain.Venue, asset, network string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seed := strings.Join([]string{string(venue), strings.ToUpper(asset), strings.ToUpper(network)}, "/")
	addr := common.BytesToAddress(crypto.Keccak256([]byte(seed))).Hex()
	c.addresses[strings.ToLower(addr)] = venue
	return addr
}

// Transfer debits amount plus fee from the source venue and schedules amount for the address owner.
func (c *SimulateClient) Transfer(from domain.Venue, asset string, amount, fee decimal.Decimal, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settle()

	to, ok := c.addresses[strings.ToLower(address)]
	if !ok {
		return errors.Errorf("unknown deposit address %s", address)
	}
	asset = strings.ToUpper(asset)
	w := c.wallet(from)
	total := amount.Add(fee)
	if w[asset].LessThan(total) {
		return errors.Errorf("insufficient %s balance for withdrawal: have %s need %s", asset, w[asset].String(), total.String())
	}
	w[asset] = w[asset].Sub(total)
	c.pending = append(c.pending, simTransfer{
		venue:     to,
		asset:     asset,
		amount:    amount,
		creditsAt: c.now().Add(c.settleDelay),
	})
	return nil
}

func (c *SimulateClient) wallet(venue domain.Venue) map[string]decimal.Decimal {
	w, ok := c.wallets[venue]
	if !ok {
		w = make(map[string]decimal.Decimal)
		c.wallets[venue] = w
	}
	return w
}

// settle credits transfers that are due. Caller must hold mu.
func (c *SimulateClient) settle() {
	now := c.now()
	remaining := c.pending[:0]
	for _, tr := range c.pending {
		if now.Before(tr.creditsAt) {
			remaining = append(remaining, tr)
			continue
		}
		w := c.wallet(tr.venue)
		w[tr.asset] = w[tr.asset].Add(tr.amount)
	}
	c.pending = remaining
}
