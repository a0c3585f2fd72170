package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

type BybitVenue struct {
	name   domain.Venue
	client *bybit.Client
}

func NewBybitVenue(name domain.Venue, client *bybit.Client) (*BybitVenue, error) {
	if client == nil {
		return nil, errors.New("bybit client is required")
	}
	return &BybitVenue{name: name, client: client}, nil
}

func (v *BybitVenue) Name() domain.Venue {
	return v.name
}

func (v *BybitVenue) Price(_ context.Context, pair domain.Pair) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(pair.Symbol())

	result, err := v.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: "spot",
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "bybit price %s", pair.String())
	}

	if len(result.Result.Spot.List) == 0 {
		return decimal.Zero, fmt.Errorf("bybit API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}

// TradingFee returns the account fee rate for the symbol. Bybit reports fractions, converted to percent.
func (v *BybitVenue) TradingFee(_ context.Context, pair domain.Pair) (domain.FeeQuote, error) {
	symbol := bybit.SymbolV5(pair.Symbol())
	res, err := v.client.V5().Account().GetFeeRate(bybit.V5GetFeeRateParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return domain.FeeQuote{}, errors.Wrapf(err, "bybit fee rate %s", pair.String())
	}
	if len(res.Result.List) == 0 {
		return domain.FeeQuote{}, fmt.Errorf("bybit API returned no fee rate for %s", pair.String())
	}

	maker, err := parseDecimal(res.Result.List[0].MakerFeeRate)
	if err != nil {
		return domain.FeeQuote{}, errors.Wrap(err, "failed to parse maker fee rate")
	}
	taker, err := parseDecimal(res.Result.List[0].TakerFeeRate)
	if err != nil {
		return domain.FeeQuote{}, errors.Wrap(err, "failed to parse taker fee rate")
	}

	return domain.FeeQuote{
		Venue:        v.name,
		MakerPercent: maker.Mul(hundred),
		TakerPercent: taker.Mul(hundred),
	}, nil
}

// Balance reports the unified trading account. Coins credited to the funding
// account, where Bybit books deposits, are swept into it first.
func (v *BybitVenue) Balance(_ context.Context, asset string) (domain.Balance, error) {
	if err := v.sweepFunding(asset); err != nil {
		return domain.Balance{}, err
	}

	res, err := v.client.V5().Account().GetWalletBalance(bybit.AccountTypeV5UNIFIED, []bybit.Coin{bybit.Coin(asset)})
	if err != nil {
		return domain.Balance{}, errors.Wrap(bybitAuthError(err), "failed to get bybit wallet balance")
	}

	balance := domain.Balance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}
	if len(res.Result.List) == 0 {
		return balance, nil
	}

	for _, coin := range res.Result.List[0].Coin {
		if string(coin.Coin) != asset {
			continue
		}
		total, err := parseDecimal(coin.WalletBalance)
		if err != nil {
			return domain.Balance{}, errors.Wrap(err, "failed to parse wallet balance")
		}
		locked, err := parseDecimal(coin.Locked)
		if err != nil {
			return domain.Balance{}, errors.Wrap(err, "failed to parse locked balance")
		}
		balance.Free = total.Sub(locked)
		balance.Locked = locked
	}

	return balance, nil
}

// PlaceOrder places a spot market order sized in base units.
func (v *BybitVenue) PlaceOrder(_ context.Context, pair domain.Pair, side domain.Side, size decimal.Decimal) (domain.ExecutionResult, error) {
	sideType := bybit.SideBuy
	if side == domain.SideSell {
		sideType = bybit.SideSell
	}

	linkID := clientOrderPrefix + uuid.NewString()[:18]
	unit := bybit.MarketUnitBaseCoin
	res, err := v.client.V5().Order().CreateOrder(bybit.V5CreateOrderParam{
		Category:    "spot",
		Symbol:      bybit.SymbolV5(pair.Symbol()),
		Side:        sideType,
		OrderType:   bybit.OrderTypeMarket,
		Qty:         size.String(),
		MarketUnit:  &unit,
		OrderLinkID: &linkID,
		IsLeverage:  nil,
	})
	if err != nil {
		return domain.Failed(err.Error()), nil
	}

	return domain.Succeeded(res.Result.OrderID, "order accepted"), nil
}

// Withdraw moves amount from the unified account to the funding account and
// withdraws it from there.
func (v *BybitVenue) Withdraw(_ context.Context, asset string, amount decimal.Decimal, address, network string) (domain.ExecutionResult, error) {
	if err := v.transfer(asset, amount, bybit.AccountTypeV5UNIFIED, bybit.AccountTypeV5FUND); err != nil {
		return domain.Failed(err.Error()), nil
	}

	chain := network
	account := bybit.AccountTypeV5FUND
	res, err := v.client.V5().Asset().Withdraw(bybit.V5WithdrawParam{
		Coin:        bybit.Coin(asset),
		Chain:       &chain,
		Address:     address,
		Amount:      amount.String(),
		Timestamp:   time.Now().UnixMilli(),
		AccountType: &account,
	})
	if err != nil {
		return domain.Failed(err.Error()), nil
	}

	return domain.Succeeded(res.Result.ID, "withdrawal submitted"), nil
}

func (v *BybitVenue) DepositAddress(_ context.Context, asset, network string) (string, error) {
	chain := network
	res, err := v.client.V5().Asset().GetMasterDepositAddress(bybit.V5GetMasterDepositAddressParam{
		Coin:      bybit.Coin(asset),
		ChainType: &chain,
	})
	if err != nil {
		return "", errors.Wrapf(err, "bybit deposit address %s/%s", asset, network)
	}

	for _, c := range res.Result.Chains {
		if c.AddressDeposit != "" {
			return c.AddressDeposit, nil
		}
	}

	return "", fmt.Errorf("bybit returned empty deposit address for %s on %s", asset, network)
}

func (v *BybitVenue) sweepFunding(asset string) error {
	res, err := v.client.V5().Asset().GetAllCoinsBalance(bybit.V5GetAllCoinsBalanceParam{
		AccountType: bybit.AccountTypeV5FUND,
		Coins:       []bybit.Coin{bybit.Coin(asset)},
	})
	if err != nil {
		return errors.Wrap(bybitAuthError(err), "failed to get bybit funding balance")
	}

	for _, coin := range res.Result.Balance {
		if coin == nil || string(coin.Coin) != asset {
			continue
		}
		available, err := parseDecimal(coin.TransferBalance)
		if err != nil {
			return errors.Wrap(err, "failed to parse funding balance")
		}
		if !available.IsPositive() {
			continue
		}
		if err := v.transfer(asset, available, bybit.AccountTypeV5FUND, bybit.AccountTypeV5UNIFIED); err != nil {
			return err
		}
	}
	return nil
}

func (v *BybitVenue) transfer(asset string, amount decimal.Decimal, from, to bybit.AccountTypeV5) error {
	_, err := v.client.V5().Asset().CreateInternalTransfer(bybit.V5CreateInternalTransferParam{
		TransferID:      uuid.NewString(),
		Coin:            bybit.Coin(asset),
		Amount:          amount.String(),
		FromAccountType: from,
		ToAccountType:   to,
	})
	if err != nil {
		return errors.Wrapf(err, "bybit transfer %s %s from %s to %s", amount.String(), asset, from, to)
	}
	return nil
}

// bybit V5 codes for an invalid key, a bad signature and a key without permission.
var bybitAuthCodes = map[int]struct{}{10003: {}, 10004: {}, 10005: {}}

func bybitAuthError(err error) error {
	if errors.Is(err, bybit.ErrInvalidRequest) || errors.Is(err, bybit.ErrForbiddenRequest) {
		return errors.Wrapf(domain.ErrVenueAuth, "bybit: %v", err)
	}
	var resp *bybit.ErrorResponse
	if errors.As(err, &resp) {
		if _, ok := bybitAuthCodes[resp.RetCode]; ok {
			return errors.Wrapf(domain.ErrVenueAuth, "bybit %d: %s", resp.RetCode, resp.RetMsg)
		}
	}
	return err
}
