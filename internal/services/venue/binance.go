package venue

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

type BinanceVenue struct {
	name   domain.Venue
	client *binance.Client
}

func NewBinanceVenue(name domain.Venue, client *binance.Client) (*BinanceVenue, error) {
	if client == nil {
		return nil, errors.New("binance client is required")
	}
	return &BinanceVenue{name: name, client: client}, nil
}

func (v *BinanceVenue) Name() domain.Venue {
	return v.name
}

func (v *BinanceVenue) Price(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	prices, err := v.client.NewListPricesService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "binance price %s", pair.String())
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("binance API returned empty prices for %s", pair.String())
	}

	return decimal.NewFromString(prices[0].Price)
}

// TradingFee returns the account commission for the symbol. Binance reports fractions, converted to percent.
func (v *BinanceVenue) TradingFee(ctx context.Context, pair domain.Pair) (domain.FeeQuote, error) {
	fees, err := v.client.NewTradeFeeService().Symbol(pair.Symbol()).Do(ctx)
	if err != nil {
		return domain.FeeQuote{}, errors.Wrapf(err, "binance trade fee %s", pair.String())
	}
	if len(fees) == 0 {
		return domain.FeeQuote{}, fmt.Errorf("binance API returned no trade fee for %s", pair.String())
	}

	maker, err := parseDecimal(fees[0].MakerCommission)
	if err != nil {
		return domain.FeeQuote{}, errors.Wrap(err, "failed to parse maker commission")
	}
	taker, err := parseDecimal(fees[0].TakerCommission)
	if err != nil {
		return domain.FeeQuote{}, errors.Wrap(err, "failed to parse taker commission")
	}

	return domain.FeeQuote{
		Venue:        v.name,
		MakerPercent: maker.Mul(hundred),
		TakerPercent: taker.Mul(hundred),
	}, nil
}

func (v *BinanceVenue) Balance(ctx context.Context, asset string) (domain.Balance, error) {
	account, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return domain.Balance{}, errors.Wrap(authError(err), "failed to get binance account balance")
	}

	for _, balance := range account.Balances {
		if balance.Asset != asset {
			continue
		}
		free, err := parseDecimal(balance.Free)
		if err != nil {
			return domain.Balance{}, errors.Wrap(err, "failed to parse balance")
		}
		locked, err := parseDecimal(balance.Locked)
		if err != nil {
			return domain.Balance{}, errors.Wrap(err, "failed to parse locked balance")
		}
		return domain.Balance{Asset: asset, Free: free, Locked: locked}, nil
	}

	return domain.Balance{Asset: asset, Free: decimal.Zero, Locked: decimal.Zero}, nil
}

// PlaceOrder places a spot market order sized in base units.
// Venue rejections come back as a failed result, transport errors as error.
func (v *BinanceVenue) PlaceOrder(ctx context.Context, pair domain.Pair, side domain.Side, size decimal.Decimal) (domain.ExecutionResult, error) {
	sideType := binance.SideTypeBuy
	if side == domain.SideSell {
		sideType = binance.SideTypeSell
	}

	clientOrderID := clientOrderPrefix + uuid.NewString()[:18]
	order, err := v.client.NewCreateOrderService().Symbol(pair.Symbol()).
		Side(sideType).Type(binance.OrderTypeMarket).
		Quantity(size.String()).
		NewClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return rejection(err, "failed to place binance order")
	}

	return domain.Succeeded(fmt.Sprintf("%d", order.OrderID), string(order.Status)), nil
}

func (v *BinanceVenue) Withdraw(ctx context.Context, asset string, amount decimal.Decimal, address, network string) (domain.ExecutionResult, error) {
	res, err := v.client.NewCreateWithdrawService().
		Coin(asset).
		Network(network).
		Address(address).
		Amount(amount.String()).
		WithdrawOrderID(uuid.NewString()).
		Do(ctx)
	if err != nil {
		return rejection(err, "failed to create binance withdrawal")
	}

	return domain.Succeeded(res.ID, "withdrawal submitted"), nil
}

func (v *BinanceVenue) DepositAddress(ctx context.Context, asset, network string) (string, error) {
	res, err := v.client.NewGetDepositAddressService().Coin(asset).Network(network).Do(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "binance deposit address %s/%s", asset, network)
	}
	if res.Address == "" {
		return "", fmt.Errorf("binance returned empty deposit address for %s on %s", asset, network)
	}

	return res.Address, nil
}

// rejection maps API errors to a failed result and keeps other errors as errors.
func rejection(err error, msg string) (domain.ExecutionResult, error) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return domain.Failed(apiErr.Message), nil
	}
	return domain.Failed(err.Error()), errors.Wrap(err, msg)
}

// binance codes for a malformed key, a bad signature and a key without permission.
var binanceAuthCodes = map[int64]struct{}{-1022: {}, -2014: {}, -2015: {}}

func authError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if _, ok := binanceAuthCodes[apiErr.Code]; ok {
			return errors.Wrapf(domain.ErrVenueAuth, "binance %d: %s", apiErr.Code, apiErr.Message)
		}
	}
	return err
}
