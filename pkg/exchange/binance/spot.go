package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/raykavin/backnrun/pkg/core"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// invalidSymbolCode is the Binance API error code for an unknown/delisted
// symbol (spec §7's one permanent-upstream condition).
const invalidSymbolCode = -1121

func wrapSymbolError(symbol string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Code == invalidSymbolCode {
		return fmt.Errorf("%w: %s", core.ErrSymbolUnknown, symbol)
	}
	return err
}

// Spot is the live core.Feeder/core.Broker adapter for Binance spot
// trading. It never places a limit, stop, or OCO order: the engine only
// ever submits MARKET orders and treats the fill report as authoritative
// (spec §6, §9 Open Question #3).
type Spot struct {
	ctx        context.Context
	client     *binance.Client
	log        core.Logger
	assetsInfo map[string]core.AssetInfo
}

// SpotOption configures a Spot client at construction time.
type SpotOption func(*Spot)

func WithSpotCredentials(key, secret string) SpotOption {
	return func(s *Spot) {
		s.client = binance.NewClient(key, secret)
	}
}

func WithSpotTestNet() SpotOption {
	return func(_ *Spot) {
		binance.UseTestnet = true
	}
}

func WithSpotCustomMainAPIEndpoint(apiURL, wsURL, combinedURL string) SpotOption {
	return func(_ *Spot) {
		binance.BaseAPIMainURL = apiURL
		binance.BaseWsMainURL = wsURL
		binance.BaseCombinedMainURL = combinedURL
	}
}

func WithSpotCustomTestnetAPIEndpoint(apiURL, wsURL, combinedURL string) SpotOption {
	return func(_ *Spot) {
		binance.BaseAPITestnetURL = apiURL
		binance.BaseWsTestnetURL = wsURL
		binance.BaseCombinedTestnetURL = combinedURL
	}
}

// NewSpot pings the API, loads exchange info for every symbol's precision
// and lot-size limits, and returns a ready client.
func NewSpot(ctx context.Context, log core.Logger, options ...SpotOption) (*Spot, error) {
	binance.WebsocketKeepalive = true

	spot := &Spot{
		ctx:        ctx,
		client:     binance.NewClient("", ""),
		log:        log,
		assetsInfo: make(map[string]core.AssetInfo),
	}

	for _, option := range options {
		option(spot)
	}

	if err := spot.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	exchangeInfo, err := spot.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, info := range exchangeInfo.Symbols {
		assetInfo := core.AssetInfo{
			BaseAsset:          info.BaseAsset,
			QuoteAsset:         info.QuoteAsset,
			BaseAssetPrecision: info.BaseAssetPrecision,
			QuotePrecision:     info.QuotePrecision,
		}

		for _, filter := range info.Filters {
			typ, ok := filter["filterType"]
			if !ok {
				continue
			}

			if typ == string(binance.SymbolFilterTypeLotSize) {
				assetInfo.MinQuantity, _ = strconv.ParseFloat(filter["minQty"].(string), 64)
				assetInfo.MaxQuantity, _ = strconv.ParseFloat(filter["maxQty"].(string), 64)
				assetInfo.StepSize, _ = strconv.ParseFloat(filter["stepSize"].(string), 64)
			}

			if typ == string(binance.SymbolFilterTypePriceFilter) {
				assetInfo.MinPrice, _ = strconv.ParseFloat(filter["minPrice"].(string), 64)
				assetInfo.MaxPrice, _ = strconv.ParseFloat(filter["maxPrice"].(string), 64)
				assetInfo.TickSize, _ = strconv.ParseFloat(filter["tickSize"].(string), 64)
			}
		}

		spot.assetsInfo[info.Symbol] = assetInfo
	}

	log.Info("[SETUP] using Binance spot exchange")
	return spot, nil
}

// AssetsInfo returns the exchange's reported precision and lot-size limits
// for symbol.
func (s *Spot) AssetsInfo(symbol string) core.AssetInfo {
	return s.assetsInfo[symbol]
}

func (s *Spot) formatQuantity(symbol string, value float64) string {
	return formatQuantity(s.assetsInfo, symbol, value)
}

func (s *Spot) validate(symbol string, quantity float64) error {
	return validateOrder(s.assetsInfo, symbol, quantity)
}

// FetchClosedCandles returns the last limit fully-closed candles for
// symbol at interval, discarding the exchange's still-forming last bar.
func (s *Spot) FetchClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	data, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, wrapSymbolError(symbol, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	candles := make([]core.Candle, 0, len(data)-1)
	for i, d := range data {
		if i == len(data)-1 {
			break // still-forming candle
		}
		candles = append(candles, convertKlineToCandle(symbol, interval, *d))
	}

	return candles, nil
}

// CandlesByPeriod returns every candle between start and end for symbol
// at interval, for historical backfill (the "download" command). Unlike
// FetchClosedCandles it does not discard the exchange's still-forming
// last bar, since callers here always request a closed historical range.
func (s *Spot) CandlesByPeriod(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Candle, error) {
	data, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Limit(1000).
		Do(ctx)
	if err != nil {
		return nil, wrapSymbolError(symbol, err)
	}

	candles := make([]core.Candle, 0, len(data))
	for _, d := range data {
		candles = append(candles, convertKlineToCandle(symbol, interval, *d))
	}
	return candles, nil
}

// ExecuteOrder submits a market order and reports the fill. Only
// OrderTypeMarket is supported; any other orderType is a caller bug.
func (s *Spot) ExecuteOrder(ctx context.Context, symbol string, side core.SideType, orderType core.OrderType, qty float64, _ float64) (core.OrderResult, error) {
	if orderType != core.OrderTypeMarket {
		return core.OrderResult{}, fmt.Errorf("binance: unsupported order type %q: market orders only", orderType)
	}

	if err := s.validate(symbol, qty); err != nil {
		return core.OrderResult{}, err
	}

	order, err := s.client.NewCreateOrderService().
		Symbol(symbol).
		Type(binance.OrderTypeMarket).
		Side(binance.SideType(side)).
		Quantity(s.formatQuantity(symbol, qty)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return core.OrderResult{}, err
	}

	cost, err := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	if err != nil {
		return core.OrderResult{}, err
	}

	filledQty, err := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if err != nil {
		return core.OrderResult{}, err
	}

	var avgPrice float64
	if filledQty > 0 {
		avgPrice = cost / filledQty
	}

	commission := estimateCommission(order)

	return core.OrderResult{
		ExchangeID: order.OrderID,
		Symbol:     order.Symbol,
		Side:       core.SideType(order.Side),
		Type:       core.OrderType(order.Type),
		Status:     core.OrderStatusType(order.Status),
		Price:      avgPrice,
		Quantity:   filledQty,
		Commission: commission,
		CreatedAt:  time.Unix(0, order.TransactTime*int64(time.Millisecond)),
	}, nil
}

// estimateCommission sums the commission amounts Binance reports against
// each fill; FULL response orders report fills, not a single commission field.
func estimateCommission(order *binance.CreateOrderResponse) float64 {
	var total float64
	for _, fill := range order.Fills {
		amount, err := strconv.ParseFloat(fill.Commission, 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return total
}

// Account returns every non-zero asset balance held on the spot wallet.
func (s *Spot) Account(ctx context.Context) (core.Account, error) {
	acc, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return core.Account{}, err
	}

	balances := make([]core.Balance, 0, len(acc.Balances))
	for _, balance := range acc.Balances {
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return core.Account{}, err
		}
		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return core.Account{}, err
		}

		if free == 0 && locked == 0 {
			continue
		}

		balances = append(balances, core.Balance{
			Asset: balance.Asset,
			Free:  free,
			Lock:  locked,
		})
	}

	return core.Account{Balances: balances}, nil
}

// convertKlineToCandle converts a Binance REST kline into a core.Candle.
func convertKlineToCandle(symbol, interval string, k binance.Kline) core.Candle {
	candle := core.Candle{
		Symbol:   symbol,
		Interval: interval,
		OpenTime: time.Unix(0, k.OpenTime*int64(time.Millisecond)),
		Complete: true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
