package exchange

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/backnrun/pkg/core"
)

var (
	ErrInsufficientData = errors.New("insufficient data")
	defaultHeaderMap    = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
)

// SymbolFeed names one CSV source file and its native interval.
type SymbolFeed struct {
	Symbol   string
	File     string
	Interval string
}

// CSVFeeder is a paper/backtest core.Feeder backed by historical OHLCV CSV
// files, resampled to a single target interval. FetchClosedCandles drains
// candles from the front of each series as the caller advances through
// history, the same way a live poll drains newly-closed bars from an
// exchange.
type CSVFeeder struct {
	feeds   map[string]SymbolFeed
	candles map[string][]core.Candle
}

// AssetsInfo returns synthetic, effectively unconstrained asset limits —
// CSV replay has no exchange lot-size/tick-size rules to honor.
func (c CSVFeeder) AssetsInfo(symbol string) core.AssetInfo {
	asset, quote := SplitAssetQuote(symbol)
	return core.AssetInfo{
		BaseAsset:          asset,
		QuoteAsset:         quote,
		MaxPrice:           math.MaxFloat64,
		MaxQuantity:        math.MaxFloat64,
		StepSize:           0.00000001,
		TickSize:           0.00000001,
		QuotePrecision:     8,
		BaseAssetPrecision: 8,
	}
}

// FetchClosedCandles returns up to limit candles from the front of the
// symbol's resampled series and removes them, mirroring the scheduler's
// expectation that a fetch only ever returns newly-closed bars.
func (c *CSVFeeder) FetchClosedCandles(_ context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	if _, known := c.feeds[symbol]; !known {
		return nil, fmt.Errorf("%w: %s", core.ErrSymbolUnknown, symbol)
	}

	key := feedKey(symbol, interval)
	available := c.candles[key]
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, symbol)
	}

	if limit <= 0 || limit > len(available) {
		limit = len(available)
	}

	result := available[:limit]
	c.candles[key] = available[limit:]
	return result, nil
}

func parseHeaders(headers []string) (headerMap map[string]int, additional []string, hasCustomHeaders bool) {
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, nil, false
	}

	headerMap = make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
		if _, exists := defaultHeaderMap[header]; !exists {
			additional = append(additional, header)
		}
	}

	return headerMap, additional, true
}

// NewCSVFeeder loads each feed's CSV file and resamples it into
// targetInterval.
func NewCSVFeeder(targetInterval string, feeds ...SymbolFeed) (*CSVFeeder, error) {
	feeder := &CSVFeeder{
		feeds:   make(map[string]SymbolFeed),
		candles: make(map[string][]core.Candle),
	}

	for _, feed := range feeds {
		feeder.feeds[feed.Symbol] = feed

		candles, err := readCandlesFromCSV(feed)
		if err != nil {
			return nil, err
		}

		sourceKey := feedKey(feed.Symbol, feed.Interval)
		feeder.candles[sourceKey] = candles

		if err := feeder.resample(feed.Symbol, feed.Interval, targetInterval); err != nil {
			return nil, err
		}
	}

	return feeder, nil
}

func readCandlesFromCSV(feed SymbolFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}

	headerMap, _, hasCustomHeaders := parseHeaders(csvLines[0])
	if hasCustomHeaders {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for _, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, feed.Symbol, feed.Interval)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func parseCandleFromLine(line []string, headerMap map[string]int, symbol, interval string) (core.Candle, error) {
	timestamp, err := strconv.Atoi(line[headerMap["time"]])
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		OpenTime: time.Unix(int64(timestamp), 0).UTC(),
		Symbol:   symbol,
		Interval: interval,
		Complete: true,
	}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Candle{}, err
	}

	return candle, nil
}

func feedKey(symbol, interval string) string {
	return fmt.Sprintf("%s--%s", symbol, interval)
}

// Limit trims every loaded series down to the trailing window duration,
// for bounding memory in long backtest replays.
func (c *CSVFeeder) Limit(duration time.Duration) *CSVFeeder {
	for key, candles := range c.candles {
		if len(candles) == 0 {
			continue
		}

		start := candles[len(candles)-1].OpenTime.Add(-duration)
		c.candles[key] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.OpenTime.After(start)
		})
	}
	return c
}

func isFistCandlePeriod(t time.Time, fromInterval, targetInterval string) (bool, error) {
	fromDuration, err := str2duration.ParseDuration(fromInterval)
	if err != nil {
		return false, err
	}

	prev := t.Add(-fromDuration).UTC()
	return isLastCandlePeriod(prev, fromInterval, targetInterval)
}

func isLastCandlePeriod(t time.Time, fromInterval, targetInterval string) (bool, error) {
	if fromInterval == targetInterval {
		return true, nil
	}

	fromDuration, err := str2duration.ParseDuration(fromInterval)
	if err != nil {
		return false, err
	}

	next := t.Add(fromDuration).UTC()
	return isTimeOnPeriodBoundary(next, targetInterval)
}

func isTimeOnPeriodBoundary(t time.Time, targetInterval string) (bool, error) {
	switch targetInterval {
	case "1m":
		return t.Second() == 0, nil
	case "5m":
		return t.Minute()%5 == 0 && t.Second() == 0, nil
	case "10m":
		return t.Minute()%10 == 0 && t.Second() == 0, nil
	case "15m":
		return t.Minute()%15 == 0 && t.Second() == 0, nil
	case "30m":
		return t.Minute()%30 == 0 && t.Second() == 0, nil
	case "1h":
		return t.Minute() == 0 && t.Second() == 0, nil
	case "2h":
		return t.Hour()%2 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "4h":
		return t.Hour()%4 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "12h":
		return t.Hour()%12 == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1d":
		return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	case "1w":
		return t.Weekday() == time.Sunday && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0, nil
	default:
		return false, fmt.Errorf("invalid interval: %s", targetInterval)
	}
}

func (c *CSVFeeder) resample(symbol, sourceInterval, targetInterval string) error {
	sourceKey := feedKey(symbol, sourceInterval)
	targetKey := feedKey(symbol, targetInterval)

	sourceCandles := c.candles[sourceKey]
	if len(sourceCandles) == 0 {
		return nil
	}

	startIdx, err := findFirstPeriodCandle(sourceCandles, sourceInterval, targetInterval)
	if err != nil {
		return err
	}

	targetCandles, err := resampleCandles(sourceCandles[startIdx:], sourceInterval, targetInterval)
	if err != nil {
		return err
	}

	c.candles[targetKey] = targetCandles
	return nil
}

func findFirstPeriodCandle(candles []core.Candle, sourceInterval, targetInterval string) (int, error) {
	for i := range candles {
		isFirst, err := isFistCandlePeriod(candles[i].OpenTime, sourceInterval, targetInterval)
		if err != nil {
			return 0, err
		}
		if isFirst {
			return i, nil
		}
	}
	return 0, nil
}

func resampleCandles(sourceCandles []core.Candle, sourceInterval, targetInterval string) ([]core.Candle, error) {
	if len(sourceCandles) == 0 {
		return nil, nil
	}

	targetCandles := make([]core.Candle, 0, len(sourceCandles)/4)

	var current core.Candle
	inPeriod := false

	for _, candle := range sourceCandles {
		isLast, err := isLastCandlePeriod(candle.OpenTime, sourceInterval, targetInterval)
		if err != nil {
			return nil, err
		}

		if !inPeriod {
			current = candle
			current.Interval = targetInterval
			inPeriod = true
			continue
		}

		current.High = math.Max(current.High, candle.High)
		current.Low = math.Min(current.Low, candle.Low)
		current.Close = candle.Close
		current.Volume += candle.Volume

		if isLast {
			current.Complete = true
			targetCandles = append(targetCandles, current)
			inPeriod = false
		}
	}

	return targetCandles, nil
}
