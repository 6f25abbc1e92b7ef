package core

import (
	"strconv"
	"time"
)

// CandleSubscriber receives every candle dispatched by the scheduler,
// complete or not, mirroring the teacher's notification-feed pattern.
type CandleSubscriber interface {
	OnCandle(Candle)
}

// Candle represents one OHLCV bar for a tracked symbol.
type Candle struct {
	Symbol   string
	Interval string
	// OpenTime is strictly increasing per symbol at the configured interval.
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	// Complete reports whether the exchange has reported this bar as closed.
	Complete bool
}

// GetSymbol returns the trading symbol identifier for the candle.
func (c Candle) GetSymbol() string { return c.Symbol }

// GetOpenTime returns the open timestamp of the candle.
func (c Candle) GetOpenTime() time.Time { return c.OpenTime }

// GetOpen returns the opening price of the candle.
func (c Candle) GetOpen() float64 { return c.Open }

// GetClose returns the closing price of the candle.
func (c Candle) GetClose() float64 { return c.Close }

// GetLow returns the lowest price during the candle period.
func (c Candle) GetLow() float64 { return c.Low }

// GetHigh returns the highest price during the candle period.
func (c Candle) GetHigh() float64 { return c.High }

// GetVolume returns the trading volume during the candle period.
func (c Candle) GetVolume() float64 { return c.Volume }

// IsComplete returns whether the candle period is closed.
func (c Candle) IsComplete() bool { return c.Complete }

// IsEmpty checks if the candle contains no significant data.
func (c Candle) IsEmpty() bool {
	return c.Symbol == "" && c.Close == 0 && c.Open == 0 && c.Volume == 0
}

// ToSlice converts a candle to a string slice for diagnostics export.
func (c Candle) ToSlice(precision int) []string {
	return []string{
		strconv.FormatInt(c.OpenTime.Unix(), 10),
		strconv.FormatFloat(c.Open, 'f', precision, 64),
		strconv.FormatFloat(c.Close, 'f', precision, 64),
		strconv.FormatFloat(c.Low, 'f', precision, 64),
		strconv.FormatFloat(c.High, 'f', precision, 64),
		strconv.FormatFloat(c.Volume, 'f', precision, 64),
	}
}

// Less orders candles by open time, then symbol, for the scheduler's
// priority queue — the same tie-break chain as the teacher's Candle.Less,
// trimmed to the fields this engine actually tracks (no UpdatedAt: a closed
// candle from the exchange feed never revises in place here).
func (c Candle) Less(j Item) bool {
	other := j.(Candle)

	diff := other.OpenTime.Sub(c.OpenTime)
	if diff != 0 {
		return diff > 0
	}

	return c.Symbol < other.Symbol
}
