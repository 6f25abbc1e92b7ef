package core

import "time"

// IndicatorSnapshot holds every derived series sampled at one candle's
// open time (spec §3). Defined is false until the series has at least
// max(window_length) samples; consumers must treat an undefined snapshot
// as forcing a HOLD signal, never read the zero values as real.
type IndicatorSnapshot struct {
	Symbol string
	At     time.Time
	Close  float64
	Volume float64

	EMAShort    float64
	EMALong     float64
	EMAVeryLong float64
	// EMAVeryLongSlopePct is the percentage change of EMAVeryLong over the
	// last 5 candles, used by the downtrend filter.
	EMAVeryLongSlopePct float64

	RSI float64

	MACDLine      float64
	MACDSignal    float64
	MACDHistogram float64
	// MACDCrossedUpRecently is true if the line crossed above the signal
	// within the last 3 candles.
	MACDCrossedUpRecently bool

	ADX     float64
	PlusDI  float64
	MinusDI float64

	ATR    float64
	ATRPct float64

	BBUpper float64
	BBMid   float64
	BBLower float64

	// ZScoreDefined is false before 50 samples exist (spec §4.1).
	ZScore        float64
	ZScoreDefined bool

	VolumeMean float64

	// NDayLow is the rolling min(low) over the last N candles, N derived
	// from the interval so the window spans ~1 day.
	NDayLow float64

	// EMAShortCrossedUpRecently is true if EMAShort crossed above EMALong
	// within the last 3 candles (used by the vote aggregator's EMA rule).
	EMAShortCrossedUpRecently bool

	Defined bool
}
