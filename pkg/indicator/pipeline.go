package indicator

import (
	"math"

	"github.com/raykavin/backnrun/pkg/core"
)

// window lengths, spec §4.1.
const (
	emaShortPeriod    = 12
	emaLongPeriod     = 26
	emaVeryLongPeriod = 200
	rsiPeriod         = 14
	macdSignalPeriod  = 9
	adxPeriod         = 14
	atrPeriod         = 14
	bbPeriod          = 20
	zscorePeriod      = 50
	volumeMeanPeriod  = 20
	slopeLookback     = 5
	crossLookback     = 3
)

// minSamples is the sample floor (the z-score window plus one) below
// which the pipeline never marks a snapshot Defined; Defined additionally
// waits for the EMA-200 to produce a nonzero value.
const minSamples = zscorePeriod + 1

// NDayLowPeriod returns the rolling window, in candles, that spans
// roughly one calendar day at the given interval (spec §4.1).
func NDayLowPeriod(interval string) int {
	switch interval {
	case "1m":
		return 1440
	case "5m":
		return 288
	case "15m":
		return 96
	case "30m":
		return 48
	case "1h":
		return 24
	case "4h":
		return 6
	case "1d":
		return 1
	default:
		return 24
	}
}

// Compute runs the full indicator pipeline over a closed-candle series
// and returns one IndicatorSnapshot per candle (spec §4.1). It is a pure
// function: the same candle series always yields the same snapshots.
func Compute(candles []core.Candle) []core.IndicatorSnapshot {
	n := len(candles)
	snapshots := make([]core.IndicatorSnapshot, n)
	if n == 0 {
		return snapshots
	}

	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	emaShort := EMA(closes, emaShortPeriod)
	emaLong := EMA(closes, emaLongPeriod)
	emaVeryLong := EMA(closes, emaVeryLongPeriod)
	rsi := RSI(closes, rsiPeriod)
	macdLine, macdSignal, macdHist := MACD(closes, emaShortPeriod, emaLongPeriod, macdSignalPeriod)
	adx := ADX(highs, lows, closes, adxPeriod)
	plusDI := PlusDI(highs, lows, closes, adxPeriod)
	minusDI := MinusDI(highs, lows, closes, adxPeriod)
	atr := ATR(highs, lows, closes, atrPeriod)
	bbUpper, bbMid, bbLower := BB(closes, bbPeriod, 2.0, TypeSMA)
	sma50 := SMA(closes, zscorePeriod)
	std50 := StdDev(closes, zscorePeriod, 1.0)
	volMean := SMA(volumes, volumeMeanPeriod)
	nDayLowWindow := NDayLowPeriod(candles[0].Interval)
	nDayLow := Min(lows, nDayLowWindow)

	for i := range candles {
		snap := core.IndicatorSnapshot{
			Symbol: candles[i].Symbol,
			At:     candles[i].OpenTime,
			Close:  closes[i],
			Volume: volumes[i],

			EMAShort:    valueAt(emaShort, i),
			EMALong:     valueAt(emaLong, i),
			EMAVeryLong: valueAt(emaVeryLong, i),

			RSI: valueAt(rsi, i),

			MACDLine:      valueAt(macdLine, i),
			MACDSignal:    valueAt(macdSignal, i),
			MACDHistogram: valueAt(macdHist, i),

			ADX:     valueAt(adx, i),
			PlusDI:  valueAt(plusDI, i),
			MinusDI: valueAt(minusDI, i),

			ATR: valueAt(atr, i),

			BBUpper: valueAt(bbUpper, i),
			BBMid:   valueAt(bbMid, i),
			BBLower: valueAt(bbLower, i),

			VolumeMean: valueAt(volMean, i),
			NDayLow:    valueAt(nDayLow, i),
		}

		if snap.Close > 0 {
			snap.ATRPct = snap.ATR / snap.Close
		}

		if i >= zscorePeriod && std50[i] != 0 {
			snap.ZScore = (closes[i] - sma50[i]) / std50[i]
			snap.ZScoreDefined = true
		}

		if i >= slopeLookback && emaVeryLong[i-slopeLookback] != 0 {
			snap.EMAVeryLongSlopePct = (emaVeryLong[i] - emaVeryLong[i-slopeLookback]) / emaVeryLong[i-slopeLookback]
		}

		snap.MACDCrossedUpRecently = crossedUpRecently(macdLine, macdSignal, i, crossLookback)
		snap.EMAShortCrossedUpRecently = crossedUpRecently(emaShort, emaLong, i, crossLookback)

		snap.Defined = i >= minSamples && !math.IsNaN(snap.EMAVeryLong) && snap.EMAVeryLong != 0

		snapshots[i] = snap
	}

	return snapshots
}

// valueAt guards against talib's convention of returning a slice shorter
// than the input for unwarmed windows.
func valueAt(series []float64, i int) float64 {
	if i < 0 || i >= len(series) {
		return 0
	}
	return series[i]
}

// crossedUpRecently reports whether fast crossed above slow at any point
// in the lookback window ending at i.
func crossedUpRecently(fast, slow []float64, i, lookback int) bool {
	start := i - lookback
	if start < 1 {
		start = 1
	}
	for j := start; j <= i && j < len(fast) && j < len(slow); j++ {
		if fast[j-1] <= slow[j-1] && fast[j] > slow[j] {
			return true
		}
	}
	return false
}
