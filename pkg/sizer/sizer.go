package sizer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/raykavin/backnrun/pkg/core"
)

// ClosedTrade is the minimal closed-trade shape the Kelly step needs:
// the realized return of one trade, as a fraction of its entry notional.
type ClosedTrade struct {
	ReturnPct float64
}

// Size implements the adaptive position sizer (spec §4.5): a base
// fraction from signal strength, a regime multiplier, and an optional
// Kelly multiplier built from a rolling window of closed trades.
func Size(delta int, adx float64, mode core.RegimeMode, atrPct float64, recent []ClosedTrade, settings core.Settings) float64 {
	base := baseFraction(delta)
	regimeMult := regimeMultiplier(adx, mode)

	kellyMult := 1.0
	if settings.UseKelly && len(recent) >= settings.MinTradesForKelly {
		window := recent
		if len(window) > settings.KellyLookbackWindow {
			window = window[len(window)-settings.KellyLookbackWindow:]
		}
		kellyMult = kellyMultiplier(window, atrPct, settings.KellyFraction)
	}

	fraction := base * regimeMult * kellyMult
	return clamp(fraction, settings.SizeMin, settings.SizeMax)
}

func baseFraction(delta int) float64 {
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 7:
		return 0.70
	case abs >= 5:
		return 0.50
	case abs >= 3:
		return 0.35
	default:
		return 0.25
	}
}

func regimeMultiplier(adx float64, mode core.RegimeMode) float64 {
	switch mode {
	case core.RegimeTF, core.RegimeTransition:
		switch {
		case adx > 35:
			return 1.3
		case adx > 30:
			return 1.2
		case adx > 26:
			return 1.1
		default:
			return 1.0
		}
	case core.RegimeMR:
		switch {
		case adx < 15:
			return 1.3
		case adx < 18:
			return 1.2
		case adx < 20:
			return 1.1
		default:
			return 1.0
		}
	default:
		return 1.0
	}
}

// kellyMultiplier computes the volatility-normalized Kelly multiplier
// from the win rate and average win/loss magnitudes of a closed-trade
// window (spec §4.5 step 3), using gonum/stat for the underlying mean
// statistics.
func kellyMultiplier(window []ClosedTrade, atrPct float64, kellyFraction float64) float64 {
	wins := make([]float64, 0, len(window))
	losses := make([]float64, 0, len(window))
	for _, t := range window {
		if t.ReturnPct >= 0 {
			wins = append(wins, t.ReturnPct)
		} else {
			losses = append(losses, -t.ReturnPct)
		}
	}

	winRate := float64(len(wins)) / float64(len(window))
	if len(wins) == 0 || len(losses) == 0 {
		return 1.0
	}

	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)
	if avgWin <= 0 {
		return 1.0
	}

	kellyRaw := (winRate*avgWin - (1-winRate)*avgLoss) / avgWin
	kelly := math.Max(0, kellyRaw) * kellyFraction
	kelly /= 1 + atrPct/2

	return clamp(kelly, 0.5, 1.5)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
