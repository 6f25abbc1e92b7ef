package signal

import (
	"math"

	"github.com/raykavin/backnrun/pkg/core"
)

// Context bundles every read-only input the generator needs beyond the
// snapshot, vote result, and regime state: the portions of the ledger
// view spec §4.4 calls out (open position for this symbol, position
// count, free cash) plus the sizer's proposed fraction, computed by the
// caller before the common filters run (spec §4.5 runs independently of
// the filters; the orchestrator sequences sizer-then-filters so the
// cash filter can see a concrete notional).
type Context struct {
	PrevClose         float64
	NDayLow           float64
	HasOpenPosition   bool
	OpenPositionCount int
	FreeCash          float64
	ProposedSize      float64
}

// Generate implements the signal generator (spec §4.4): vote thresholds,
// regime-specific BUY filters, and exit templates.
func Generate(snapshot core.IndicatorSnapshot, votes VoteResult, regime core.RegimeMode, settings core.Settings, ctx Context) core.SignalDecision {
	decision := core.SignalDecision{
		Kind:       core.SignalHold,
		VotesDelta: votes.Delta(),
		Reasons:    votes.Top3(),
		EntryMode:  regime,
	}

	if !snapshot.Defined {
		decision.BlockReason = "indicators_undefined"
		return decision
	}

	delta := votes.Delta()
	minBuy, minSell := settings.MinVotesForBuy, settings.MinVotesForSell
	if regime == core.RegimeTransition {
		minBuy, minSell = settings.TransitionMinVotesForBuy, settings.TransitionMinVotesForSell
	}

	switch {
	case delta >= minBuy:
		decision.Kind = core.SignalBuy
	case delta <= -minSell:
		decision.Kind = core.SignalSell
	default:
		decision.Kind = core.SignalHold
	}

	if decision.Kind != core.SignalBuy {
		return decision
	}

	if reason := commonBuyFilters(snapshot, settings, ctx); reason != "" {
		decision.BlockReason = reason
		return decision
	}

	if reason := regimeBuyFilter(snapshot, regime, delta); reason != "" {
		decision.BlockReason = reason
		return decision
	}

	applyExitTemplate(&decision, snapshot, regime, settings)
	decision.ProposedSizeFraction = ctx.ProposedSize

	return decision
}

func commonBuyFilters(snapshot core.IndicatorSnapshot, settings core.Settings, ctx Context) string {
	if ctx.NDayLow > 0 && snapshot.Close < ctx.NDayLow*(1+settings.NoBuyBelowPct) {
		return "falling_knife"
	}
	if snapshot.VolumeMean > 0 && snapshot.Volume > settings.VolumeSpikeMult*snapshot.VolumeMean {
		return "volume_spike"
	}
	if snapshot.EMAVeryLongSlopePct < settings.EMA200NegSlopeThreshold {
		return "ema200_downtrend"
	}
	if ctx.OpenPositionCount >= settings.MaxPositions {
		return "position_limit"
	}
	if ctx.HasOpenPosition {
		return "already_holding"
	}
	if ctx.FreeCash <= 0 {
		return "insufficient_cash"
	}
	return ""
}

func regimeBuyFilter(snapshot core.IndicatorSnapshot, regime core.RegimeMode, delta int) string {
	switch regime {
	case core.RegimeMR:
		if !(snapshot.RSI < 40 && snapshot.ZScoreDefined && snapshot.ZScore < -1.8 && snapshot.ADX < 35) {
			return "mr_filters_failed"
		}
	case core.RegimeTF:
		if !(snapshot.ADX > 25 && snapshot.EMAShort > snapshot.EMALong && snapshot.MACDLine > 0) {
			return "tf_filters_failed"
		}
	case core.RegimeTransition:
		if math.Abs(float64(delta)) < 5 {
			return "transition_delta_too_low"
		}
		if !(snapshot.ADX > 25 && snapshot.EMAShort > snapshot.EMALong && snapshot.MACDLine > 0) {
			return "tf_filters_failed"
		}
	}
	return ""
}

func applyExitTemplate(decision *core.SignalDecision, snapshot core.IndicatorSnapshot, regime core.RegimeMode, settings core.Settings) {
	entry := snapshot.Close
	switch regime {
	case core.RegimeMR, core.RegimeTransition:
		slPct := math.Max(settings.MRStopLossPct, snapshot.ATRPct*settings.MRATRSLMult)
		decision.ProposedStopLoss = entry * (1 - slPct)
		decision.ProposedTakeProfit = entry * (1 + math.Max(settings.MRTPPct, snapshot.ATRPct*settings.MRATRTPMult))
	default:
		slPct := math.Max(settings.MRStopLossPct*1.5, snapshot.ATRPct*settings.MRATRSLMult*1.5)
		decision.ProposedStopLoss = entry * (1 - slPct)
		decision.ProposedTakeProfit = entry * (1 + settings.PartialTPRemainingTPPct)
	}
}
