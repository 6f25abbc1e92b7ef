package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raykavin/backnrun/pkg/core"
)

func definedSnapshot() core.IndicatorSnapshot {
	return core.IndicatorSnapshot{
		Defined:  true,
		Close:    100,
		EMAVeryLongSlopePct: 0.01,
	}
}

func TestGenerateBlocksWhenIndicatorsUndefined(t *testing.T) {
	snapshot := core.IndicatorSnapshot{Defined: false}
	decision := Generate(snapshot, VoteResult{Bullish: 7}, core.RegimeMR, core.DefaultSettings(), Context{})

	assert.Equal(t, "indicators_undefined", decision.BlockReason)
	assert.Equal(t, core.SignalHold, decision.Kind)
}

func TestGenerateHoldsWhenVoteDeltaBelowThresholds(t *testing.T) {
	snapshot := definedSnapshot()
	decision := Generate(snapshot, VoteResult{Bullish: 2}, core.RegimeMR, core.DefaultSettings(), Context{})
	assert.Equal(t, core.SignalHold, decision.Kind)
}

func TestGenerateSellsWhenVoteDeltaMeetsSellThreshold(t *testing.T) {
	snapshot := definedSnapshot()
	decision := Generate(snapshot, VoteResult{Bearish: 5}, core.RegimeMR, core.DefaultSettings(), Context{})
	assert.Equal(t, core.SignalSell, decision.Kind)
}

func TestGenerateUsesTransitionSpecificVoteThresholds(t *testing.T) {
	settings := core.DefaultSettings()
	settings.TransitionMinVotesForBuy = 2
	snapshot := definedSnapshot()
	snapshot.ADX = 30
	snapshot.EMAShort = 10
	snapshot.EMALong = 5
	snapshot.MACDLine = 1

	// delta=3 clears the lowered transition threshold but not the
	// default MinVotesForBuy(5) that would otherwise gate a non-transition regime.
	decision := Generate(snapshot, VoteResult{Bullish: 3}, core.RegimeTransition, settings, Context{})
	assert.Equal(t, core.SignalBuy, decision.Kind)
}

func TestGenerateBlocksOnFallingKnife(t *testing.T) {
	snapshot := definedSnapshot()
	snapshot.Close = 95
	settings := core.DefaultSettings()

	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, settings, Context{NDayLow: 100})
	assert.Equal(t, "falling_knife", decision.BlockReason)
}

func TestGenerateBlocksOnVolumeSpike(t *testing.T) {
	snapshot := definedSnapshot()
	snapshot.VolumeMean = 100
	snapshot.Volume = 1000
	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, core.DefaultSettings(), Context{})
	assert.Equal(t, "volume_spike", decision.BlockReason)
}

func TestGenerateBlocksOnEMA200Downtrend(t *testing.T) {
	snapshot := definedSnapshot()
	snapshot.EMAVeryLongSlopePct = -0.01
	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, core.DefaultSettings(), Context{})
	assert.Equal(t, "ema200_downtrend", decision.BlockReason)
}

func TestGenerateBlocksAtPositionLimit(t *testing.T) {
	snapshot := definedSnapshot()
	settings := core.DefaultSettings()
	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, settings, Context{OpenPositionCount: settings.MaxPositions})
	assert.Equal(t, "position_limit", decision.BlockReason)
}

func TestGenerateBlocksWhenAlreadyHoldingSymbol(t *testing.T) {
	snapshot := definedSnapshot()
	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, core.DefaultSettings(), Context{HasOpenPosition: true})
	assert.Equal(t, "already_holding", decision.BlockReason)
}

func TestGenerateBlocksOnInsufficientCash(t *testing.T) {
	snapshot := definedSnapshot()
	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, core.DefaultSettings(), Context{FreeCash: 0})
	assert.Equal(t, "insufficient_cash", decision.BlockReason)
}

func TestGenerateMeanReversionBuyRequiresAllRegimeConditions(t *testing.T) {
	settings := core.DefaultSettings()
	ctx := Context{FreeCash: 1000}

	passing := definedSnapshot()
	passing.RSI = 30
	passing.ZScoreDefined = true
	passing.ZScore = -2.0
	passing.ADX = 20
	decision := Generate(passing, VoteResult{Bullish: 5}, core.RegimeMR, settings, ctx)
	assert.Equal(t, core.SignalBuy, decision.Kind)
	assert.Empty(t, decision.BlockReason)

	failingADX := passing
	failingADX.ADX = 40
	decision = Generate(failingADX, VoteResult{Bullish: 5}, core.RegimeMR, settings, ctx)
	assert.Equal(t, "mr_filters_failed", decision.BlockReason)
}

func TestGenerateTrendFollowingBuyRequiresAllRegimeConditions(t *testing.T) {
	settings := core.DefaultSettings()
	ctx := Context{FreeCash: 1000}

	passing := definedSnapshot()
	passing.ADX = 30
	passing.EMAShort = 110
	passing.EMALong = 100
	passing.MACDLine = 1

	decision := Generate(passing, VoteResult{Bullish: 5}, core.RegimeTF, settings, ctx)
	assert.Equal(t, core.SignalBuy, decision.Kind)
	assert.Empty(t, decision.BlockReason)

	failingMACD := passing
	failingMACD.MACDLine = -1
	decision = Generate(failingMACD, VoteResult{Bullish: 5}, core.RegimeTF, settings, ctx)
	assert.Equal(t, "tf_filters_failed", decision.BlockReason)
}

func TestGenerateTransitionBuyRequiresMinimumAbsoluteDelta(t *testing.T) {
	settings := core.DefaultSettings()
	settings.TransitionMinVotesForBuy = 2
	snapshot := definedSnapshot()
	snapshot.ADX = 30
	snapshot.EMAShort = 110
	snapshot.EMALong = 100
	snapshot.MACDLine = 1

	decision := Generate(snapshot, VoteResult{Bullish: 3}, core.RegimeTransition, settings, Context{FreeCash: 1000})
	assert.Equal(t, "transition_delta_too_low", decision.BlockReason)
}

func TestGenerateAppliesMeanReversionExitTemplate(t *testing.T) {
	settings := core.DefaultSettings()
	snapshot := definedSnapshot()
	snapshot.RSI = 30
	snapshot.ZScoreDefined = true
	snapshot.ZScore = -2.0
	snapshot.ADX = 20
	snapshot.ATRPct = 0.01

	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeMR, settings, Context{FreeCash: 1000, ProposedSize: 0.3})

	assert.Equal(t, core.SignalBuy, decision.Kind)
	wantSL := 100 * (1 - (settings.MRStopLossPct))
	assert.InDelta(t, wantSL, decision.ProposedStopLoss, 1e-9)
	assert.Equal(t, 0.3, decision.ProposedSizeFraction)
}

func TestGenerateAppliesTrendFollowingExitTemplate(t *testing.T) {
	settings := core.DefaultSettings()
	snapshot := definedSnapshot()
	snapshot.ADX = 30
	snapshot.EMAShort = 110
	snapshot.EMALong = 100
	snapshot.MACDLine = 1
	snapshot.ATRPct = 0.01

	decision := Generate(snapshot, VoteResult{Bullish: 5}, core.RegimeTF, settings, Context{FreeCash: 1000})

	wantTP := 100 * (1 + settings.PartialTPRemainingTPPct)
	assert.InDelta(t, wantTP, decision.ProposedTakeProfit, 1e-9)
}
