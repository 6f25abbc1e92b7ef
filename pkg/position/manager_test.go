package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raykavin/backnrun/pkg/core"
)

func baseSettings() core.Settings {
	return core.DefaultSettings()
}

func TestEvaluateHardStopLossClosesInFull(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	pos := &core.Position{AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 95, HighestPriceSinceEntry: 100}

	result := mgr.Evaluate(pos, 94, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, baseSettings(), now)

	if assert.NotNil(t, result.Exit) {
		assert.Equal(t, core.TradeSideStopLoss, result.Exit.Reason)
		assert.True(t, result.Exit.FullClose)
		assert.Equal(t, 10.0, result.Exit.QtyClosed)
	}
	assert.Equal(t, 0.0, pos.Quantity)
	assert.NotNil(t, pos.ClosedAt)
}

func TestEvaluateBreakevenStopClosesAtEntry(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 90,
		BreakevenActive: true, HighestPriceSinceEntry: 105,
	}

	result := mgr.Evaluate(pos, 99, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, baseSettings(), now)

	if assert.NotNil(t, result.Exit) {
		assert.Equal(t, core.TradeSideBreakevenStop, result.Exit.Reason)
		assert.True(t, result.Exit.FullClose)
	}
}

func TestEvaluateTrailingStopTracksHighWaterMarkThenCloses(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.TrailDistancePct = 0.05
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 999, TrailingActive: true, HighestPriceSinceEntry: 110,
	}

	rise := mgr.Evaluate(pos, 115, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)
	assert.Nil(t, rise.Exit)
	assert.Equal(t, 115.0, pos.HighestPriceSinceEntry)

	drop := mgr.Evaluate(pos, 109, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)
	if assert.NotNil(t, drop.Exit) {
		assert.Equal(t, core.TradeSideTrailingStop, drop.Exit.Reason)
		assert.True(t, drop.Exit.FullClose)
	}
}

func TestEvaluatePartialTakeProfitClosesHalfAndArmsBreakeven(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.PartialTPTriggerPct = 0.015
	settings.PartialClosePct = 0.5
	settings.PartialTPRemainingTPPct = 0.03
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 130, EntryMode: core.RegimeTF, HighestPriceSinceEntry: 100,
	}

	result := mgr.Evaluate(pos, 102, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	if assert.NotNil(t, result.Exit) {
		assert.Equal(t, core.TradeSidePartialTP, result.Exit.Reason)
		assert.False(t, result.Exit.FullClose)
		assert.Equal(t, 5.0, result.Exit.QtyClosed)
	}
	assert.Equal(t, 5.0, pos.Quantity)
	assert.True(t, pos.PartialTPTaken)
	assert.True(t, pos.BreakevenActive)
	assert.Equal(t, 100.0, pos.StopLossPrice)
	assert.Equal(t, 130.0, pos.TakeProfitPrice, "existing TP was already past the new partial-remaining target")
}

func TestEvaluateTrailingActivatesWithoutClosing(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.TrailActivationPctMR = 0.008
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true,
	}

	result := mgr.Evaluate(pos, 100.9, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	assert.Nil(t, result.Exit)
	assert.Nil(t, result.Averaging)
	assert.True(t, pos.TrailingActive)
	assert.Equal(t, 100.9, pos.HighestPriceSinceEntry)
}

func TestEvaluateTakeProfitClosesInFull(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 120, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true,
	}

	result := mgr.Evaluate(pos, 121, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	if assert.NotNil(t, result.Exit) {
		assert.Equal(t, core.TradeSideTakeProfit, result.Exit.Reason)
		assert.True(t, result.Exit.FullClose)
	}
}

func TestEvaluateSignalExitClosesInFull(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true,
	}

	result := mgr.Evaluate(pos, 101, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalSell}, settings, now)

	if assert.NotNil(t, result.Exit) {
		assert.Equal(t, core.TradeSideSignalExit, result.Exit.Reason)
		assert.True(t, result.Exit.FullClose)
	}
}

func TestEvaluateAveragingDownOnDropAfterTimeThreshold(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.AveragingPriceDropPct = 0.05
	settings.AveragingTimeThreshold = "24h"
	settings.AveragingSizePct = 0.5
	settings.MaxTotalRiskMultiplier = 1.5
	settings.MRStopLossPct = 0.03

	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true, InitialInvested: 1000, TotalInvested: 1000,
		OpenedAt: now.Add(-25 * time.Hour),
	}

	result := mgr.Evaluate(pos, 94, core.IndicatorSnapshot{ATRPct: 0}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	if assert.NotNil(t, result.Averaging) {
		assert.Equal(t, core.AveragingModeDown, result.Averaging.Mode)
		assert.InDelta(t, 5.319148936, result.Averaging.Quantity, 1e-6)
	}
	assert.Nil(t, result.Exit)
	assert.Equal(t, 1, pos.AveragingCount)
	assert.InDelta(t, 1500.45, pos.TotalInvested, 1e-9)
	assert.InDelta(t, 97.916666667, pos.AverageEntryPrice, 1e-6)
	assert.InDelta(t, 91.18, pos.StopLossPrice, 1e-6)
	assert.InDelta(t, 101.833333333, pos.TakeProfitPrice, 1e-6)
}

func TestEvaluateAveragingDownSkippedBeforeTimeThreshold(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.AveragingPriceDropPct = 0.05
	settings.AveragingTimeThreshold = "24h"

	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true, InitialInvested: 1000, TotalInvested: 1000,
		OpenedAt: now.Add(-1 * time.Hour),
	}

	result := mgr.Evaluate(pos, 94, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	assert.Nil(t, result.Averaging)
	assert.Equal(t, 0, pos.AveragingCount)
}

func TestEvaluatePyramidUpOnStrengthAndGain(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.PyramidADXThreshold = 25
	settings.PyramidUpGainPct = 0.02
	settings.MaxTotalRiskMultiplier = 1.5
	settings.MRStopLossPct = 0.03
	settings.TrailActivationPctMR = 0.008

	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true, InitialInvested: 1000, TotalInvested: 1000,
		OpenedAt: now.Add(-1 * time.Hour),
	}

	decision := core.SignalDecision{Kind: core.SignalBuy, VotesDelta: 1}
	result := mgr.Evaluate(pos, 103, core.IndicatorSnapshot{ADX: 30, ATRPct: 0}, decision, settings, now)

	if assert.NotNil(t, result.Averaging) {
		assert.Equal(t, core.AveragingModePyramid, result.Averaging.Mode)
		assert.InDelta(t, 2.912621359, result.Averaging.Quantity, 1e-6)
	}
	assert.Equal(t, 1, pos.AveragingCount)
	assert.InDelta(t, 1300.27, pos.TotalInvested, 1e-9)
	assert.InDelta(t, 100.676691729, pos.AverageEntryPrice, 1e-6)
	assert.InDelta(t, 99.91, pos.StopLossPrice, 1e-6)
}

func TestEvaluateAveragingCapAtMaxRiskMultiplierBlocksFurtherEntries(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.AveragingPriceDropPct = 0.05
	settings.AveragingTimeThreshold = "24h"
	settings.AveragingSizePct = 0.5
	settings.MaxTotalRiskMultiplier = 1.2

	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true, InitialInvested: 1000, TotalInvested: 1000,
		OpenedAt: now.Add(-25 * time.Hour),
	}

	result := mgr.Evaluate(pos, 94, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	assert.Nil(t, result.Averaging, "half-size average-down would exceed the 1.2x risk cap")
	assert.Equal(t, 0, pos.AveragingCount)
}

func TestEvaluateAveragingRespectsMaxAttempts(t *testing.T) {
	mgr := NewManager()
	now := time.Now()
	settings := baseSettings()
	settings.AveragingPriceDropPct = 0.05
	settings.AveragingTimeThreshold = "24h"
	settings.MaxAveragingAttempts = 0

	pos := &core.Position{
		AverageEntryPrice: 100, Quantity: 10, StopLossPrice: 80,
		TakeProfitPrice: 200, EntryMode: core.RegimeMR, HighestPriceSinceEntry: 100,
		PartialTPTaken: true, InitialInvested: 1000, TotalInvested: 1000,
		OpenedAt: now.Add(-25 * time.Hour), AveragingCount: 0,
	}

	result := mgr.Evaluate(pos, 94, core.IndicatorSnapshot{}, core.SignalDecision{Kind: core.SignalHold}, settings, now)

	assert.Nil(t, result.Averaging)
}

func TestOpenNewSizesFromFreeCashAndCommission(t *testing.T) {
	settings := baseSettings()
	settings.CommissionRate = 0.001
	now := time.Now()
	decision := core.SignalDecision{
		ProposedSizeFraction: 0.5,
		ProposedStopLoss:     95,
		ProposedTakeProfit:   110,
		EntryMode:            core.RegimeTF,
		VotesDelta:           6,
		Reasons:              []string{"ema_bullish_cross"},
	}

	pos := OpenNew(decision, 100, 1000, settings, now)

	assert.Equal(t, 500.0, pos.InitialInvested)
	assert.Equal(t, 500.0, pos.TotalInvested)
	assert.InDelta(t, 0.5, pos.CommissionPaid, 1e-9)
	assert.InDelta(t, 4.995, pos.Quantity, 1e-9)
	assert.Equal(t, 95.0, pos.StopLossPrice)
	assert.Equal(t, 110.0, pos.TakeProfitPrice)
	assert.Equal(t, core.RegimeTF, pos.EntryMode)
	assert.Equal(t, 6, pos.EntryVotes)
}
