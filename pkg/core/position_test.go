package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOpenRequiresUnclosedAndNonZeroQuantity(t *testing.T) {
	open := &Position{Quantity: 1}
	assert.True(t, open.IsOpen())

	closedAt := time.Now()
	closed := &Position{Quantity: 1, ClosedAt: &closedAt}
	assert.False(t, closed.IsOpen())

	zeroQty := &Position{Quantity: 0}
	assert.False(t, zeroQty.IsOpen())
}

func TestStageReflectsHighestPriorityFlag(t *testing.T) {
	assert.Equal(t, StageOpen, (&Position{}).Stage())
	assert.Equal(t, StageTrailingArmed, (&Position{TrailingActive: true}).Stage())
	assert.Equal(t, StagePartialTPTaken, (&Position{TrailingActive: true, PartialTPTaken: true}).Stage())
	assert.Equal(t, StageBreakevenLocked, (&Position{PartialTPTaken: true, BreakevenActive: true}).Stage())
}

func TestUpdateTrailingHighWaterMarkNeverMovesBackward(t *testing.T) {
	p := &Position{HighestPriceSinceEntry: 100}
	p.UpdateTrailingHighWaterMark(90)
	assert.Equal(t, 100.0, p.HighestPriceSinceEntry)

	p.UpdateTrailingHighWaterMark(110)
	assert.Equal(t, 110.0, p.HighestPriceSinceEntry)
}

func TestPromoteToBreakevenRaisesStopLossToEntryPriceButNotBelowIt(t *testing.T) {
	p := &Position{AverageEntryPrice: 100, StopLossPrice: 95}
	p.PromoteToBreakeven()
	assert.True(t, p.BreakevenActive)
	assert.Equal(t, 100.0, p.StopLossPrice)

	higher := &Position{AverageEntryPrice: 100, StopLossPrice: 105}
	higher.PromoteToBreakeven()
	assert.Equal(t, 105.0, higher.StopLossPrice, "a stop already above entry price is never lowered")
}

func TestRaiseStopLossNeverMovesDown(t *testing.T) {
	p := &Position{StopLossPrice: 100}
	p.RaiseStopLoss(90)
	assert.Equal(t, 100.0, p.StopLossPrice)

	p.RaiseStopLoss(110)
	assert.Equal(t, 110.0, p.StopLossPrice)
}

func TestMarkPartialTPTakenPromotesBreakevenAndOnlyRaisesTakeProfit(t *testing.T) {
	p := &Position{AverageEntryPrice: 100, StopLossPrice: 95, TakeProfitPrice: 130}
	p.MarkPartialTPTaken(103)

	assert.True(t, p.PartialTPTaken)
	assert.True(t, p.BreakevenActive)
	assert.Equal(t, 100.0, p.StopLossPrice)
	assert.Equal(t, 130.0, p.TakeProfitPrice, "a lower proposed take-profit never overrides the existing one")
}

func TestApplyAveragingRecomputesWeightedAverageEntryPrice(t *testing.T) {
	p := &Position{AverageEntryPrice: 100, Quantity: 10, TotalInvested: 1000}
	p.ApplyAveraging(AveragingEntry{Price: 80, Quantity: 5})

	assert.InDelta(t, 93.333333333, p.AverageEntryPrice, 1e-6)
	assert.Equal(t, 15.0, p.Quantity)
	assert.Equal(t, 1400.0, p.TotalInvested)
	assert.Equal(t, 1, p.AveragingCount)
	assert.Len(t, p.AveragingEntries, 1)
}

func TestApplyAveragingFoldsCommissionIntoTotalInvestedNotEntryPrice(t *testing.T) {
	p := &Position{AverageEntryPrice: 100, Quantity: 10, TotalInvested: 1000}
	p.ApplyAveraging(AveragingEntry{Price: 80, Quantity: 5, Commission: 0.4})

	assert.InDelta(t, 93.333333333, p.AverageEntryPrice, 1e-6, "commission is not a price input to the weighted average")
	assert.Equal(t, 1400.4, p.TotalInvested)
	assert.Equal(t, 0.4, p.CommissionPaid)
}
