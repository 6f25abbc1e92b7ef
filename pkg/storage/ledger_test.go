package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/backnrun/pkg/core"
)

// newTestLedger opens a fresh shared in-memory sqlite database per test,
// migrated the same way NewSQLiteLedger migrates a real file. A single
// shared connection keeps every query on the same in-memory database,
// since ":memory:" alone hands each pooled connection its own database.
func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MaxOpenConns = 1
	ledger, err := NewSQLiteLedger("file::memory:?cache=shared", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestTrackSymbolLifecycle(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	require.NoError(t, ledger.TrackSymbol(ctx, "BTCUSDT"))
	require.NoError(t, ledger.TrackSymbol(ctx, "ETHUSDT"))

	tracked, err := ledger.TrackedSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, tracked, 2)

	require.NoError(t, ledger.DeactivateSymbol(ctx, "BTCUSDT"))
	tracked, err = ledger.TrackedSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, tracked, 1)
	assert.Equal(t, "ETHUSDT", tracked[0].Symbol)

	require.NoError(t, ledger.UntrackSymbol(ctx, "ETHUSDT"))
	tracked, err = ledger.TrackedSymbols(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracked)
}

func TestTrackSymbolReactivatesOnRetrack(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	require.NoError(t, ledger.TrackSymbol(ctx, "BTCUSDT"))
	require.NoError(t, ledger.DeactivateSymbol(ctx, "BTCUSDT"))
	require.NoError(t, ledger.TrackSymbol(ctx, "BTCUSDT"))

	tracked, err := ledger.TrackedSymbols(ctx)
	require.NoError(t, err)
	assert.Len(t, tracked, 1)
}

func TestPortfolioIsSeededOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	state, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), state.ID)
	assert.Equal(t, 0.0, state.CashBalance)

	state.CashBalance = 10000
	state.Equity = 10000
	require.NoError(t, ledger.UpdatePortfolio(ctx, state))

	reloaded, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, reloaded.CashBalance)
}

func TestReserveCashRejectsWhenInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	state, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	state.CashBalance = 500
	require.NoError(t, ledger.UpdatePortfolio(ctx, state))

	ok, err := ledger.ReserveCash(ctx, 1000)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ledger.ReserveCash(ctx, 200)
	require.NoError(t, err)
	assert.True(t, ok)

	state, err = ledger.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300.0, state.CashBalance)
}

func TestReleaseCashCreditsBackToPortfolio(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	state, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	state.CashBalance = 1000
	require.NoError(t, ledger.UpdatePortfolio(ctx, state))

	ok, err := ledger.ReserveCash(ctx, 400)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ledger.ReleaseCash(ctx, 150))

	state, err = ledger.Portfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, 750.0, state.CashBalance)
}

func TestOpenPositionAndPositionForRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{
		Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100,
		OpenedAt: time.Now(), InitialInvested: 100, TotalInvested: 100,
	}
	require.NoError(t, ledger.OpenPosition(ctx, pos))
	assert.NotZero(t, pos.ID)

	found, err := ledger.PositionFor(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, pos.ID, found.ID)

	none, err := ledger.PositionFor(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, none)

	open, err := ledger.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestPositionForExcludesFullyClosedPositions(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{Symbol: "BTCUSDT", Quantity: 0, AverageEntryPrice: 100, OpenedAt: time.Now()}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	found, err := ledger.PositionFor(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, found, "a fully closed position (quantity 0) is not an open position")
}

func TestApplyExitIsIdempotentOnReplay(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100, OpenedAt: time.Now()}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	candleTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := *pos
	updated.Quantity = 0

	rec1, err := ledger.ApplyExit(ctx, pos.ID, candleTime, updated, 1, 110, 0.1, core.TradeSideStopLoss)
	require.NoError(t, err)
	assert.InDelta(t, 9.9, rec1.RealizedPnL, 1e-9)

	rec2, err := ledger.ApplyExit(ctx, pos.ID, candleTime, updated, 1, 110, 0.1, core.TradeSideStopLoss)
	require.NoError(t, err)
	assert.Equal(t, rec1.RealizedPnL, rec2.RealizedPnL)

	history, err := ledger.TradeHistory(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "the replayed exit must not create a second trade row")
}

func TestApplyExitAllowsDifferentReasonsOnSameCandle(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100, OpenedAt: time.Now()}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	candleTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	partial := *pos
	partial.Quantity = 0.5

	_, err := ledger.ApplyExit(ctx, pos.ID, candleTime, partial, 0.5, 105, 0.05, core.TradeSidePartialTP)
	require.NoError(t, err)
	_, err = ledger.ApplyExit(ctx, pos.ID, candleTime, partial, 0.5, 110, 0.05, core.TradeSideTakeProfit)
	require.NoError(t, err)

	history, err := ledger.TradeHistory(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestApplyAveragingPersistsCommissionOnTradeRecord(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{
		Symbol: "BTCUSDT", Quantity: 10, AverageEntryPrice: 100,
		InitialInvested: 1000, TotalInvested: 1000, OpenedAt: time.Now(),
	}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	entry := core.AveragingEntry{Price: 94, Quantity: 5, Commission: 0.423, At: time.Now(), Mode: core.AveragingModeDown}
	updated := *pos
	updated.ApplyAveraging(entry)

	rec, err := ledger.ApplyAveraging(ctx, pos.ID, entry, updated)
	require.NoError(t, err)
	assert.Equal(t, 0.423, rec.Commission)
	assert.Equal(t, core.TradeSideAverageDown, rec.Side)

	history, err := ledger.TradeHistory(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0.423, history[0].Commission)
}

func TestRecordEntryIsIdempotentOnReplay(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	pos := &core.Position{
		Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100,
		OpenedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	_, err := ledger.RecordEntry(ctx, pos)
	require.NoError(t, err)
	_, err = ledger.RecordEntry(ctx, pos)
	require.NoError(t, err, "a replayed entry commit must be a no-op success, not an error")

	history, err := ledger.TradeHistory(ctx, "BTCUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLoadSettingsSeedsDefaultsOnFirstRun(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	settings, err := ledger.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultSettings().MinVotesForBuy, settings.MinVotesForBuy)
	assert.Equal(t, core.DefaultSettings().SizeMax, settings.SizeMax)

	settings.MinVotesForBuy = 9
	require.NoError(t, ledger.SaveSettings(ctx, settings))

	reloaded, err := ledger.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, reloaded.MinVotesForBuy)
}

func TestRegimeStateDefaultsToUnknownOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)

	state, err := ledger.RegimeState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, core.RegimeUnknown, state.LastMode)

	state.LastMode = core.RegimeTF
	state.LastModeEntered = time.Now()
	require.NoError(t, ledger.UpdateRegimeState(ctx, state))

	reloaded, err := ledger.RegimeState(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, core.RegimeTF, reloaded.LastMode)
}
