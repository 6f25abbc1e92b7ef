package chatbot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/backnrun/pkg/core"
	"github.com/raykavin/backnrun/pkg/engine"
	"github.com/raykavin/backnrun/pkg/scheduler"
	"github.com/raykavin/backnrun/pkg/storage"
)

type fakeFeeder struct{}

func (fakeFeeder) AssetsInfo(symbol string) core.AssetInfo { return core.AssetInfo{} }
func (fakeFeeder) FetchClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]core.Candle, error) {
	return nil, nil
}

type noopHandler struct{}

func (noopHandler) OnCandle(ctx context.Context, candle core.Candle) {}

type noopLogger struct{}

func (noopLogger) Debug(args ...any)                 {}
func (noopLogger) Debugf(format string, args ...any) {}
func (noopLogger) Info(args ...any)                  {}
func (noopLogger) Infof(format string, args ...any)  {}
func (noopLogger) Warn(args ...any)                  {}
func (noopLogger) Warnf(format string, args ...any)  {}
func (noopLogger) Error(args ...any)                 {}
func (noopLogger) Errorf(format string, args ...any) {}
func (noopLogger) Fatal(args ...any)                 {}
func (noopLogger) Fatalf(format string, args ...any) {}
func (l noopLogger) WithFields(fields map[string]any) core.Logger { return l }

type noopNotifier struct{}

func (noopNotifier) Notify(msg string)               {}
func (noopNotifier) OnTrade(trade core.TradeRecord)  {}
func (noopNotifier) OnError(symbol string, err error) {}

func newTestCommander(t *testing.T) (*Commander, *storage.Ledger) {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.MaxOpenConns = 1
	ledger, err := storage.NewSQLiteLedger("file::memory:?cache=shared", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	regimeCache, err := storage.NewRegimeCache(":memory:", ledger)
	require.NoError(t, err)

	sched := scheduler.New(fakeFeeder{}, ledger, noopLogger{}, noopHandler{}, "1h", 5, 2)
	eng := engine.New(ledger, regimeCache, nil, noopNotifier{}, noopLogger{})

	return New(sched, ledger, eng, noopLogger{}), ledger
}

func TestAddTracksSymbolAndRejectsEmptyInput(t *testing.T) {
	cmd, _ := newTestCommander(t)
	ctx := context.Background()

	assert.Equal(t, "usage: add <SYMBOL>", cmd.Add(ctx, "  "))

	reply := cmd.Add(ctx, "btcusdt")
	assert.Contains(t, reply, "tracking BTCUSDT")
	assert.Contains(t, cmd.List(), "BTCUSDT")
}

func TestRemoveUntracksSymbol(t *testing.T) {
	cmd, _ := newTestCommander(t)
	ctx := context.Background()

	require.Contains(t, cmd.Add(ctx, "ETHUSDT"), "tracking")
	reply := cmd.Remove(ctx, "ethusdt")
	assert.Contains(t, reply, "stopped tracking ETHUSDT")
	assert.Equal(t, "no symbols tracked", cmd.List())
}

func TestRemoveClosesOpenPositionAtMarketBeforeUntracking(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()

	require.Contains(t, cmd.Add(ctx, "BTCUSDT"), "tracking")

	pos := &core.Position{
		Symbol:            "BTCUSDT",
		Quantity:          1,
		AverageEntryPrice: 100,
		LastPrice:         110,
		OpenedAt:          time.Now(),
		EntryMode:         core.RegimeMR,
	}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	reply := cmd.Remove(ctx, "btcusdt")
	assert.Contains(t, reply, "stopped tracking BTCUSDT")

	open, err := ledger.PositionFor(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, open)

	records, err := ledger.TradeHistory(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.TradeSideSell, records[0].Side)
}

func TestListReportsNoSymbolsWhenEmpty(t *testing.T) {
	cmd, _ := newTestCommander(t)
	assert.Equal(t, "no symbols tracked", cmd.List())
}

func TestStatusReportsStoppedStateAndNoOpenPositions(t *testing.T) {
	cmd, _ := newTestCommander(t)
	ctx := context.Background()

	cmd.engine.SetRunning(false)
	reply := cmd.Status(ctx)

	assert.Contains(t, reply, "status: STOPPED")
	assert.Contains(t, reply, "no open positions")
}

func TestStatusRendersOpenPositionsTable(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()

	pos := &core.Position{Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100, OpenedAt: time.Now(), EntryMode: core.RegimeMR}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	reply := cmd.Status(ctx)
	assert.Contains(t, reply, "status: RUNNING")
	assert.Contains(t, reply, "BTCUSDT")
}

func TestBalanceReportsPortfolioFigures(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()

	state, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	state.CashBalance = 500
	state.Equity = 500
	require.NoError(t, ledger.UpdatePortfolio(ctx, state))

	reply := cmd.Balance(ctx)
	assert.Contains(t, reply, "cash: 500.00")
}

func TestBalanceMarksOpenPositionsToMarket(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()

	state, err := ledger.Portfolio(ctx)
	require.NoError(t, err)
	state.CashBalance = 650
	require.NoError(t, ledger.UpdatePortfolio(ctx, state))

	pos := &core.Position{
		Symbol: "BTCUSDT", Quantity: 2, AverageEntryPrice: 100,
		LastPrice: 175, OpenedAt: time.Now(), EntryMode: core.RegimeMR,
	}
	require.NoError(t, ledger.OpenPosition(ctx, pos))

	reply := cmd.Balance(ctx)
	assert.Contains(t, reply, "cash: 650.00")
	assert.Contains(t, reply, "equity: 1000.00", "equity must include the position's 2 * 175 market value")
}

func TestTradesReportsNoTradesWhenEmpty(t *testing.T) {
	cmd, _ := newTestCommander(t)
	assert.Equal(t, "no trades recorded", cmd.Trades(context.Background(), "BTCUSDT", ""))
}

func TestTradesListsRecordedHistory(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()

	pos := &core.Position{Symbol: "BTCUSDT", Quantity: 1, AverageEntryPrice: 100, OpenedAt: time.Now()}
	require.NoError(t, ledger.OpenPosition(ctx, pos))
	_, err := ledger.RecordEntry(ctx, pos)
	require.NoError(t, err)

	reply := cmd.Trades(ctx, "btcusdt", "")
	assert.Contains(t, reply, "BTCUSDT")
	assert.Contains(t, reply, "BUY")
}

func TestTradesParsesLimitArgument(t *testing.T) {
	cmd, _ := newTestCommander(t)
	// a non-numeric limit falls back to the default rather than erroring.
	assert.Equal(t, "no trades recorded", cmd.Trades(context.Background(), "BTCUSDT", "not-a-number"))
}

func TestStartAndStopToggleEngineRunningState(t *testing.T) {
	cmd, _ := newTestCommander(t)

	assert.Contains(t, cmd.Stop(), "stopped")
	assert.False(t, cmd.engine.Running())

	assert.Contains(t, cmd.Start(), "started")
	assert.True(t, cmd.engine.Running())
}

func TestResetAcknowledgesWithoutChangingState(t *testing.T) {
	cmd, _ := newTestCommander(t)
	assert.Contains(t, cmd.Reset(), "re-read")
}

func TestForceBuyRejectsEmptySymbol(t *testing.T) {
	cmd, _ := newTestCommander(t)
	assert.Equal(t, "usage: force_buy <SYMBOL>", cmd.ForceBuy(context.Background(), " "))
}

func TestForceBuyReportsEngineFailure(t *testing.T) {
	cmd, _ := newTestCommander(t)
	reply := cmd.ForceBuy(context.Background(), "BTCUSDT")
	assert.Contains(t, reply, "failed")
}

func TestSignalStatsReportsNoHistoryWhenEmpty(t *testing.T) {
	cmd, _ := newTestCommander(t)
	ctx := context.Background()
	require.Contains(t, cmd.Add(ctx, "BTCUSDT"), "tracking")
	assert.Equal(t, "no signal history yet", cmd.SignalStats(ctx))
}

func TestSignalStatsRendersHistogramOnceHistoryExists(t *testing.T) {
	cmd, ledger := newTestCommander(t)
	ctx := context.Background()
	require.Contains(t, cmd.Add(ctx, "BTCUSDT"), "tracking")

	for i := 0; i < 5; i++ {
		require.NoError(t, ledger.AppendSignal(ctx, core.SignalRecord{
			Symbol: "BTCUSDT", At: time.Now(), Signal: core.SignalHold, VotesDelta: i,
		}))
	}

	reply := cmd.SignalStats(ctx)
	assert.Contains(t, reply, "vote delta distribution")
}

func TestSignalAnalysisReportsNotEnoughDataWhenEmpty(t *testing.T) {
	cmd, _ := newTestCommander(t)
	ctx := context.Background()
	require.Contains(t, cmd.Add(ctx, "BTCUSDT"), "tracking")
	assert.Equal(t, "not enough closed trades for analysis yet", cmd.SignalAnalysis(ctx))
}
