// Package engine wires the leaf components (indicator pipeline, vote
// aggregator, regime selector, signal generator, sizer, position manager)
// into the single per-candle procedure the scheduler drives (spec §2's
// data flow, §5's concurrency model). It implements scheduler.CandleHandler.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/raykavin/backnrun/pkg/core"
	"github.com/raykavin/backnrun/pkg/indicator"
	"github.com/raykavin/backnrun/pkg/position"
	"github.com/raykavin/backnrun/pkg/signal"
	"github.com/raykavin/backnrun/pkg/sizer"
	"github.com/raykavin/backnrun/pkg/storage"
)

// bufferWindow bounds how much history each symbol keeps in memory for
// the indicator pipeline. It comfortably covers the EMA-200 warmup plus
// the Z-score and N-day-low lookback windows (pkg/indicator).
const bufferWindow = 600

// Engine owns no trading state of its own: every value it reads comes
// from the ledger (or the regime cache in front of it) at the top of
// each tick, and every value it produces is committed back through the
// ledger before the tick returns. broker is nil in paper mode, in which
// case fills are simulated at the candle's close price (spec §9 Open
// Question #3).
type Engine struct {
	ledger      core.Ledger
	regimeCache *storage.RegimeCache
	broker      core.Broker
	notifier    core.Notifier
	log         core.Logger

	selector *signal.Selector
	manager  *position.Manager

	buffersMu sync.Mutex
	buffers   map[string][]core.Candle

	runningMu sync.Mutex
	running   bool
}

// New builds an Engine. broker may be nil for paper/backtest mode. A new
// Engine starts running; the chat "stop" command pauses new entries.
func New(ledger core.Ledger, regimeCache *storage.RegimeCache, broker core.Broker, notifier core.Notifier, log core.Logger) *Engine {
	return &Engine{
		ledger:      ledger,
		regimeCache: regimeCache,
		broker:      broker,
		notifier:    notifier,
		log:         log,
		selector:    signal.NewSelector(),
		manager:     position.NewManager(),
		buffers:     make(map[string][]core.Candle),
		running:     true,
	}
}

// SetRunning toggles whether OnCandle may open new positions. Existing
// positions are always still managed by the exit-priority protocol
// regardless of this flag: pausing entries is the safe default for
// "stop", not freezing risk management (the chat "start"/"stop" commands).
func (e *Engine) SetRunning(running bool) {
	e.runningMu.Lock()
	e.running = running
	e.runningMu.Unlock()
}

// Running reports the current start/stop state, for the chat "status" command.
func (e *Engine) Running() bool {
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	return e.running
}

// OnCandle implements scheduler.CandleHandler. It is only ever called
// from the scheduler's single consume loop, so ticks across symbols
// never overlap; only exchange fetches run concurrently upstream of
// this call (spec §5: the pipeline is CPU-bound and non-blocking once
// candles are in memory, so giving it one consumer is sufficient for
// correctness and keeps the ledger's per-symbol locks only necessary
// for the chat control path).
func (e *Engine) OnCandle(ctx context.Context, candle core.Candle) {
	symbol := candle.Symbol
	buffer := e.appendCandle(symbol, candle)
	if len(buffer) < 2 {
		return
	}

	settings, err := e.ledger.LoadSettings(ctx)
	if err != nil {
		e.fail(symbol, fmt.Errorf("load settings: %w", err))
		return
	}

	snapshots := indicator.Compute(buffer)
	snapshot := snapshots[len(snapshots)-1]
	prevClose := buffer[len(buffer)-2].Close

	regimeState, err := e.regimeCache.Get(ctx, symbol)
	if err != nil {
		e.fail(symbol, fmt.Errorf("load regime state: %w", err))
		return
	}
	nextRegime := e.selector.Evaluate(symbol, snapshot.ADX, candle.OpenTime, regimeState, settings)
	regimeSwitched := nextRegime.LastMode != regimeState.LastMode
	if regimeSwitched {
		if err := e.regimeCache.Put(ctx, nextRegime); err != nil {
			e.fail(symbol, fmt.Errorf("persist regime state: %w", err))
			return
		}
	}

	votes := signal.Aggregate(snapshot, prevClose)

	pos, err := e.ledger.PositionFor(ctx, symbol)
	if err != nil {
		e.fail(symbol, fmt.Errorf("load position: %w", err))
		return
	}

	portfolio, err := e.ledger.Portfolio(ctx)
	if err != nil {
		e.fail(symbol, fmt.Errorf("load portfolio: %w", err))
		return
	}

	openPositions, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		e.fail(symbol, fmt.Errorf("count open positions: %w", err))
		return
	}

	recentTrades, err := e.ledger.TradeHistory(ctx, symbol, settings.KellyLookbackWindow)
	if err != nil {
		e.fail(symbol, fmt.Errorf("load trade history: %w", err))
		return
	}

	proposedSize := sizer.Size(votes.Delta(), snapshot.ADX, nextRegime.LastMode, snapshot.ATRPct, closedTrades(recentTrades), settings)

	decision := signal.Generate(snapshot, votes, nextRegime.LastMode, settings, signal.Context{
		PrevClose:         prevClose,
		NDayLow:           snapshot.NDayLow,
		HasOpenPosition:   pos != nil,
		OpenPositionCount: len(openPositions),
		FreeCash:          portfolio.CashBalance,
		ProposedSize:      proposedSize,
	})

	if err := e.ledger.AppendSignal(ctx, core.SignalRecord{
		Symbol:      symbol,
		At:          candle.OpenTime,
		Signal:      decision.Kind,
		Regime:      nextRegime.LastMode,
		VotesDelta:  decision.VotesDelta,
		TopReasons:  core.StringList(decision.Reasons),
		Price:       candle.Close,
		BlockReason: decision.BlockReason,
	}); err != nil {
		e.log.Warnf("engine: %s: append signal record: %v", symbol, err)
	}

	switch {
	case pos != nil:
		e.tickOpenPosition(ctx, pos, candle, snapshot, decision, settings)
	case decision.Kind == core.SignalBuy && decision.BlockReason == "" && e.Running():
		e.openPosition(ctx, symbol, candle, decision, portfolio.CashBalance, settings, false)
	}
}

func (e *Engine) tickOpenPosition(ctx context.Context, pos *core.Position, candle core.Candle, snapshot core.IndicatorSnapshot, decision core.SignalDecision, settings core.Settings) {
	symbol := pos.Symbol
	price := candle.Close
	pos.LastPrice = price

	result := e.manager.Evaluate(pos, price, snapshot, decision, settings, candle.OpenTime)

	switch {
	case result.Exit != nil:
		e.commitExit(ctx, pos, candle, result.Exit)
	case result.Averaging != nil:
		e.commitAveraging(ctx, pos, candle, result.Averaging, settings)
	default:
		if err := e.ledger.UpdatePosition(ctx, pos); err != nil {
			e.fail(symbol, fmt.Errorf("persist position state: %w", err))
		}
	}
}

func (e *Engine) commitExit(ctx context.Context, pos *core.Position, candle core.Candle, exit *position.ExitAction) {
	symbol := pos.Symbol
	qty, price, commission := exit.QtyClosed, exit.Price, exit.Commission

	if e.broker != nil {
		filled, err := e.broker.ExecuteOrder(ctx, symbol, core.SideTypeSell, core.OrderTypeMarket, qty, 0)
		if err != nil {
			e.fail(symbol, fmt.Errorf("exit order: %w", err))
			return
		}
		qty, price, commission = filled.Quantity, filled.Price, filled.Commission
	}

	rec, err := e.ledger.ApplyExit(ctx, pos.ID, candle.OpenTime, *pos, qty, price, commission, exit.Reason)
	if err != nil {
		e.fail(symbol, fmt.Errorf("apply exit: %w", err))
		return
	}

	proceeds := qty*price - commission
	if err := e.ledger.ReleaseCash(ctx, proceeds); err != nil {
		e.log.Warnf("engine: %s: credit exit proceeds: %v", symbol, err)
	}

	e.settlePortfolio(ctx, rec.RealizedPnL, exit.FullClose)

	if e.notifier != nil {
		e.notifier.OnTrade(rec)
	}
}

func (e *Engine) commitAveraging(ctx context.Context, pos *core.Position, candle core.Candle, avg *position.AveragingAction, settings core.Settings) {
	symbol := pos.Symbol
	cost := avg.Price * avg.Quantity
	commission := avg.Commission

	reserved, err := e.ledger.ReserveCash(ctx, cost+commission)
	if err != nil {
		e.fail(symbol, fmt.Errorf("reserve averaging cash: %w", err))
		return
	}
	if !reserved {
		// pos was mutated in memory by the manager but never persisted:
		// the next tick reloads the untouched row from the ledger.
		e.log.Warnf("engine: %s: averaging skipped, insufficient free cash", symbol)
		return
	}

	qty, price := avg.Quantity, avg.Price
	if e.broker != nil {
		filled, err := e.broker.ExecuteOrder(ctx, symbol, core.SideTypeBuy, core.OrderTypeMarket, qty, 0)
		if err != nil {
			if releaseErr := e.ledger.ReleaseCash(ctx, cost+commission); releaseErr != nil {
				e.log.Warnf("engine: %s: release averaging reservation: %v", symbol, releaseErr)
			}
			e.fail(symbol, fmt.Errorf("averaging order: %w", err))
			return
		}
		qty, price, commission = filled.Quantity, filled.Price, filled.Commission
	}

	pos.LastPrice = price
	entry := core.AveragingEntry{Price: price, Quantity: qty, Commission: commission, At: candle.OpenTime, Mode: avg.Mode}
	rec, err := e.ledger.ApplyAveraging(ctx, pos.ID, entry, *pos)
	if err != nil {
		e.fail(symbol, fmt.Errorf("apply averaging: %w", err))
		return
	}

	if e.notifier != nil {
		e.notifier.OnTrade(rec)
	}
}

func (e *Engine) openPosition(ctx context.Context, symbol string, candle core.Candle, decision core.SignalDecision, freeCash float64, settings core.Settings, forceBuy bool) {
	notional := freeCash * decision.ProposedSizeFraction
	if notional <= 0 {
		return
	}

	reserved, err := e.ledger.ReserveCash(ctx, notional)
	if err != nil {
		e.fail(symbol, fmt.Errorf("reserve entry cash: %w", err))
		return
	}
	if !reserved {
		return
	}

	price := candle.Close
	pos := position.OpenNew(decision, price, freeCash, settings, candle.OpenTime)
	pos.Symbol = symbol
	pos.EntryForceBuy = forceBuy

	if e.broker != nil {
		reqQty := notional / price
		filled, err := e.broker.ExecuteOrder(ctx, symbol, core.SideTypeBuy, core.OrderTypeMarket, reqQty, 0)
		if err != nil {
			if releaseErr := e.ledger.ReleaseCash(ctx, notional); releaseErr != nil {
				e.log.Warnf("engine: %s: release entry reservation: %v", symbol, releaseErr)
			}
			e.fail(symbol, fmt.Errorf("entry order: %w", err))
			return
		}
		pos.AverageEntryPrice = filled.Price
		pos.LastPrice = filled.Price
		pos.Quantity = filled.Quantity
		pos.InitialInvested = filled.Price * filled.Quantity
		pos.TotalInvested = pos.InitialInvested
		pos.CommissionPaid = filled.Commission
		pos.HighestPriceSinceEntry = filled.Price
	}

	if err := e.ledger.OpenPosition(ctx, pos); err != nil {
		if releaseErr := e.ledger.ReleaseCash(ctx, notional); releaseErr != nil {
			e.log.Warnf("engine: %s: release entry reservation: %v", symbol, releaseErr)
		}
		e.fail(symbol, fmt.Errorf("open position: %w", err))
		return
	}

	rec, err := e.ledger.RecordEntry(ctx, pos)
	if err != nil {
		e.log.Warnf("engine: %s: record entry fill: %v", symbol, err)
	}

	if e.notifier != nil {
		e.notifier.OnTrade(rec)
	}
}

// ForceBuy opens a new position for symbol from the chat "force_buy"
// command, bypassing the signal generator's entry filters entirely but
// still respecting MaxPositions and cash availability (spec §9 Open
// Question #2): a forced entry is not a license to exceed the
// portfolio's own risk caps.
func (e *Engine) ForceBuy(ctx context.Context, symbol string) error {
	e.buffersMu.Lock()
	buffer := append([]core.Candle(nil), e.buffers[symbol]...)
	e.buffersMu.Unlock()
	if len(buffer) < 2 {
		return fmt.Errorf("engine: %s: no candle data buffered yet, track it first", symbol)
	}

	settings, err := e.ledger.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if existing, err := e.ledger.PositionFor(ctx, symbol); err != nil {
		return fmt.Errorf("load position: %w", err)
	} else if existing != nil {
		return fmt.Errorf("%s already has an open position", symbol)
	}

	openPositions, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("count open positions: %w", err)
	}
	if len(openPositions) >= settings.MaxPositions {
		return fmt.Errorf("max positions (%d) already open", settings.MaxPositions)
	}

	portfolio, err := e.ledger.Portfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}

	snapshots := indicator.Compute(buffer)
	snapshot := snapshots[len(snapshots)-1]
	candle := buffer[len(buffer)-1]
	price := candle.Close

	decision := core.SignalDecision{
		Kind:                 core.SignalBuy,
		ProposedSizeFraction: sizer.Size(0, snapshot.ADX, core.RegimeMR, snapshot.ATRPct, nil, settings),
		ProposedStopLoss:     price * (1 - math.Max(settings.MRStopLossPct, snapshot.ATRPct*settings.MRATRSLMult)),
		ProposedTakeProfit:   price * (1 + settings.MRTPPct),
		EntryMode:            core.RegimeMR,
		Reasons:              []string{"force_buy"},
	}

	e.openPosition(ctx, symbol, candle, decision, portfolio.CashBalance, settings, true)
	return nil
}

// CloseAtMarket resolves symbol's open position, if any, at its last
// observed price, independent of the exit-priority protocol. It is the
// chat "remove" command's close-at-market policy (spec §3's explicit
// design resolution): a tracked symbol's open position must be resolved
// before the symbol stops receiving ticks, not left orphaned.
func (e *Engine) CloseAtMarket(ctx context.Context, symbol string) error {
	pos, err := e.ledger.PositionFor(ctx, symbol)
	if err != nil {
		return fmt.Errorf("load position: %w", err)
	}
	if pos == nil {
		return nil
	}

	settings, err := e.ledger.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	price := pos.LastPrice
	if price <= 0 {
		price = pos.AverageEntryPrice
	}

	exit := &position.ExitAction{
		Reason:     core.TradeSideSell,
		QtyClosed:  pos.Quantity,
		Price:      price,
		Commission: pos.Quantity * price * settings.CommissionRate,
		FullClose:  true,
	}

	now := time.Now()
	pos.Quantity = 0
	pos.ClosedAt = &now

	e.commitExit(ctx, pos, core.Candle{Symbol: symbol, OpenTime: now, Close: price}, exit)
	return nil
}

// settlePortfolio folds a realized PnL (from a full or partial exit)
// into the single portfolio row. fullClose additionally counts the
// position's overall outcome toward the win/loss rate: a partial
// take-profit realizes PnL immediately but the trade itself isn't
// decided until the position is fully closed. Equity is marked to
// market over every still-open position's last observed price (spec
// §3: equity = balance_cash + Σ quantity × last_price), not just cash.
func (e *Engine) settlePortfolio(ctx context.Context, realizedPnL float64, fullClose bool) {
	state, err := e.ledger.Portfolio(ctx)
	if err != nil {
		e.log.Warnf("engine: load portfolio for settlement: %v", err)
		return
	}

	state.RealizedPnLCumulative += realizedPnL
	if fullClose {
		if realizedPnL >= 0 {
			state.WinCount++
		} else {
			state.LossCount++
		}
	}

	open, err := e.ledger.OpenPositions(ctx)
	if err != nil {
		e.log.Warnf("engine: load open positions for settlement: %v", err)
		open = nil
	}
	state.RecordEquity(core.MarkToMarketEquity(state.CashBalance, open))

	if err := e.ledger.UpdatePortfolio(ctx, state); err != nil {
		e.log.Warnf("engine: save portfolio settlement: %v", err)
	}
}

func (e *Engine) fail(symbol string, err error) {
	e.log.Errorf("engine: %s: %v", symbol, err)
	if e.notifier != nil {
		e.notifier.OnError(symbol, err)
	}
}

// appendCandle folds candle into symbol's in-memory series, replacing
// the last entry instead of appending if the scheduler ever redelivers
// the same open time, and trims to bufferWindow.
func (e *Engine) appendCandle(symbol string, candle core.Candle) []core.Candle {
	e.buffersMu.Lock()
	defer e.buffersMu.Unlock()

	series := e.buffers[symbol]
	if n := len(series); n > 0 && series[n-1].OpenTime.Equal(candle.OpenTime) {
		series[n-1] = candle
	} else {
		series = append(series, candle)
	}

	if len(series) > bufferWindow {
		series = series[len(series)-bufferWindow:]
	}

	e.buffers[symbol] = series
	return series
}

// closedTrades converts trade-history rows with a realized PnL into the
// sizer's Kelly input. Averaging fills carry no RealizedPnL and are
// excluded. ReturnPct approximates the trade's realized return against
// its own exit notional, since trades_history does not retain each
// fill's entry cost basis separately from the position it belonged to.
func closedTrades(records []core.TradeRecord) []sizer.ClosedTrade {
	out := make([]sizer.ClosedTrade, 0, len(records))
	for _, rec := range records {
		if rec.Side == core.TradeSideAverageDown || rec.Side == core.TradeSidePyramidUp || rec.Side == core.TradeSideBuy {
			continue
		}
		notional := rec.Price * rec.Quantity
		if notional <= 0 {
			continue
		}
		out = append(out, sizer.ClosedTrade{ReturnPct: rec.RealizedPnL / notional})
	}
	return out
}
