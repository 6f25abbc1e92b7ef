// Package chatbot implements the chat control surface's command logic
// (spec §6), independent of the transport that carries it. pkg/notification
// wires a telebot.v2 bot around a Commander; the same Commander could sit
// behind any other chat transport without change.
package chatbot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"

	"github.com/raykavin/backnrun/pkg/core"
	"github.com/raykavin/backnrun/pkg/engine"
	"github.com/raykavin/backnrun/pkg/metric"
	"github.com/raykavin/backnrun/pkg/scheduler"
)

const defaultTradesLimit = 10

// Commander executes every command in spec §6's chat control surface
// against the scheduler and ledger, returning the reply text for the
// transport to send back. It holds no per-user state: authentication is
// the transport's responsibility (spec §6: "commands are authenticated
// against an owner identifier").
type Commander struct {
	scheduler *scheduler.Scheduler
	ledger    core.Ledger
	engine    *engine.Engine
	log       core.Logger
}

// New builds a Commander.
func New(sched *scheduler.Scheduler, ledger core.Ledger, eng *engine.Engine, log core.Logger) *Commander {
	return &Commander{scheduler: sched, ledger: ledger, engine: eng, log: log}
}

// Add implements the "add <SYMBOL>" command.
func (c *Commander) Add(ctx context.Context, symbol string) string {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "usage: add <SYMBOL>"
	}
	if err := c.scheduler.TrackSymbol(ctx, symbol); err != nil {
		return fmt.Sprintf("failed to track %s: %v", symbol, err)
	}
	return fmt.Sprintf("tracking %s", symbol)
}

// Remove implements the "remove <SYMBOL>" command. An open position is
// resolved close-at-market before the symbol stops receiving ticks
// (spec §3): once untracked it would otherwise never be touched again.
func (c *Commander) Remove(ctx context.Context, symbol string) string {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "usage: remove <SYMBOL>"
	}
	if err := c.engine.CloseAtMarket(ctx, symbol); err != nil {
		return fmt.Sprintf("failed to close %s at market: %v", symbol, err)
	}
	if err := c.scheduler.UntrackSymbol(ctx, symbol); err != nil {
		return fmt.Sprintf("failed to untrack %s: %v", symbol, err)
	}
	return fmt.Sprintf("stopped tracking %s", symbol)
}

// List implements the "list" command.
func (c *Commander) List() string {
	symbols := c.scheduler.TrackedSymbols()
	if len(symbols) == 0 {
		return "no symbols tracked"
	}
	sort.Strings(symbols)
	return "tracked: " + strings.Join(symbols, ", ")
}

// Status implements the "status" command: one row per open position plus
// the running/stopped flag and portfolio summary.
func (c *Commander) Status(ctx context.Context) string {
	portfolio, err := c.ledger.Portfolio(ctx)
	if err != nil {
		return fmt.Sprintf("failed to load portfolio: %v", err)
	}

	positions, err := c.ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Sprintf("failed to load positions: %v", err)
	}

	state := "RUNNING"
	if !c.engine.Running() {
		state = "STOPPED"
	}

	equity := core.MarkToMarketEquity(portfolio.CashBalance, positions)
	portfolio.RecordEquity(equity)

	var sb strings.Builder
	fmt.Fprintf(&sb, "status: %s\n", state)
	fmt.Fprintf(&sb, "equity: %.2f  cash: %.2f  drawdown: %.2f%%\n",
		equity, portfolio.CashBalance, portfolio.DrawdownPct()*100)
	fmt.Fprintf(&sb, "win rate: %.1f%% (%d/%d)\n",
		portfolio.WinRate()*100, portfolio.WinCount, portfolio.WinCount+portfolio.LossCount)

	if len(positions) == 0 {
		sb.WriteString("no open positions\n")
		return sb.String()
	}

	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Symbol", "Mode", "Qty", "Entry", "Stop", "Target", "Stage"})
	for _, pos := range positions {
		table.Append([]string{
			pos.Symbol,
			string(pos.EntryMode),
			fmt.Sprintf("%.6f", pos.Quantity),
			fmt.Sprintf("%.4f", pos.AverageEntryPrice),
			fmt.Sprintf("%.4f", pos.StopLossPrice),
			fmt.Sprintf("%.4f", pos.TakeProfitPrice),
			string(pos.Stage()),
		})
	}
	table.Render()
	return sb.String()
}

// Balance implements the "balance" command.
func (c *Commander) Balance(ctx context.Context) string {
	portfolio, err := c.ledger.Portfolio(ctx)
	if err != nil {
		return fmt.Sprintf("failed to load portfolio: %v", err)
	}

	positions, err := c.ledger.OpenPositions(ctx)
	if err != nil {
		return fmt.Sprintf("failed to load positions: %v", err)
	}

	equity := core.MarkToMarketEquity(portfolio.CashBalance, positions)
	portfolio.RecordEquity(equity)

	return fmt.Sprintf("cash: %.2f\nequity: %.2f\npeak equity: %.2f\nrealized PnL: %.2f",
		portfolio.CashBalance, equity, portfolio.PeakEquity, portfolio.RealizedPnLCumulative)
}

// Trades implements the "trades [N]" command.
func (c *Commander) Trades(ctx context.Context, symbol string, limitArg string) string {
	symbol = normalizeSymbol(symbol)
	limit := defaultTradesLimit
	if limitArg != "" {
		if n, err := strconv.Atoi(limitArg); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := c.ledger.TradeHistory(ctx, symbol, limit)
	if err != nil {
		return fmt.Sprintf("failed to load trade history: %v", err)
	}
	if len(records) == 0 {
		return "no trades recorded"
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"Symbol", "Side", "Price", "Qty", "Realized PnL", "At"})
	for _, rec := range records {
		table.Append([]string{
			rec.Symbol,
			string(rec.Side),
			fmt.Sprintf("%.4f", rec.Price),
			fmt.Sprintf("%.6f", rec.Quantity),
			fmt.Sprintf("%.4f", rec.RealizedPnL),
			rec.At.Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return sb.String()
}

// Start implements the "start" command.
func (c *Commander) Start() string {
	c.engine.SetRunning(true)
	return "started: new entries resume"
}

// Stop implements the "stop" command. Open positions continue to be
// managed by the exit-priority protocol; only new entries are paused.
func (c *Commander) Stop() string {
	c.engine.SetRunning(false)
	return "stopped: no new entries, existing positions still managed"
}

// Reset implements the "reset" command: reloads settings from the
// ledger's persisted row on the next tick by doing nothing here, since
// the engine already re-reads settings every candle (spec §7) — reset
// exists as an explicit operator acknowledgement that a prior settings
// edit (made out of band) should take effect now.
func (c *Commander) Reset() string {
	return "settings will be re-read on the next tick"
}

// ForceBuy implements the "force_buy <SYMBOL>" command (spec §9 Open
// Question #2): bypasses entry filters but not MaxPositions or cash.
func (c *Commander) ForceBuy(ctx context.Context, symbol string) string {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return "usage: force_buy <SYMBOL>"
	}
	if err := c.engine.ForceBuy(ctx, symbol); err != nil {
		return fmt.Sprintf("force_buy %s failed: %v", symbol, err)
	}
	return fmt.Sprintf("force_buy %s submitted", symbol)
}

// SignalStats implements the "signal_stats" command: an ASCII histogram
// of recent vote deltas across every tracked symbol's signal history.
func (c *Commander) SignalStats(ctx context.Context) string {
	var deltas []float64
	for _, symbol := range c.scheduler.TrackedSymbols() {
		records, err := c.ledger.SignalHistory(ctx, symbol, 200)
		if err != nil {
			continue
		}
		for _, rec := range records {
			deltas = append(deltas, float64(rec.VotesDelta))
		}
	}

	if len(deltas) == 0 {
		return "no signal history yet"
	}

	hist := histogram.Hist(15, deltas)
	var sb strings.Builder
	sb.WriteString("vote delta distribution:\n")
	histogram.Fprint(&sb, hist, histogram.Linear(40))
	return sb.String()
}

// SignalAnalysis implements the "signal_analysis" command: a bootstrap
// confidence interval over realized-return percentages per symbol,
// grounded on the teacher's bootstrap-based profit-factor/payoff report.
func (c *Commander) SignalAnalysis(ctx context.Context) string {
	var sb strings.Builder
	analyzed := false
	for _, symbol := range c.scheduler.TrackedSymbols() {
		records, err := c.ledger.TradeHistory(ctx, symbol, 500)
		if err != nil {
			continue
		}

		var returns []float64
		for _, rec := range records {
			notional := rec.Price * rec.Quantity
			if notional <= 0 || rec.Side == core.TradeSideBuy ||
				rec.Side == core.TradeSideAverageDown || rec.Side == core.TradeSidePyramidUp {
				continue
			}
			returns = append(returns, rec.RealizedPnL/notional*100)
		}
		if len(returns) < 5 {
			continue
		}
		analyzed = true

		returnInterval := metric.Bootstrap(returns, metric.Mean, 10000, 0.95)
		payoffInterval := metric.Bootstrap(returns, metric.Payoff, 10000, 0.95)
		profitFactorInterval := metric.Bootstrap(returns, metric.ProfitFactor, 10000, 0.95)

		fmt.Fprintf(&sb, "%s (n=%d)\n", symbol, len(returns))
		fmt.Fprintf(&sb, "  return:      %.2f%% (%.2f%% ~ %.2f%%)\n",
			returnInterval.Mean, returnInterval.Lower, returnInterval.Upper)
		fmt.Fprintf(&sb, "  payoff:      %.2f (%.2f ~ %.2f)\n",
			payoffInterval.Mean, payoffInterval.Lower, payoffInterval.Upper)
		fmt.Fprintf(&sb, "  profit fact: %.2f (%.2f ~ %.2f)\n",
			profitFactorInterval.Mean, profitFactorInterval.Lower, profitFactorInterval.Upper)
	}

	if !analyzed {
		return "not enough closed trades for analysis yet"
	}
	return sb.String()
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
