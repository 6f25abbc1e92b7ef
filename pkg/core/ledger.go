package core

import (
	"context"
	"time"
)

// Ledger is the durable portfolio store (spec §4.7). Every method call
// is one committed transaction: it either persists cleanly or returns
// an error with the store left unchanged, so callers never observe a
// partial write.
type Ledger interface {
	// Symbol tracking, mutated only through chat commands.
	TrackSymbol(ctx context.Context, symbol string) error
	UntrackSymbol(ctx context.Context, symbol string) error
	TrackedSymbols(ctx context.Context) ([]TrackedSymbol, error)
	DeactivateSymbol(ctx context.Context, symbol string) error

	// Positions.
	OpenPosition(ctx context.Context, pos *Position) error
	// RecordEntry appends the BUY fill for a just-opened position to
	// trades_history, so entries are as discoverable via TradeHistory as
	// any exit or averaging fill (spec §6's trades_history table).
	RecordEntry(ctx context.Context, pos *Position) (TradeRecord, error)
	PositionFor(ctx context.Context, symbol string) (*Position, error)
	OpenPositions(ctx context.Context) ([]Position, error)
	ApplyExit(ctx context.Context, positionID uint, candleOpenTime time.Time, updated Position, qtyClosed, price, commission float64, reason TradeSide) (TradeRecord, error)
	ApplyAveraging(ctx context.Context, positionID uint, entry AveragingEntry, updated Position) (TradeRecord, error)
	UpdatePosition(ctx context.Context, pos *Position) error

	// Trade history and signal diagnostics, append-only.
	TradeHistory(ctx context.Context, symbol string, limit int) ([]TradeRecord, error)
	AppendSignal(ctx context.Context, rec SignalRecord) error
	SignalHistory(ctx context.Context, symbol string, limit int) ([]SignalRecord, error)

	// Portfolio summary, single row.
	Portfolio(ctx context.Context) (PortfolioState, error)
	UpdatePortfolio(ctx context.Context, state PortfolioState) error

	// Regime dwell-time cache, durably persisted (and read-through
	// cached, spec §9) so a restart never forgets how long a symbol has
	// held its current regime.
	RegimeState(ctx context.Context, symbol string) (RegimeState, error)
	UpdateRegimeState(ctx context.Context, state RegimeState) error

	// Settings, single row, reloaded on chat-commanded reload.
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error

	// ReserveCash and ReleaseCash implement the reservation pattern
	// guarding balance_cash against double-spend across concurrently
	// ticking symbols (spec §5).
	ReserveCash(ctx context.Context, amount float64) (ok bool, err error)
	ReleaseCash(ctx context.Context, amount float64) error
}
