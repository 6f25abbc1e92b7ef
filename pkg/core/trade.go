package core

import "time"

// TradeSide enumerates every reason a TradeRecord can be written for,
// beyond the plain entry/exit BUY and SELL (spec §3).
type TradeSide string

const (
	TradeSideBuy           TradeSide = "BUY"
	TradeSideSell          TradeSide = "SELL"
	TradeSideStopLoss      TradeSide = "STOP_LOSS"
	TradeSidePartialTP     TradeSide = "PARTIAL_TP"
	TradeSideTrailingStop  TradeSide = "TRAILING_STOP"
	TradeSideBreakevenStop TradeSide = "BREAKEVEN_STOP"
	TradeSideTakeProfit    TradeSide = "TAKE_PROFIT"
	TradeSideAverageDown   TradeSide = "AVERAGE_DOWN"
	TradeSidePyramidUp     TradeSide = "PYRAMID_UP"
	TradeSideSignalExit    TradeSide = "SIGNAL_EXIT"
)

// TradeRecord is the append-only ledger of every fill. It is never
// mutated after insert; a unique constraint on (symbol, candle_open_time,
// reason) makes replaying the same closed candle idempotent (spec §7).
type TradeRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol         string    `gorm:"uniqueIndex:idx_trade_replay"`
	CandleOpenTime time.Time `gorm:"uniqueIndex:idx_trade_replay"`
	Reason         string    `gorm:"uniqueIndex:idx_trade_replay"`

	PositionID uint `gorm:"index"`
	Side       TradeSide
	Price      float64
	Quantity   float64
	Commission float64
	RealizedPnL float64
	At         time.Time

	EntryMode  RegimeMode
	VotesDelta int
	Reasons    StringList
}
