package core

import "time"

// SignalKind is the output of the vote aggregator + regime filters.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalSell SignalKind = "SELL"
	SignalHold SignalKind = "HOLD"
)

// SignalDecision is the signal generator's per-candle output (spec §4.4).
// A non-empty BlockReason always forces Kind to HOLD for entry purposes,
// even when the underlying vote count would otherwise qualify.
type SignalDecision struct {
	Kind                SignalKind
	ProposedSizeFraction float64
	ProposedStopLoss    float64
	ProposedTakeProfit  float64
	EntryMode           RegimeMode
	VotesDelta          int
	Reasons             []string
	BlockReason         string
}

// SignalRecord is the append-only diagnostics trail of every signal
// decision, blocked or not (spec §4.7).
type SignalRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol string    `gorm:"index:idx_signal_symbol_time"`
	At     time.Time `gorm:"index:idx_signal_symbol_time"`

	Signal      SignalKind
	Regime      RegimeMode
	VotesDelta  int
	TopReasons  StringList
	Price       float64
	BlockReason string
}
