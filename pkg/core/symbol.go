package core

import "time"

// TrackedSymbol is a trading pair under active management by the
// scheduler (spec §3). The set of tracked symbols is mutated only
// through chat commands, serialized through the ledger.
type TrackedSymbol struct {
	Symbol  string `gorm:"primaryKey"`
	AddedAt time.Time
	// Active is cleared when the exchange reports the symbol unknown or
	// delisted (spec §7, permanent-upstream error); subsequent ticks skip it.
	Active bool
}
