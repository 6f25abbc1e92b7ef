package core

import "time"

// AveragingMode distinguishes why an averaging entry was added to a
// position: scaling into a loser versus pyramiding a winner (spec §4.6).
type AveragingMode string

const (
	AveragingModeDown   AveragingMode = "AVERAGE_DOWN"
	AveragingModePyramid AveragingMode = "PYRAMID_UP"
)

// AveragingEntry records one averaging fill against an open position.
// Entries are append-only; a position's average_entry_price is always
// recomputed from the initial fill plus every entry in this slice.
type AveragingEntry struct {
	ID         uint `gorm:"primaryKey"`
	PositionID uint `gorm:"index"`
	Price      float64
	Quantity   float64
	Commission float64
	At         time.Time
	Mode       AveragingMode
}

// LifecycleStage is a coarse, derived label over a position's exit-state
// flags, used for logging and chat notifications (spec §9 design note:
// the boolean flags are the source of truth; the stage is a read-only
// projection documenting which combinations are reachable).
type LifecycleStage string

const (
	StageOpen            LifecycleStage = "OPEN"
	StageTrailingArmed   LifecycleStage = "TRAILING_ARMED"
	StagePartialTPTaken  LifecycleStage = "PARTIAL_TP_TAKEN"
	StageBreakevenLocked LifecycleStage = "BREAKEVEN_LOCKED"
)

// Position is one open (or historically, closed) long position managed
// by the position manager (spec §3). Exit-state fields are mutated only
// through the setter methods below so that the break-even monotonicity
// invariant (stop_loss_price never decreases once breakeven is active)
// cannot be violated by a stray assignment elsewhere.
type Position struct {
	ID     uint   `gorm:"primaryKey"`
	Symbol string `gorm:"index"`

	OpenedAt time.Time
	ClosedAt *time.Time

	AverageEntryPrice float64
	Quantity          float64
	InitialInvested   float64
	TotalInvested     float64
	CommissionPaid    float64

	// LastPrice is the most recent candle close observed for this
	// position, updated every tick. It backs the portfolio's
	// mark-to-market equity calculation (spec §3: equity = cash +
	// Σ quantity × last price) between exits, when no trade fixes a
	// realized price.
	LastPrice float64

	StopLossPrice          float64
	TakeProfitPrice        float64
	HighestPriceSinceEntry float64

	TrailingActive  bool
	BreakevenActive bool
	PartialTPTaken  bool

	AveragingCount   int
	AveragingEntries []AveragingEntry `gorm:"foreignKey:PositionID"`

	EntryMode      RegimeMode
	EntryVotes     int
	EntryReasons   StringList
	EntryIsPaper   bool
	EntryForceBuy  bool
}

// IsOpen reports whether the position still holds quantity.
func (p *Position) IsOpen() bool { return p.ClosedAt == nil && p.Quantity > 0 }

// Stage derives the coarse lifecycle label from the exit-state flags.
func (p *Position) Stage() LifecycleStage {
	switch {
	case p.BreakevenActive:
		return StageBreakevenLocked
	case p.PartialTPTaken:
		return StagePartialTPTaken
	case p.TrailingActive:
		return StageTrailingArmed
	default:
		return StageOpen
	}
}

// ActivateTrailing arms the trailing stop and seeds the high-water mark.
// A no-op if already active, since step 5 of the exit-priority protocol
// runs on every tick regardless of current state.
func (p *Position) ActivateTrailing(price float64) {
	if p.TrailingActive {
		return
	}
	p.TrailingActive = true
	if price > p.HighestPriceSinceEntry {
		p.HighestPriceSinceEntry = price
	}
}

// UpdateTrailingHighWaterMark advances the high-water mark used by the
// trailing stop; it never moves backward.
func (p *Position) UpdateTrailingHighWaterMark(price float64) {
	if price > p.HighestPriceSinceEntry {
		p.HighestPriceSinceEntry = price
	}
}

// PromoteToBreakeven sets breakeven_active and raises stop_loss_price to
// at least average_entry_price. Enforces the break-even monotonicity
// invariant (spec §7): stop_loss_price never decreases once this is set.
func (p *Position) PromoteToBreakeven() {
	p.BreakevenActive = true
	if p.StopLossPrice < p.AverageEntryPrice {
		p.StopLossPrice = p.AverageEntryPrice
	}
}

// RaiseStopLoss moves stop_loss_price up, never down, and never below an
// already-active break-even floor.
func (p *Position) RaiseStopLoss(candidate float64) {
	if candidate > p.StopLossPrice {
		p.StopLossPrice = candidate
	}
}

// MarkPartialTPTaken records the one-shot partial take-profit and
// promotes the position to break-even in the same step (spec §4.6 step 4).
func (p *Position) MarkPartialTPTaken(newTakeProfit float64) {
	p.PartialTPTaken = true
	p.PromoteToBreakeven()
	if newTakeProfit > p.TakeProfitPrice {
		p.TakeProfitPrice = newTakeProfit
	}
}

// ApplyAveraging folds a new fill into the weighted average entry price
// and total invested, per spec §4.6's averaging recomputation rule. The
// fill's commission is not part of the entry-price average (a price
// concept) but is folded into total_invested and commission_paid, same
// as the initial entry, so realized_pnl stays reconcilable at exit
// (spec §8: realized_pnl = Σ sell_notional − Σ buy_notional − Σ commission).
func (p *Position) ApplyAveraging(entry AveragingEntry) {
	newCost := entry.Price * entry.Quantity
	totalQty := p.Quantity + entry.Quantity
	p.AverageEntryPrice = (p.AverageEntryPrice*p.Quantity + newCost) / totalQty
	p.Quantity = totalQty
	p.TotalInvested += newCost + entry.Commission
	p.CommissionPaid += entry.Commission
	p.AveragingCount++
	p.AveragingEntries = append(p.AveragingEntries, entry)
}
