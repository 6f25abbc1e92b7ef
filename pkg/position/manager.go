package position

import (
	"math"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/backnrun/pkg/core"
)

// ExitAction is emitted when a tick closes all or part of a position.
type ExitAction struct {
	Reason     core.TradeSide
	QtyClosed  float64
	Price      float64
	Commission float64
	FullClose  bool
}

// AveragingAction is emitted when a tick adds to an open position.
type AveragingAction struct {
	Mode       core.AveragingMode
	Price      float64
	Quantity   float64
	Commission float64
}

// TickResult is everything the orchestrator needs to commit after one
// call to Evaluate: at most one exit, at most one averaging entry, and
// the (possibly mutated in place) position.
type TickResult struct {
	Exit      *ExitAction
	Averaging *AveragingAction
}

// Manager applies the exit-priority protocol (spec §4.6). It holds no
// state: every call is given the position to mutate and returns what
// was decided, leaving persistence to the ledger.
type Manager struct{}

func NewManager() *Manager { return &Manager{} }

// Evaluate runs steps 1-8 of the exit-priority protocol against one
// open position for the candle currently closing. The first matching
// exit wins and evaluation stops there, per spec §4.6.
func (m *Manager) Evaluate(pos *core.Position, price float64, snapshot core.IndicatorSnapshot, decision core.SignalDecision, settings core.Settings, now time.Time) TickResult {
	commission := func(qty float64) float64 { return qty * price * settings.CommissionRate }

	// 1. Hard stop-loss.
	if price <= pos.StopLossPrice {
		return closeAll(pos, price, commission(pos.Quantity), core.TradeSideStopLoss, now)
	}

	// 2. Break-even stop.
	if pos.BreakevenActive && price <= pos.AverageEntryPrice {
		return closeAll(pos, price, commission(pos.Quantity), core.TradeSideBreakevenStop, now)
	}

	// 3. Trailing stop.
	if pos.TrailingActive {
		pos.UpdateTrailingHighWaterMark(price)
		if price <= pos.HighestPriceSinceEntry*(1-settings.TrailDistancePct) {
			return closeAll(pos, price, commission(pos.Quantity), core.TradeSideTrailingStop, now)
		}
	}

	// 4. Partial take-profit (one-shot, TF entries only).
	if !pos.PartialTPTaken && pos.EntryMode == core.RegimeTF {
		trigger := pos.AverageEntryPrice * (1 + settings.PartialTPTriggerPct)
		if price >= trigger {
			qty := pos.Quantity * settings.PartialClosePct
			pos.Quantity -= qty
			newTP := pos.AverageEntryPrice * (1 + settings.PartialTPRemainingTPPct)
			pos.MarkPartialTPTaken(newTP)
			return TickResult{Exit: &ExitAction{
				Reason:     core.TradeSidePartialTP,
				QtyClosed:  qty,
				Price:      price,
				Commission: commission(qty),
				FullClose:  false,
			}}
		}
	}

	// 5. Trailing activation.
	trailActivation := settings.TrailActivationPctTF
	if pos.EntryMode == core.RegimeMR {
		trailActivation = settings.TrailActivationPctMR
	}
	if !pos.TrailingActive && price >= pos.AverageEntryPrice*(1+trailActivation) {
		pos.ActivateTrailing(price)
	}

	// 6. Take-profit.
	if price >= pos.TakeProfitPrice {
		return closeAll(pos, price, commission(pos.Quantity), core.TradeSideTakeProfit, now)
	}

	// 7. Signal exit.
	if decision.Kind == core.SignalSell {
		return closeAll(pos, price, commission(pos.Quantity), core.TradeSideSignalExit, now)
	}

	// 8. Averaging opportunity.
	return m.evaluateAveraging(pos, price, snapshot, decision, settings, now)
}

func closeAll(pos *core.Position, price, commission float64, reason core.TradeSide, now time.Time) TickResult {
	qty := pos.Quantity
	pos.Quantity = 0
	pos.ClosedAt = &now
	return TickResult{Exit: &ExitAction{
		Reason:     reason,
		QtyClosed:  qty,
		Price:      price,
		Commission: commission,
		FullClose:  true,
	}}
}

func (m *Manager) evaluateAveraging(pos *core.Position, price float64, snapshot core.IndicatorSnapshot, decision core.SignalDecision, settings core.Settings, now time.Time) TickResult {
	maxInvested := pos.InitialInvested * settings.MaxTotalRiskMultiplier

	if pos.AveragingCount < settings.MaxAveragingAttempts {
		dropThreshold := pos.AverageEntryPrice * (1 - settings.AveragingPriceDropPct)
		held, _ := str2duration.ParseDuration(settings.AveragingTimeThreshold)
		if price <= dropThreshold && now.Sub(pos.OpenedAt) >= held {
			qty := (pos.InitialInvested * settings.AveragingSizePct) / price
			newInvest := qty * price
			fillCommission := newInvest * settings.CommissionRate
			if pos.TotalInvested+newInvest <= maxInvested {
				newSL := price * (1 - math.Max(settings.MRStopLossPct, snapshot.ATRPct*settings.MRATRSLMult))
				pos.RaiseStopLoss(newSL)
				pos.ApplyAveraging(core.AveragingEntry{Price: price, Quantity: qty, Commission: fillCommission, At: now, Mode: core.AveragingModeDown})
				pos.TakeProfitPrice = pos.AverageEntryPrice * (1 + settings.MRTPPct)
				return TickResult{Averaging: &AveragingAction{Mode: core.AveragingModeDown, Price: price, Quantity: qty, Commission: fillCommission}}
			}
		}

		gainThreshold := pos.AverageEntryPrice * (1 + settings.PyramidUpGainPct)
		if snapshot.ADX > settings.PyramidADXThreshold && price > gainThreshold && decision.Kind == core.SignalBuy {
			scale := 0.3 * math.Abs(float64(decision.VotesDelta))
			qty := (pos.InitialInvested * scale) / price
			newInvest := qty * price
			fillCommission := newInvest * settings.CommissionRate
			if pos.TotalInvested+newInvest <= maxInvested {
				newSL := price * (1 - math.Max(settings.MRStopLossPct, snapshot.ATRPct*settings.MRATRSLMult))
				pos.RaiseStopLoss(newSL)
				pos.ApplyAveraging(core.AveragingEntry{Price: price, Quantity: qty, Commission: fillCommission, At: now, Mode: core.AveragingModePyramid})
				return TickResult{Averaging: &AveragingAction{Mode: core.AveragingModePyramid, Price: price, Quantity: qty, Commission: fillCommission}}
			}
		}
	}

	return TickResult{}
}

// OpenNew sizes and opens a new position from a qualifying BUY decision
// (spec §4.6, final paragraph). quantity is used as given: it is not
// rounded to the exchange lot step here or by the engine before commit.
func OpenNew(decision core.SignalDecision, price, freeCash float64, settings core.Settings, now time.Time) *core.Position {
	notional := freeCash * decision.ProposedSizeFraction
	commission := notional * settings.CommissionRate
	qty := (notional - commission) / price

	return &core.Position{
		Symbol:                 "",
		OpenedAt:               now,
		AverageEntryPrice:      price,
		LastPrice:              price,
		Quantity:               qty,
		InitialInvested:        notional,
		TotalInvested:          notional,
		CommissionPaid:         commission,
		StopLossPrice:          decision.ProposedStopLoss,
		TakeProfitPrice:        decision.ProposedTakeProfit,
		HighestPriceSinceEntry: price,
		EntryMode:              decision.EntryMode,
		EntryVotes:             decision.VotesDelta,
		EntryReasons:           core.StringList(decision.Reasons),
	}
}
