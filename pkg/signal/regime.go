package signal

import (
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"

	"github.com/raykavin/backnrun/pkg/core"
)

// Selector is the hysteretic regime state machine (spec §4.3). It holds
// no state of its own — the caller passes the previous RegimeState and
// receives the next one — so the ledger remains the single source of
// truth across restarts.
type Selector struct{}

// NewSelector builds a Selector. It takes no arguments today; it exists
// as a type so regime evaluation can later gain per-symbol overrides
// without changing every call site.
func NewSelector() *Selector { return &Selector{} }

// Evaluate computes the next RegimeState for one symbol from the
// current ADX reading and tick time, applying the minimum dwell-time
// guard (spec §4.3).
func (sel *Selector) Evaluate(symbol string, adx float64, now time.Time, prev core.RegimeState, settings core.Settings) core.RegimeState {
	candidate := classify(adx, settings)

	if prev.LastMode == "" {
		prev.LastMode = core.RegimeUnknown
	}

	if candidate == prev.LastMode {
		return prev
	}

	if prev.LastMode != core.RegimeTransition && !dwellElapsed(now, prev.LastModeEntered, settings.MinDwell) {
		return prev
	}

	return core.RegimeState{
		Symbol:          symbol,
		LastMode:        candidate,
		LastModeEntered: now,
	}
}

func classify(adx float64, settings core.Settings) core.RegimeMode {
	switch {
	case adx < settings.ADXLow:
		return core.RegimeMR
	case adx > settings.ADXHigh:
		return core.RegimeTF
	default:
		return core.RegimeTransition
	}
}

func dwellElapsed(now, enteredAt time.Time, minDwell string) bool {
	if enteredAt.IsZero() {
		return true
	}
	d, err := str2duration.ParseDuration(minDwell)
	if err != nil {
		d = 30 * time.Minute
	}
	return now.Sub(enteredAt) >= d
}
