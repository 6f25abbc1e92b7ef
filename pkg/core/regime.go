package core

import "time"

// RegimeMode is the hybrid regime selector's state (spec §4.3), a tagged
// variant switched on by value rather than by subclass (spec §9).
type RegimeMode string

const (
	RegimeUnknown    RegimeMode = "UNKNOWN"
	RegimeMR         RegimeMode = "MR"
	RegimeTF         RegimeMode = "TF"
	RegimeTransition RegimeMode = "TRANSITION"
)

// RegimeState is the process-local (but durably persisted) dwell-time
// cache for one symbol's regime selector.
type RegimeState struct {
	Symbol          string `gorm:"primaryKey"`
	LastMode        RegimeMode
	LastModeEntered time.Time
}
