package core

// Settings is the full flat set of named trading-parameter options
// described in spec §6, persisted as a single row in the settings
// table. It is read at startup and re-read on a chat-commanded reload
// (spec §7); application-level config (exchange credentials, bot
// token, owner id) lives outside this struct in internal/config.
type Settings struct {
	ID uint `gorm:"primaryKey"`

	// Vote thresholds (spec §4.4, §9 Open Question #1): MR/TF base
	// thresholds and the separate, independently tunable bar required to
	// act while the regime selector itself reports TRANSITION.
	MinVotesForBuy            int
	MinVotesForSell           int
	TransitionMinVotesForBuy  int
	TransitionMinVotesForSell int

	// Regime boundaries and hysteresis (spec §4.3).
	ADXLow   float64
	ADXHigh  float64
	MinDwell string // duration string, e.g. "4h" (xhit/go-str2duration parsed)

	// MR entry/exit template (spec §4.4, §4.6).
	MRRSIOversold        float64
	MRZScoreBuyThreshold float64
	MRADXMax             float64
	MRStopLossPct        float64
	MRATRSLMult          float64
	MRATRTPMult          float64
	MRTPPct              float64

	// TF entry/exit template (spec §4.4, §4.6).
	PartialTPTriggerPct     float64
	PartialTPRemainingTPPct float64
	PartialClosePct         float64

	// Trailing stop (spec §4.6 steps 3/5).
	TrailActivationPctMR float64
	TrailActivationPctTF float64
	TrailDistancePct     float64

	// Averaging and pyramiding policy (spec §4.6 step 8).
	AveragingPriceDropPct  float64
	AveragingTimeThreshold string
	AveragingSizePct       float64
	MaxAveragingAttempts   int
	PyramidADXThreshold    float64
	PyramidUpGainPct       float64
	MaxTotalRiskMultiplier float64

	// Sizing policy (spec §4.5).
	UseKelly            bool
	KellyFraction       float64
	KellyLookbackWindow int
	MinTradesForKelly   int
	SizeMin             float64
	SizeMax             float64

	// Portfolio constraints (spec §4.4, §4.7).
	MaxPositions   int
	CommissionRate float64

	// Entry filters (spec §4.4 step 3, common block).
	NoBuyBelowPct           float64
	VolumeSpikeMult         float64
	EMA200NegSlopeThreshold float64

	// Scheduler (spec §5).
	MaxConcurrentFetches int
}

// DefaultSettings returns the documented defaults from spec §4, used by
// the ledger to seed the settings table on first run.
func DefaultSettings() Settings {
	return Settings{
		MinVotesForBuy:            5,
		MinVotesForSell:           5,
		TransitionMinVotesForBuy:  5,
		TransitionMinVotesForSell: 5,

		ADXLow:   20,
		ADXHigh:  25,
		MinDwell: "4h",

		MRRSIOversold:        40,
		MRZScoreBuyThreshold: -1.8,
		MRADXMax:             35,
		MRStopLossPct:        0.03,
		MRATRSLMult:          1.5,
		MRATRTPMult:          2.5,
		MRTPPct:              0.04,

		PartialTPTriggerPct:     0.015,
		PartialTPRemainingTPPct: 0.03,
		PartialClosePct:         0.5,

		TrailActivationPctMR: 0.008,
		TrailActivationPctTF: 0.015,
		TrailDistancePct:     0.01,

		AveragingPriceDropPct:  0.05,
		AveragingTimeThreshold: "24h",
		AveragingSizePct:       0.5,
		MaxAveragingAttempts:   2,
		PyramidADXThreshold:    25,
		PyramidUpGainPct:       0.02,
		MaxTotalRiskMultiplier: 1.5,

		UseKelly:            true,
		KellyFraction:       0.25,
		KellyLookbackWindow: 50,
		MinTradesForKelly:   10,
		SizeMin:             0.20,
		SizeMax:             0.70,

		MaxPositions:   3,
		CommissionRate: 0.0009,

		NoBuyBelowPct:           0.10,
		VolumeSpikeMult:         3.0,
		EMA200NegSlopeThreshold: -0.001,

		MaxConcurrentFetches: 5,
	}
}
