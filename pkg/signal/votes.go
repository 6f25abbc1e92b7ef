package signal

import (
	"sort"

	"github.com/raykavin/backnrun/pkg/core"
)

// VoteResult is the vote aggregator's output (spec §4.2): a pair of
// counts plus the reasons that produced them.
type VoteResult struct {
	Bullish int
	Bearish int
	Reasons []string
	// bullishReasons/bearishReasons are kept separate so Top3 can report
	// the dominant side's own reasons rather than an interleaved mix.
	bullishReasons []string
	bearishReasons []string
}

// Delta is bullish minus bearish votes.
func (v VoteResult) Delta() int { return v.Bullish - v.Bearish }

// Top3 returns the highest-information reasons for the winning side, in
// rule-evaluation order, capped at 3.
func (v VoteResult) Top3() []string {
	side := v.bullishReasons
	if v.Bearish > v.Bullish {
		side = v.bearishReasons
	}
	if len(side) > 3 {
		side = side[:3]
	}
	out := make([]string, len(side))
	copy(out, side)
	return out
}

type vote struct {
	bullish bool
	bearish bool
	reason  string
}

// Aggregate runs the canonical rule set over one IndicatorSnapshot
// (spec §4.2). prevClose is the close of the candle immediately before
// the snapshot's, used by the volume-confirmation rule.
func Aggregate(s core.IndicatorSnapshot, prevClose float64) VoteResult {
	votes := []vote{
		emaRule(s),
		macdRule(s),
		rsiRule(s),
		bbRule(s),
		trendStrengthRule(s),
		volumeRule(s, prevClose),
		slopeRule(s),
	}

	result := VoteResult{}
	for _, v := range votes {
		switch {
		case v.bullish:
			result.Bullish++
			result.Reasons = append(result.Reasons, v.reason)
			result.bullishReasons = append(result.bullishReasons, v.reason)
		case v.bearish:
			result.Bearish++
			result.Reasons = append(result.Reasons, v.reason)
			result.bearishReasons = append(result.bearishReasons, v.reason)
		}
	}

	sort.Strings(result.Reasons)
	return result
}

func emaRule(s core.IndicatorSnapshot) vote {
	if s.EMAShort > s.EMALong || s.EMAShortCrossedUpRecently {
		return vote{bullish: true, reason: "ema_short_above_long"}
	}
	if s.EMAShort < s.EMALong {
		return vote{bearish: true, reason: "ema_short_below_long"}
	}
	return vote{}
}

func macdRule(s core.IndicatorSnapshot) vote {
	if s.MACDHistogram > 0 && s.MACDCrossedUpRecently {
		return vote{bullish: true, reason: "macd_bullish_cross"}
	}
	if s.MACDHistogram < 0 {
		return vote{bearish: true, reason: "macd_negative_histogram"}
	}
	return vote{}
}

func rsiRule(s core.IndicatorSnapshot) vote {
	switch {
	case s.RSI < 30:
		return vote{bullish: true, reason: "rsi_extreme_oversold"}
	case s.RSI > 70:
		return vote{bearish: true, reason: "rsi_extreme_overbought"}
	case s.RSI > 30 && s.RSI < 70:
		// "rising"/"falling" is approximated by which side of the neutral
		// midpoint the RSI sits on; the snapshot doesn't retain RSI
		// history for a true slope check here, only MACD/EMA crosses do.
		switch {
		case s.RSI > 50:
			return vote{bullish: true, reason: "rsi_neutral_rising"}
		case s.RSI < 50:
			return vote{bearish: true, reason: "rsi_neutral_falling"}
		}
	}
	return vote{}
}

func bbRule(s core.IndicatorSnapshot) vote {
	if s.Close > s.BBMid {
		return vote{bullish: true, reason: "price_above_bb_mid"}
	}
	return vote{}
}

func trendStrengthRule(s core.IndicatorSnapshot) vote {
	if s.ADX <= 25 {
		return vote{}
	}
	if s.PlusDI > s.MinusDI {
		return vote{bullish: true, reason: "adx_trending_bullish"}
	}
	if s.MinusDI > s.PlusDI {
		return vote{bearish: true, reason: "adx_trending_bearish"}
	}
	return vote{}
}

func volumeRule(s core.IndicatorSnapshot, prevClose float64) vote {
	if s.VolumeMean <= 0 {
		return vote{}
	}
	if s.Volume > 1.2*s.VolumeMean && s.Close > prevClose {
		return vote{bullish: true, reason: "volume_confirms_move"}
	}
	return vote{}
}

func slopeRule(s core.IndicatorSnapshot) vote {
	if s.EMAVeryLongSlopePct > 0 {
		return vote{bullish: true, reason: "ema200_slope_positive"}
	}
	if s.EMAVeryLongSlopePct < -0.003 {
		return vote{bearish: true, reason: "ema200_slope_negative"}
	}
	return vote{}
}
