package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raykavin/backnrun/pkg/core"
)

func TestAggregateAllBullish(t *testing.T) {
	snap := core.IndicatorSnapshot{
		Close:               105,
		EMAShort:            102,
		EMALong:             100,
		RSI:                 55,
		MACDHistogram:       1.2,
		MACDCrossedUpRecently: true,
		BBMid:               100,
		ADX:                 30,
		PlusDI:              25,
		MinusDI:              10,
		Volume:              200,
		VolumeMean:          100,
		EMAVeryLongSlopePct: 0.002,
	}

	result := Aggregate(snap, 100)
	assert.Equal(t, 7, result.Bullish)
	assert.Equal(t, 0, result.Bearish)
	assert.Equal(t, 7, result.Delta())
	assert.Len(t, result.Top3(), 3)
}

func TestAggregateAllBearish(t *testing.T) {
	snap := core.IndicatorSnapshot{
		Close:               95,
		EMAShort:            98,
		EMALong:             100,
		RSI:                 75,
		MACDHistogram:       -0.5,
		BBMid:               100,
		ADX:                 30,
		PlusDI:              10,
		MinusDI:              25,
		EMAVeryLongSlopePct: -0.01,
	}

	result := Aggregate(snap, 100)
	assert.Equal(t, 0, result.Bullish)
	assert.Equal(t, 5, result.Bearish)
	assert.Equal(t, -5, result.Delta())
}

func TestAggregateNeutralSnapshotCastsNoVotes(t *testing.T) {
	snap := core.IndicatorSnapshot{
		Close:   100,
		EMAShort: 100,
		EMALong:  100,
		RSI:      30,
		BBMid:    100,
		ADX:      10,
	}

	result := Aggregate(snap, 100)
	assert.Equal(t, 0, result.Bullish)
	assert.Equal(t, 0, result.Bearish)
	assert.Empty(t, result.Reasons)
}

func TestVoteResultTop3CapsAtThree(t *testing.T) {
	v := VoteResult{
		Bullish:        4,
		bullishReasons: []string{"a", "b", "c", "d"},
	}
	assert.Equal(t, []string{"a", "b", "c"}, v.Top3())
}
