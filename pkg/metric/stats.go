package metric

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of the values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Payoff calculates the ratio of average wins to average losses.
func Payoff(values []float64) float64 {
	wins, losses := partition(values)
	if len(losses) == 0 {
		return 10
	}

	avgWin := stat.Mean(wins, nil)
	avgLoss := stat.Mean(losses, nil)
	if avgLoss == 0 {
		return 10
	}

	return math.Abs(avgWin / avgLoss)
}

// ProfitFactor calculates the ratio of total profits to total losses.
func ProfitFactor(values []float64) float64 {
	var wins, losses float64
	for _, v := range values {
		if v >= 0 {
			wins += v
		} else {
			losses += v
		}
	}

	if losses == 0 {
		return 10
	}
	return math.Abs(wins / losses)
}

func partition(values []float64) (wins, losses []float64) {
	for _, v := range values {
		if v >= 0 {
			wins = append(wins, v)
		} else {
			losses = append(losses, math.Abs(v))
		}
	}
	return wins, losses
}
