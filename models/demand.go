package models

import (
	"math"
	"math/rand"
)

// Demand generation. Patterns mirror the configured game: a constant stream,
// a normal distribution rounded to a non-negative integer, a step function
// that jumps at a configured week (the classic bullwhip trigger), and a
// Poisson arrival stream.

func InitialDemand(game *Game) int {
	switch game.DemandPattern {
	case DemandPatternRandom:
		return NormalRandomDemand(game.RandomDemandMean, game.RandomDemandVariance)
	case DemandPatternPoisson:
		return PoissonRandomDemand(game.RandomDemandMean)
	default:
		return game.FixedDemand
	}
}

// NextDemand computes the external customer demand for a given week.
func NextDemand(game *Game, week int) int {
	switch game.DemandPattern {
	case DemandPatternRandom:
		return NormalRandomDemand(game.RandomDemandMean, game.RandomDemandVariance)
	case DemandPatternStep:
		return StepDemand(week, game.FixedDemand, game.StepWeek, game.StepAmount)
	case DemandPatternPoisson:
		return PoissonRandomDemand(game.RandomDemandMean)
	default:
		return game.FixedDemand
	}
}

// NormalRandomDemand draws from N(mean, variance) via the Box-Muller
// transform, rounded and clamped at zero.
func NormalRandomDemand(mean, variance float64) int {
	u1 := rand.Float64()
	u2 := rand.Float64()
	z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)

	stdDev := math.Sqrt(variance)
	result := int(math.Round(mean + z0*stdDev))
	if result < 0 {
		return 0
	}
	return result
}

// PoissonRandomDemand draws from Poisson(lambda) by Knuth's method.
func PoissonRandomDemand(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		k++
		p *= rand.Float64()
		if p <= l {
			break
		}
	}
	return k - 1
}

// StepDemand holds at baseValue until stepWeek, then jumps by stepAmount.
func StepDemand(week, baseValue, stepWeek, stepAmount int) int {
	if week >= stepWeek {
		return baseValue + stepAmount
	}
	return baseValue
}
