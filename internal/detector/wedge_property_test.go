package detector

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"WedgeSentinel/internal/model"
)

func relClose(got, want, tol float64) bool {
	scale := math.Max(math.Abs(want), 1)
	return math.Abs(got-want) <= tol*scale
}

// Property: noiseless linear highs and lows are recovered by the fit.
func TestProperty_ExactRecovery(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("fitted lines equal generating lines", prop.ForAll(
		func(hs, hb, ls, lb float64) bool {
			v := New(DefaultConvergenceThreshold).Detect(mkWedge(100, hb, hs, lb, ls, hb))
			return relClose(v.HighLine.Slope, hs, 1e-9) &&
				relClose(v.HighLine.Intercept, hb, 1e-9) &&
				relClose(v.LowLine.Slope, ls, 1e-9) &&
				relClose(v.LowLine.Intercept, lb, 1e-9)
		},
		gen.Float64Range(-5, 5),
		gen.Float64Range(100, 10000),
		gen.Float64Range(-5, 5),
		gen.Float64Range(1, 100),
	))

	properties.TestingRun(t)
}

// Property: Found matches the slope difference test away from the boundary.
func TestProperty_FoundMatchesSlopeDifference(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("found iff |high slope - low slope| > threshold", prop.ForAll(
		func(hs, ls float64) bool {
			diff := math.Abs(hs - ls)
			if math.Abs(diff-DefaultConvergenceThreshold) < 1e-6 {
				return true
			}
			v := New(DefaultConvergenceThreshold).Detect(mkWedge(60, 500, hs, 400, ls, 450))
			return v.Found == (diff > DefaultConvergenceThreshold)
		},
		gen.Float64Range(-0.01, 0.01),
		gen.Float64Range(-0.01, 0.01),
	))

	properties.TestingRun(t)
}

// Property: direction is up iff close > projected high, down iff close < projected low.
func TestProperty_BreakoutDirection(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("direction follows the strict inequalities", prop.ForAll(
		func(lastClose float64) bool {
			v := New(DefaultConvergenceThreshold).Detect(mkWedge(40, 120, -0.2, 80, 0.2, lastClose))
			switch {
			case lastClose > v.ExpectedHigh:
				return v.Breakout && v.Direction == model.DirectionUp
			case lastClose < v.ExpectedLow:
				return v.Breakout && v.Direction == model.DirectionDown
			default:
				return !v.Breakout && v.Direction == model.DirectionNone
			}
		},
		gen.Float64Range(50, 150),
	))

	properties.TestingRun(t)
}

// Property: Detect is a pure function of its window.
func TestProperty_Deterministic(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("same window, same verdict", prop.ForAll(
		func(hs, ls, lastClose float64) bool {
			d := New(DefaultConvergenceThreshold)
			bars := mkWedge(80, 300, hs, 200, ls, lastClose)
			return d.Detect(bars) == d.Detect(bars)
		},
		gen.Float64Range(-1, 1),
		gen.Float64Range(-1, 1),
		gen.Float64Range(100, 400),
	))

	properties.TestingRun(t)
}
