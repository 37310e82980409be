package calculator

import "WedgeSentinel/internal/model"

// FitLine fits ys against their index 0..n-1 by ordinary least squares.
//
// slope = cov(x, y) / var(x), intercept = mean(y) - slope*mean(x).
// With fewer than two points var(x) is zero and the slope is NaN.
func FitLine(ys []float64) model.TrendLine {
	n := float64(len(ys))
	meanX := (n - 1) / 2

	var meanY float64
	for _, y := range ys {
		meanY += y
	}
	meanY /= n

	var cov, variance float64
	for i, y := range ys {
		dx := float64(i) - meanX
		cov += dx * (y - meanY)
		variance += dx * dx
	}

	slope := cov / variance
	return model.TrendLine{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
	}
}
