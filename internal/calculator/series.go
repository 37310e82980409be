package calculator

import "WedgeSentinel/internal/model"

// ExtractCloses returns the close prices of bars in order.
func ExtractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// ExtractHighs returns the high prices of bars in order.
func ExtractHighs(bars []model.OHLCV) []float64 {
	highs := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
	}
	return highs
}

// ExtractLows returns the low prices of bars in order.
func ExtractLows(bars []model.OHLCV) []float64 {
	lows := make([]float64, len(bars))
	for i, b := range bars {
		lows[i] = b.Low
	}
	return lows
}
