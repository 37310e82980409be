// Package detector fits support and resistance lines to a bar window and
// classifies wedge convergence and breakout.
package detector

import (
	"errors"
	"fmt"
	"math"

	"WedgeSentinel/internal/calculator"
	"WedgeSentinel/internal/model"
)

// DefaultConvergenceThreshold is the minimum absolute slope difference, in
// price units per bar, for the two lines to count as a wedge.
const DefaultConvergenceThreshold = 0.001

// MinWindow is the smallest window a line can be fitted to.
const MinWindow = 2

// ErrWindowTooShort is returned by CheckWindow.
var ErrWindowTooShort = errors.New("window too short")

// Detector classifies bar windows. It holds no mutable state.
type Detector struct {
	threshold float64
}

// New returns a Detector using the given convergence threshold.
// A non-positive threshold falls back to DefaultConvergenceThreshold.
func New(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultConvergenceThreshold
	}
	return &Detector{threshold: threshold}
}

// Threshold returns the convergence threshold in use.
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect fits the high and low lines over the window and classifies it.
//
// The result for windows shorter than MinWindow is unspecified; callers
// should run CheckWindow first.
func (d *Detector) Detect(window []model.OHLCV) model.PatternVerdict {
	highLine := calculator.FitLine(calculator.ExtractHighs(window))
	lowLine := calculator.FitLine(calculator.ExtractLows(window))

	last := float64(len(window) - 1)
	v := model.PatternVerdict{
		Found:        math.Abs(highLine.Slope-lowLine.Slope) > d.threshold,
		HighLine:     highLine,
		LowLine:      lowLine,
		ExpectedHigh: highLine.At(last),
		ExpectedLow:  lowLine.At(last),
	}
	if len(window) == 0 {
		return v
	}

	v.LastClose = window[len(window)-1].Close
	switch {
	case v.LastClose > v.ExpectedHigh:
		v.Breakout = true
		v.Direction = model.DirectionUp
	case v.LastClose < v.ExpectedLow:
		v.Breakout = true
		v.Direction = model.DirectionDown
	}
	return v
}

// CheckWindow rejects windows that are too short to classify. minBars below
// MinWindow is raised to MinWindow.
func CheckWindow(window []model.OHLCV, minBars int) error {
	if minBars < MinWindow {
		minBars = MinWindow
	}
	if len(window) < minBars {
		return fmt.Errorf("%w: have %d bars, need %d", ErrWindowTooShort, len(window), minBars)
	}
	return nil
}
