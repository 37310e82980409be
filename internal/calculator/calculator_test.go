package calculator

import (
	"math"
	"testing"
	"time"

	"WedgeSentinel/internal/model"
)

func mkBars(closes ...float64) []model.OHLCV {
	bars := make([]model.OHLCV, len(closes))
	t0 := time.Unix(0, 0).UTC()
	for i, c := range closes {
		bars[i] = model.OHLCV{Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func TestFitLine_ExactRecovery(t *testing.T) {
	tests := []struct {
		a, b float64
		n    int
	}{
		{0.5, 100, 10},
		{-0.5, 100, 10},
		{0, 42, 50},
		{1234.5, -3, 100},
		{-0.0001, 0.01, 2},
	}
	for _, tt := range tests {
		ys := make([]float64, tt.n)
		for i := range ys {
			ys[i] = tt.a*float64(i) + tt.b
		}
		line := FitLine(ys)
		if !closeEnough(line.Slope, tt.a) || !closeEnough(line.Intercept, tt.b) {
			t.Errorf("a=%v b=%v n=%d: got slope=%v intercept=%v", tt.a, tt.b, tt.n, line.Slope, line.Intercept)
		}
	}
}

func TestFitLine_Noisy(t *testing.T) {
	// alternating noise around y = 2x + 1 pulls the slope down to 1.6
	ys := []float64{1 + 1, 3 - 1, 5 + 1, 7 - 1}
	line := FitLine(ys)
	if math.Abs(line.Slope-1.6) > 1e-12 {
		t.Errorf("expected slope 1.6, got %v", line.Slope)
	}
	if math.Abs(line.At(1.5)-4) > 1e-12 {
		t.Errorf("line must pass through the centroid, got %v", line.At(1.5))
	}
}

func TestFitLine_SinglePointIsNaN(t *testing.T) {
	line := FitLine([]float64{5})
	if !math.IsNaN(line.Slope) {
		t.Errorf("expected NaN slope for one point, got %v", line.Slope)
	}
}

func TestCalculateRSI(t *testing.T) {
	rising := mkBars(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	rsi, err := CalculateRSI(rising, 14)
	if err != nil {
		t.Fatal(err)
	}
	if rsi != 100 {
		t.Errorf("expected 100 for a monotone rise, got %.2f", rsi)
	}

	short := mkBars(1, 2, 3)
	rsi, err = CalculateRSI(short, 14)
	if err != nil || rsi != 50 {
		t.Errorf("expected default 50 for short input, got %.2f (%v)", rsi, err)
	}

	if _, err := CalculateRSI(rising, 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestWindowRange(t *testing.T) {
	high, low, err := WindowRange(mkBars(10, 20, 5, 15))
	if err != nil {
		t.Fatal(err)
	}
	if high != 21 || low != 4 {
		t.Errorf("expected 21/4, got %v/%v", high, low)
	}
	if _, _, err := WindowRange(nil); err == nil {
		t.Error("expected error for empty window")
	}
}

func TestRangePosition(t *testing.T) {
	tests := []struct {
		price, high, low, want float64
	}{
		{15, 20, 10, 0.5},
		{25, 20, 10, 1},
		{5, 20, 10, 0},
		{10, 10, 10, 0.5},
	}
	for _, tt := range tests {
		got, err := RangePosition(tt.price, tt.high, tt.low)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("RangePosition(%v,%v,%v) = %v, want %v", tt.price, tt.high, tt.low, got, tt.want)
		}
	}
	if _, err := RangePosition(1, 1, 2); err == nil {
		t.Error("expected error when high < low")
	}
}

func closeEnough(got, want float64) bool {
	if want == 0 {
		return math.Abs(got) < 1e-9
	}
	return math.Abs(got-want) <= 1e-9*math.Abs(want)
}
