package detector

import (
	"errors"
	"testing"
	"time"

	"WedgeSentinel/internal/model"
)

// mkWedge builds n bars with high = hb + hs*i and low = lb + ls*i. The last
// bar closes at lastClose; the others close at the midpoint.
func mkWedge(n int, hb, hs, lb, ls, lastClose float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	t0 := time.Unix(0, 0).UTC()
	for i := 0; i < n; i++ {
		h := hb + hs*float64(i)
		l := lb + ls*float64(i)
		mid := (h + l) / 2
		bars[i] = model.OHLCV{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  mid,
			High:  h,
			Low:   l,
			Close: mid,
		}
	}
	bars[n-1].Close = lastClose
	return bars
}

func TestDetect_ConvergingBreakouts(t *testing.T) {
	d := New(DefaultConvergenceThreshold)
	tests := []struct {
		name      string
		close     float64
		breakout  bool
		direction model.Direction
	}{
		{"close above resistance", 96, true, model.DirectionUp},
		{"close below support", 54, true, model.DirectionDown},
		{"close inside wedge", 75, false, model.DirectionNone},
		{"close on resistance", 95.5, false, model.DirectionNone},
		{"close on support", 54.5, false, model.DirectionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := d.Detect(mkWedge(10, 100, -0.5, 50, 0.5, tt.close))
			if !v.Found {
				t.Fatal("expected converging lines to be found")
			}
			if v.Breakout != tt.breakout {
				t.Errorf("breakout: got %v, want %v", v.Breakout, tt.breakout)
			}
			if v.Direction != tt.direction {
				t.Errorf("direction: got %q, want %q", v.Direction, tt.direction)
			}
			if v.ExpectedHigh != 95.5 || v.ExpectedLow != 54.5 {
				t.Errorf("expected projections 95.5/54.5, got %v/%v", v.ExpectedHigh, v.ExpectedLow)
			}
			if v.LastClose != tt.close {
				t.Errorf("last close: got %v, want %v", v.LastClose, tt.close)
			}
		})
	}
}

func TestDetect_LineParameters(t *testing.T) {
	v := New(0).Detect(mkWedge(10, 100, -0.5, 50, 0.5, 96))
	if v.HighLine != (model.TrendLine{Slope: -0.5, Intercept: 100}) {
		t.Errorf("unexpected high line %+v", v.HighLine)
	}
	if v.LowLine != (model.TrendLine{Slope: 0.5, Intercept: 50}) {
		t.Errorf("unexpected low line %+v", v.LowLine)
	}
}

func TestDetect_FlatParallelNeverFound(t *testing.T) {
	d := New(DefaultConvergenceThreshold)
	for _, c := range []float64{50, 100, 150} {
		v := d.Detect(mkWedge(20, 100, 0, 100, 0, c))
		if v.Found {
			t.Errorf("close %v: flat identical lines must not be found", c)
		}
		if v.HighLine.Slope != 0 || v.LowLine.Slope != 0 {
			t.Errorf("close %v: expected zero slopes, got %v/%v", c, v.HighLine.Slope, v.LowLine.Slope)
		}
	}

	// breakout is still computed structurally
	v := d.Detect(mkWedge(20, 100, 0, 100, 0, 150))
	if !v.Breakout || v.Direction != model.DirectionUp || v.Actionable() {
		t.Errorf("expected structural breakout without action, got %+v", v)
	}
}

func TestDetect_ParallelChannel(t *testing.T) {
	v := New(DefaultConvergenceThreshold).Detect(mkWedge(50, 110, 0.3, 90, 0.3, 100))
	if v.Found {
		t.Errorf("parallel channel must not be found, slopes %v/%v", v.HighLine.Slope, v.LowLine.Slope)
	}
}

func TestDetect_Threshold(t *testing.T) {
	// slope difference of 0.01
	bars := mkWedge(30, 100, -0.005, 50, 0.005, 75)
	if v := New(0.001).Detect(bars); !v.Found {
		t.Error("expected found with threshold 0.001")
	}
	if v := New(0.05).Detect(bars); v.Found {
		t.Error("expected not found with threshold 0.05")
	}
}

func TestDetect_DivergingCountsAsFound(t *testing.T) {
	v := New(DefaultConvergenceThreshold).Detect(mkWedge(30, 100, 0.5, 50, -0.5, 75))
	if !v.Found {
		t.Error("widening lines also exceed the slope difference threshold")
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := New(DefaultConvergenceThreshold)
	bars := mkWedge(100, 200, -0.37, 120, 0.21, 181)
	first := d.Detect(bars)
	for i := 0; i < 5; i++ {
		if got := d.Detect(bars); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestCheckWindow(t *testing.T) {
	one := mkWedge(1, 100, 0, 90, 0, 95)
	if err := CheckWindow(one, 0); !errors.Is(err, ErrWindowTooShort) {
		t.Errorf("window of 1 must be rejected, got %v", err)
	}
	if err := CheckWindow(nil, 20); !errors.Is(err, ErrWindowTooShort) {
		t.Errorf("empty window must be rejected, got %v", err)
	}
	if err := CheckWindow(mkWedge(19, 100, 0, 90, 0, 95), 20); !errors.Is(err, ErrWindowTooShort) {
		t.Errorf("19 bars with min 20 must be rejected, got %v", err)
	}
	if err := CheckWindow(mkWedge(2, 100, 0, 90, 0, 95), 0); err != nil {
		t.Errorf("two bars satisfy the minimum, got %v", err)
	}
	if err := CheckWindow(mkWedge(100, 100, 0, 90, 0, 95), 20); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_DefaultThreshold(t *testing.T) {
	if got := New(-1).Threshold(); got != DefaultConvergenceThreshold {
		t.Errorf("expected default threshold, got %v", got)
	}
	if got := New(0.5).Threshold(); got != 0.5 {
		t.Errorf("expected 0.5, got %v", got)
	}
}
