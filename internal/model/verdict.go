package model

// Direction is the side on which price left the wedge.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// TrendLine is value = Slope*index + Intercept over the window index.
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// At evaluates the line at the given bar index.
func (l TrendLine) At(index float64) float64 {
	return l.Slope*index + l.Intercept
}

// PatternVerdict is the output of the wedge detector for one window.
type PatternVerdict struct {
	Found     bool      `json:"found"`
	Breakout  bool      `json:"breakout"`
	Direction Direction `json:"direction,omitempty"`
	HighLine  TrendLine `json:"high_line"`
	LowLine   TrendLine `json:"low_line"`

	// Values at the last bar, kept so alerts can quote them.
	LastClose    float64 `json:"last_close"`
	ExpectedHigh float64 `json:"expected_high"`
	ExpectedLow  float64 `json:"expected_low"`
}

// Actionable reports whether the verdict should produce an alert.
func (v PatternVerdict) Actionable() bool {
	return v.Found && v.Breakout
}
