package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Unit is one (symbol, timeframe) piece of work within a scan cycle.
type Unit struct {
	Symbol   string
	Label    string // timeframe label as configured, e.g. "1h"
	Interval string // interval passed to the data source
}

func (u Unit) String() string {
	return u.Symbol + " [" + u.Interval + "]"
}

// Detection pairs a verdict with the window it was computed from.
type Detection struct {
	Unit      Unit
	Bars      []OHLCV
	Verdict   PatternVerdict
	FetchedAt time.Time
}
