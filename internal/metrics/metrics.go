// Package metrics exposes Prometheus metrics and a health endpoint for the
// scan loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"WedgeSentinel/internal/model"
)

// Metrics holds all Prometheus metrics for the scanner. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CyclesTotal    prometheus.Counter
	SkippedTicks   prometheus.Counter
	UnitsTotal     prometheus.Counter
	FailuresTotal  *prometheus.CounterVec // labels: stage
	PatternsTotal  prometheus.Counter
	BreakoutsTotal *prometheus.CounterVec // labels: direction
	AlertsTotal    prometheus.Counter

	FetchDur  prometheus.Histogram
	CycleDur  prometheus.Histogram
	LastCycle prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wedge_cycles_total",
			Help: "Scan cycles completed",
		}),
		SkippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wedge_skipped_ticks_total",
			Help: "Scheduler ticks skipped because a scan was still running",
		}),
		UnitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wedge_units_total",
			Help: "Symbol/timeframe units processed",
		}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wedge_unit_failures_total",
			Help: "Units that failed, by stage",
		}, []string{"stage"}),
		PatternsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wedge_patterns_total",
			Help: "Windows classified as converging",
		}),
		BreakoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wedge_breakouts_total",
			Help: "Breakouts out of a found wedge, by direction",
		}, []string{"direction"}),
		AlertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wedge_alerts_total",
			Help: "Alerts delivered",
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wedge_fetch_duration_seconds",
			Help:    "Latency of one window fetch",
			Buckets: prometheus.DefBuckets,
		}),
		CycleDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wedge_cycle_duration_seconds",
			Help:    "Duration of a full scan cycle",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wedge_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle started",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.SkippedTicks,
		m.UnitsTotal,
		m.FailuresTotal,
		m.PatternsTotal,
		m.BreakoutsTotal,
		m.AlertsTotal,
		m.FetchDur,
		m.CycleDur,
		m.LastCycle,
	)
	return m
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDur.Observe(d.Seconds())
}

func (m *Metrics) ObserveFailure(stage string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveVerdict counts a classified window.
func (m *Metrics) ObserveVerdict(v model.PatternVerdict) {
	if m == nil {
		return
	}
	m.UnitsTotal.Inc()
	if !v.Found {
		return
	}
	m.PatternsTotal.Inc()
	if v.Breakout {
		m.BreakoutsTotal.WithLabelValues(string(v.Direction)).Inc()
	}
}

func (m *Metrics) ObserveAlert() {
	if m == nil {
		return
	}
	m.AlertsTotal.Inc()
}

func (m *Metrics) ObserveSkippedTick() {
	if m == nil {
		return
	}
	m.SkippedTicks.Inc()
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(rep *model.ScanReport) {
	if m == nil || rep == nil {
		return
	}
	m.CyclesTotal.Inc()
	m.CycleDur.Observe(rep.Duration.Seconds())
	m.LastCycle.Set(float64(rep.StartedAt.Unix()))
}
