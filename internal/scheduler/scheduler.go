package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"WedgeSentinel/internal/collector"
	"WedgeSentinel/internal/config"
	"WedgeSentinel/internal/detector"
	"WedgeSentinel/internal/metrics"
	"WedgeSentinel/internal/model"
	"WedgeSentinel/internal/notifier"
	"WedgeSentinel/internal/recorder"
)

// Renderer draws the chart attached to an alert.
type Renderer interface {
	Render(title string, bars []model.OHLCV, verdict *model.PatternVerdict) ([]byte, error)
}

// ScanMarker persists the time of the last completed scan.
type ScanMarker interface {
	MarkScan(at time.Time) error
}

// Deps are the collaborators of a Scheduler. Renderer, Metrics, Health and
// State are optional.
type Deps struct {
	Scan      config.Scan
	Collector *collector.Collector
	Detector  *detector.Detector
	Renderer  Renderer
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	State     ScanMarker
	Log       zerolog.Logger
}

// Scheduler runs scan cycles on a cron schedule. Cycles never overlap.
type Scheduler struct {
	Cron *cron.Cron

	deps Deps
	log  zerolog.Logger
	ctx  context.Context

	running sync.Mutex // held for the duration of a cycle

	mu   sync.RWMutex
	last *model.ScanReport
}

// New creates a Scheduler. ctx bounds every cycle started by cron ticks.
func New(ctx context.Context, deps Deps) *Scheduler {
	if deps.Recorder == nil {
		deps.Recorder = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		deps: deps,
		log:  deps.Log,
		ctx:  ctx,
	}
}

// Register adds the scan task under the given cron spec, e.g. "@every 900s".
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register scan task %q: %w", spec, err)
	}
	s.log.Info().Str("spec", spec).Msg("scan task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops scheduling new cycles and waits for a running one to finish,
// or for ctx to expire. Cycles started by RunOnce or /scan are waited for
// too. Once Stop returns nil no further cycle can start.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.Cron.Stop()
	idle := make(chan struct{})
	go func() {
		<-done.Done()
		s.running.Lock() // held for good
		close(idle)
	}()
	select {
	case <-idle:
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) tick() {
	if !s.running.TryLock() {
		s.log.Warn().Msg("previous scan still running, skipping tick")
		s.deps.Metrics.ObserveSkippedTick()
		return
	}
	defer s.running.Unlock()
	s.runCycle(s.ctx)
}

// RunOnce executes exactly one cycle, waiting for a running one to finish
// first.
func (s *Scheduler) RunOnce(ctx context.Context) *model.ScanReport {
	s.running.Lock()
	defer s.running.Unlock()
	return s.runCycle(ctx)
}

// LastReport returns the report of the most recent cycle run by this
// process, or nil.
func (s *Scheduler) LastReport() *model.ScanReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Units returns the work of one cycle: every symbol crossed with every
// timeframe, timeframes in sorted label order.
func (s *Scheduler) Units() []model.Unit {
	labels := s.deps.Scan.Labels()
	units := make([]model.Unit, 0, len(s.deps.Scan.Symbols)*len(labels))
	for _, sym := range s.deps.Scan.Symbols {
		for _, label := range labels {
			units = append(units, model.Unit{
				Symbol:   sym,
				Label:    label,
				Interval: s.deps.Scan.Timeframes[label],
			})
		}
	}
	return units
}

func (s *Scheduler) runCycle(ctx context.Context) *model.ScanReport {
	rep := &model.ScanReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := s.log.With().Str("cycle", rep.CycleID).Logger()

	units := s.Units()
	rep.Units = len(units)
	log.Info().Int("units", rep.Units).Msg("scan started")

	results := s.deps.Collector.CollectAll(ctx, units)
	for _, res := range results {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("scan cancelled")
			break
		}
		s.processUnit(ctx, rep, res, log)
	}

	rep.Duration = time.Since(rep.StartedAt)
	s.finish(rep, log)
	return rep
}

func (s *Scheduler) processUnit(ctx context.Context, rep *model.ScanReport, res collector.Result, log zerolog.Logger) {
	ulog := log.With().Str("symbol", res.Unit.Symbol).Str("interval", res.Unit.Interval).Logger()

	if res.Err != nil {
		s.fail(rep, res.Unit, model.StageFetch, res.Err, ulog)
		return
	}
	s.deps.Metrics.ObserveFetch(res.Duration)

	if err := detector.CheckWindow(res.Bars, s.deps.Scan.MinBars); err != nil {
		s.fail(rep, res.Unit, model.StageGuard, err, ulog)
		return
	}

	v := s.deps.Detector.Detect(res.Bars)
	s.deps.Metrics.ObserveVerdict(v)
	if v.Found {
		rep.Patterns++
	}
	if !v.Actionable() {
		ulog.Debug().Bool("found", v.Found).Bool("breakout", v.Breakout).Msg("no alert")
		return
	}
	rep.Breakouts++

	det := &model.Detection{Unit: res.Unit, Bars: res.Bars, Verdict: v, FetchedAt: res.FetchedAt}
	ulog.Info().
		Str("direction", string(v.Direction)).
		Float64("close", v.LastClose).
		Float64("expected_high", v.ExpectedHigh).
		Float64("expected_low", v.ExpectedLow).
		Msg("wedge breakout")

	var chart []byte
	if s.deps.Renderer != nil {
		png, err := s.deps.Renderer.Render(res.Unit.String(), res.Bars, &det.Verdict)
		if err != nil {
			// The alert still goes out, without the chart.
			s.fail(rep, res.Unit, model.StageRender, err, ulog)
		} else {
			chart = png
		}
	}

	if err := s.deps.Notifier.Notify(ctx, notifier.NewBreakoutAlert(det, chart)); err != nil {
		s.fail(rep, res.Unit, model.StageNotify, err, ulog)
		return
	}
	rep.Alerts++
	s.deps.Metrics.ObserveAlert()
	ulog.Info().Msg("alert sent")
}

func (s *Scheduler) fail(rep *model.ScanReport, u model.Unit, stage string, err error, log zerolog.Logger) {
	rep.Errors = append(rep.Errors, &model.UnitError{Unit: u, Stage: stage, Err: err})
	rep.Failures = countUnits(rep.Errors)
	s.deps.Metrics.ObserveFailure(stage)
	log.Error().Err(err).Str("stage", stage).Msg("unit failed")
}

// countUnits counts distinct units among errs; a unit can fail at render
// and again at notify.
func countUnits(errs []*model.UnitError) int {
	seen := make(map[model.Unit]struct{}, len(errs))
	for _, e := range errs {
		seen[e.Unit] = struct{}{}
	}
	return len(seen)
}

func (s *Scheduler) finish(rep *model.ScanReport, log zerolog.Logger) {
	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()

	if err := s.deps.Recorder.RecordScan(rep); err != nil {
		log.Error().Err(err).Msg("record scan")
	}
	if s.deps.State != nil {
		if err := s.deps.State.MarkScan(rep.StartedAt); err != nil {
			log.Warn().Err(err).Msg("save state")
		}
	}
	s.deps.Metrics.ObserveCycle(rep)
	if s.deps.Health != nil {
		s.deps.Health.SetCycle(rep.CycleID, rep.StartedAt, rep.Units, rep.Failures)
	}

	log.Info().
		Int("units", rep.Units).
		Int("failures", rep.Failures).
		Int("patterns", rep.Patterns).
		Int("breakouts", rep.Breakouts).
		Int("alerts", rep.Alerts).
		Dur("duration", rep.Duration).
		Msg("scan finished")
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch normalizeCommand(command) {
	case "/scan":
		if !s.running.TryLock() {
			return "⏳ A scan is already running, try again shortly."
		}
		defer s.running.Unlock()
		return notifier.FormatScanReport(s.runCycle(ctx))
	case "/status":
		rep := s.LastReport()
		if rep == nil {
			if stored, err := s.deps.Recorder.LatestScan(); err == nil {
				rep = stored
			}
		}
		return notifier.FormatScanReport(rep)
	case "/symbols":
		return notifier.FormatSymbols(s.deps.Scan.Symbols, s.deps.Scan.Labels())
	default:
		return notifier.FormatHelp()
	}
}

// normalizeCommand turns "/Scan@WedgeBot now" into "/scan".
func normalizeCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}
