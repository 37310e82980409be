package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"WedgeSentinel/internal/cache"
	"WedgeSentinel/internal/chart"
	"WedgeSentinel/internal/collector"
	"WedgeSentinel/internal/config"
	"WedgeSentinel/internal/detector"
	"WedgeSentinel/internal/metrics"
	"WedgeSentinel/internal/notifier"
	"WedgeSentinel/internal/recorder"
	"WedgeSentinel/internal/scheduler"
	"WedgeSentinel/internal/state"
)

// app holds the wired components of one process.
type app struct {
	cfg *config.Config
	log zerolog.Logger

	fetcher    collector.Fetcher
	redis      *cache.RedisCache
	recorder   recorder.Recorder
	state      *state.Manager
	telegram   *notifier.TelegramNotifier
	health     *metrics.HealthStatus
	metricsSrv *metrics.Server
	sched      *scheduler.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	a.fetcher = fetcher

	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.NewRedis(cache.Config{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis cache unavailable, fetching without cache")
		} else {
			a.redis = rc
			ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
			a.fetcher = collector.NewCachedFetcher(fetcher, rc, ttl, log)
			log.Info().Str("addr", cfg.Cache.RedisAddr).Dur("ttl", ttl).Msg("redis cache enabled")
		}
	}

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = sr
		}
	}

	st, err := state.NewManager(cfg.State.File)
	if err != nil {
		a.recorder.Close()
		return nil, fmt.Errorf("init state: %w", err)
	}
	a.state = st

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	a.health = metrics.NewHealthStatus(cfg.Scan.PollInterval())
	if a.redis != nil {
		a.health.SetRedisConnected(true)
	}
	if a.sqlDB() != nil {
		a.health.SetSQLiteOK(true)
	}
	if cfg.Metrics.Addr != "" {
		a.metricsSrv = metrics.NewServer(cfg.Metrics.Addr, a.health, reg, log)
	}

	a.sched = scheduler.New(ctx, scheduler.Deps{
		Scan:      cfg.Scan,
		Collector: collector.NewCollector(a.fetcher, cfg.Scan.WindowLength, cfg.Scan.FetchWorkers),
		Detector:  detector.New(cfg.Scan.ConvergenceThreshold),
		Renderer:  chart.NewRenderer(cfg.Output.ChartWidth, cfg.Output.ChartHeight),
		Notifier:  a.newNotifier(),
		Recorder:  a.recorder,
		Metrics:   m,
		Health:    a.health,
		State:     a.state,
		Log:       log,
	})
	return a, nil
}

func newFetcher(cfg *config.Config) (collector.Fetcher, error) {
	ds := cfg.DataSource
	switch ds.Kind {
	case config.SourceBinance:
		return collector.NewBinanceFetcher(ds.BaseURL, cfg.Proxy), nil
	case config.SourceREST:
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Proxy), nil
	case config.SourceYahoo:
		f := collector.NewYahooFetcher(cfg.Proxy)
		if ds.BaseURL != "" {
			f.BaseURL = ds.BaseURL
		}
		return f, nil
	case config.SourceCSV:
		return collector.NewCSVFetcher(ds.CSVDir), nil
	case config.SourceMock:
		return &collector.MockFetcher{}, nil
	}
	return nil, fmt.Errorf("%w: unknown data_source.kind %q", config.ErrInvalidConfig, ds.Kind)
}

// newNotifier fans out to every configured channel, falling back to the log.
func (a *app) newNotifier() notifier.Notifier {
	var children []notifier.Notifier
	if a.cfg.Telegram.BotToken != "" {
		a.telegram = notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy, a.log)
		children = append(children, a.telegram)
	}
	if a.cfg.Webhook.URL != "" {
		children = append(children, notifier.NewWebhookNotifier(a.cfg.Webhook.URL))
	}
	if a.cfg.Output.ChartDir != "" {
		children = append(children, notifier.NewFileNotifier(a.cfg.Output.ChartDir))
	}
	if len(children) == 0 {
		a.log.Warn().Msg("no notifier configured, alerts go to the log")
		return notifier.NewLogNotifier(a.log)
	}
	return notifier.NewMultiNotifier(children...)
}

func (a *app) redisClient() *goredis.Client {
	if a.redis == nil {
		return nil
	}
	return a.redis.Client()
}

func (a *app) sqlDB() *sql.DB {
	if sr, ok := a.recorder.(*recorder.SQLiteRecorder); ok {
		return sr.DB()
	}
	return nil
}

// Close releases resources in reverse order of creation.
func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close recorder")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
}
