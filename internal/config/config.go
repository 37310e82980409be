package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"WedgeSentinel/internal/detector"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Data source kinds.
const (
	SourceBinance = "binance"
	SourceREST    = "rest"
	SourceYahoo   = "yahoo"
	SourceCSV     = "csv"
	SourceMock    = "mock"
)

// DefaultSymbols is the watch list used when none is configured.
var DefaultSymbols = []string{
	"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "SOLUSDT", "DOGEUSDT",
	"ADAUSDT", "AVAXUSDT", "LTCUSDT", "LINKUSDT", "MATICUSDT", "DOTUSDT",
	"TRXUSDT", "ATOMUSDT", "NEARUSDT", "UNIUSDT", "XMRUSDT", "ETCUSDT",
	"IMXUSDT", "SUIUSDT", "APTUSDT", "FILUSDT", "INJUSDT", "GRTUSDT",
	"RNDRUSDT", "THETAUSDT", "AAVEUSDT", "OPUSDT", "ARBUSDT", "SEIUSDT",
}

// Scan holds the options consumed by the scheduler and the detector.
type Scan struct {
	Symbols              []string          `yaml:"symbols"`
	Timeframes           map[string]string `yaml:"timeframes"` // label -> data source interval
	WindowLength         int               `yaml:"window_length"`
	ConvergenceThreshold float64           `yaml:"convergence_threshold"`
	PollIntervalSeconds  int               `yaml:"poll_interval_seconds"`
	MinBars              int               `yaml:"min_bars"`
	FetchWorkers         int               `yaml:"fetch_workers"`
}

// PollInterval returns the poll interval as a duration.
func (s Scan) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// Labels returns the timeframe labels in sorted order.
func (s Scan) Labels() []string {
	labels := make([]string, 0, len(s.Timeframes))
	for l := range s.Timeframes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// LogConfig controls console and rotated file logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       bool   `yaml:"file"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Config holds all application configuration.
type Config struct {
	Scan       Scan `yaml:"scan"`
	DataSource struct {
		Kind    string `yaml:"kind"`
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		CSVDir  string `yaml:"csv_dir"`
	} `yaml:"data_source"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
		Polling  bool   `yaml:"polling"`
	} `yaml:"telegram"`
	Webhook struct {
		URL string `yaml:"url"`
	} `yaml:"webhook"`
	Output struct {
		ChartDir    string `yaml:"chart_dir"`
		ChartWidth  int    `yaml:"chart_width"`
		ChartHeight int    `yaml:"chart_height"`
	} `yaml:"output"`
	Schedule struct {
		Cron string `yaml:"cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Cache struct {
		RedisAddr     string `yaml:"redis_addr"`
		RedisPassword string `yaml:"redis_password"`
		RedisDB       int    `yaml:"redis_db"`
		TTLSeconds    int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log   LogConfig `yaml:"log"`
	State struct {
		File string `yaml:"file"`
	} `yaml:"state"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Log.Console = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_SOURCE"); v != "" {
		c.DataSource.Kind = v
	}
	if v := os.Getenv("DATA_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("DATA_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Scan.Symbols = splitList(v)
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scan.PollIntervalSeconds = n
		}
	}
}

func (c *Config) applyDefaults() {
	if len(c.Scan.Symbols) == 0 {
		c.Scan.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if len(c.Scan.Timeframes) == 0 {
		c.Scan.Timeframes = map[string]string{"1h": "1h", "4h": "4h"}
	}
	if c.Scan.WindowLength == 0 {
		c.Scan.WindowLength = 100
	}
	if c.Scan.ConvergenceThreshold == 0 {
		c.Scan.ConvergenceThreshold = detector.DefaultConvergenceThreshold
	}
	if c.Scan.PollIntervalSeconds == 0 {
		c.Scan.PollIntervalSeconds = 900
	}
	if c.Scan.MinBars == 0 {
		c.Scan.MinBars = 20
	}
	if c.Scan.FetchWorkers == 0 {
		c.Scan.FetchWorkers = 1
	}
	if c.DataSource.Kind == "" {
		c.DataSource.Kind = SourceBinance
	}
	if c.DataSource.CSVDir == "" {
		c.DataSource.CSVDir = "data/bars"
	}
	if c.Output.ChartWidth == 0 {
		c.Output.ChartWidth = 1000
	}
	if c.Output.ChartHeight == 0 {
		c.Output.ChartHeight = 600
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.FilePath == "" {
		c.Log.FilePath = "logs/wedge_sentinel.log"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 7
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.State.File == "" {
		c.State.File = "data/bot_state.json"
	}
}

// Validate checks that the configuration can drive a scan.
func (c *Config) Validate() error {
	if len(c.Scan.Symbols) == 0 {
		return fmt.Errorf("%w: scan.symbols is empty", ErrInvalidConfig)
	}
	for label, interval := range c.Scan.Timeframes {
		if label == "" || interval == "" {
			return fmt.Errorf("%w: scan.timeframes has an empty label or interval", ErrInvalidConfig)
		}
	}
	if c.Scan.WindowLength < detector.MinWindow {
		return fmt.Errorf("%w: scan.window_length must be at least %d", ErrInvalidConfig, detector.MinWindow)
	}
	if c.Scan.MinBars < detector.MinWindow || c.Scan.MinBars > c.Scan.WindowLength {
		return fmt.Errorf("%w: scan.min_bars must be between %d and window_length", ErrInvalidConfig, detector.MinWindow)
	}
	if c.Scan.ConvergenceThreshold <= 0 {
		return fmt.Errorf("%w: scan.convergence_threshold must be positive", ErrInvalidConfig)
	}
	if c.Scan.PollIntervalSeconds <= 0 {
		return fmt.Errorf("%w: scan.poll_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Scan.FetchWorkers < 1 {
		return fmt.Errorf("%w: scan.fetch_workers must be at least 1", ErrInvalidConfig)
	}
	switch c.DataSource.Kind {
	case SourceBinance, SourceYahoo, SourceCSV, SourceMock:
	case SourceREST:
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("%w: data_source.base_url is required for kind %q", ErrInvalidConfig, SourceREST)
		}
	default:
		return fmt.Errorf("%w: unknown data_source.kind %q", ErrInvalidConfig, c.DataSource.Kind)
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("%w: telegram.bot_token and telegram.chat_id must be set together", ErrInvalidConfig)
	}
	if c.Telegram.Polling && c.Telegram.BotToken == "" {
		return fmt.Errorf("%w: telegram.polling requires telegram.bot_token", ErrInvalidConfig)
	}
	return nil
}

// ScheduleSpec returns the cron spec for the scan task.
func (c *Config) ScheduleSpec() string {
	if c.Schedule.Cron != "" {
		return c.Schedule.Cron
	}
	return fmt.Sprintf("@every %ds", c.Scan.PollIntervalSeconds)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
