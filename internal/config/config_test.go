package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "DATA_SOURCE", "DATA_BASE_URL", "DATA_API_KEY",
		"HTTPS_PROXY", "SQLITE_PATH", "REDIS_ADDR", "METRICS_ADDR", "LOG_LEVEL", "SYMBOLS",
		"POLL_INTERVAL_SECONDS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSymbols, cfg.Scan.Symbols)
	assert.Equal(t, map[string]string{"1h": "1h", "4h": "4h"}, cfg.Scan.Timeframes)
	assert.Equal(t, 100, cfg.Scan.WindowLength)
	assert.Equal(t, 0.001, cfg.Scan.ConvergenceThreshold)
	assert.Equal(t, 900*time.Second, cfg.Scan.PollInterval())
	assert.Equal(t, 20, cfg.Scan.MinBars)
	assert.Equal(t, 1, cfg.Scan.FetchWorkers)
	assert.Equal(t, SourceBinance, cfg.DataSource.Kind)
	assert.Equal(t, "@every 900s", cfg.ScheduleSpec())
	assert.True(t, cfg.Log.Console)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
scan:
  symbols: [BTCUSDT, ETHUSDT]
  timeframes:
    "15m": "15m"
  window_length: 50
  convergence_threshold: 0.01
  poll_interval_seconds: 60
  fetch_workers: 4
data_source:
  kind: rest
  base_url: https://fapi.example.com/fapi/v1
schedule:
  cron: "0 */5 * * * *"
telegram:
  bot_token: file-token
  chat_id: "@file"
`)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("SYMBOLS", "SOLUSDT, ADAUSDT ,")
	t.Setenv("POLL_INTERVAL_SECONDS", "120")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"SOLUSDT", "ADAUSDT"}, cfg.Scan.Symbols)
	assert.Equal(t, []string{"15m"}, cfg.Scan.Labels())
	assert.Equal(t, 50, cfg.Scan.WindowLength)
	assert.Equal(t, 0.01, cfg.Scan.ConvergenceThreshold)
	assert.Equal(t, 120, cfg.Scan.PollIntervalSeconds)
	assert.Equal(t, 4, cfg.Scan.FetchWorkers)
	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "@file", cfg.Telegram.ChatID)
	assert.Equal(t, "0 */5 * * * *", cfg.ScheduleSpec())
	require.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scan: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_ShippedConfigIsValid(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, SourceBinance, cfg.DataSource.Kind)
	assert.Empty(t, cfg.Telegram.BotToken)
	assert.False(t, cfg.Telegram.Polling)
	assert.Len(t, cfg.Scan.Symbols, 6)
}

func TestScan_LabelsSorted(t *testing.T) {
	s := Scan{Timeframes: map[string]string{"4h": "4h", "1d": "1d", "1h": "1h"}}
	assert.Equal(t, []string{"1d", "1h", "4h"}, s.Labels())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no symbols", func(c *Config) { c.Scan.Symbols = nil }},
		{"window of one", func(c *Config) { c.Scan.WindowLength = 1 }},
		{"min bars above window", func(c *Config) { c.Scan.MinBars = 200 }},
		{"min bars of one", func(c *Config) { c.Scan.MinBars = 1 }},
		{"zero threshold", func(c *Config) { c.Scan.ConvergenceThreshold = 0 }},
		{"negative interval", func(c *Config) { c.Scan.PollIntervalSeconds = -1 }},
		{"no workers", func(c *Config) { c.Scan.FetchWorkers = 0 }},
		{"empty interval", func(c *Config) { c.Scan.Timeframes = map[string]string{"1h": ""} }},
		{"unknown source", func(c *Config) { c.DataSource.Kind = "ftp" }},
		{"rest without url", func(c *Config) { c.DataSource.Kind = SourceREST }},
		{"token without chat", func(c *Config) { c.Telegram.BotToken = "x" }},
		{"polling without token", func(c *Config) { c.Telegram.Polling = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "error %v should wrap ErrInvalidConfig", err)
		})
	}
}
