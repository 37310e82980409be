package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"WedgeSentinel/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWithWriter_ConsoleLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(config.LogConfig{Level: "warn", Console: true}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("symbol", "BTCUSDT").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "symbol=BTCUSDT") {
		t.Errorf("expected warn line with symbol field, got %q", out)
	}
}

func TestNewWithWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	log := NewWithWriter(config.LogConfig{Level: "info", File: true, FilePath: path, MaxSizeMB: 1}, &bytes.Buffer{})
	log.Info().Msg("to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Errorf("expected JSON line in file, got %q", data)
	}
}
