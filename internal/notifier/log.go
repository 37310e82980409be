package notifier

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes alerts to the log, for dry runs.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, a Alert) error {
	l.log.Info().
		Str("title", a.Title).
		Int("image_bytes", len(a.Image)).
		Str("text", a.Text).
		Msg("alert")
	return nil
}
