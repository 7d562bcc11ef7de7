package alerting

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log instead of a chat. It stands in
// when no Telegram token is configured, so the engine can run dry.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-only notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	n.logger.Info().
		Int64("chat_id", note.ChatID).
		Str("rule", note.RuleID).
		Str("spot", note.SpotName).
		Time("window_start", note.WindowStart).
		Time("window_end", note.WindowEnd).
		Int("hours", note.Hours).
		Msg("notification (dry run)")
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
