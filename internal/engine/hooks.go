package engine

import (
	"time"

	"swell-alerts/internal/window"
)

// MatchEvent fires when a qualifying window is detected for a rule,
// before deduplication.
type MatchEvent struct {
	ChatID int64
	RuleID string
	SpotID string
	Span   window.Span
	Hours  int
	At     time.Time
}

// SentEvent fires after a notification was handed to the sink successfully.
type SentEvent struct {
	ChatID int64
	RuleID string
	SpotID string
	Span   window.Span
	Hours  int
	At     time.Time
}

// Hook receives instrumentation events. Implementations must not block the
// run; failures are theirs to swallow.
type Hook interface {
	RecordMatch(e MatchEvent)
	RecordSent(e SentEvent)
}

// Hooks fans events out to multiple hooks.
type Hooks []Hook

func (h Hooks) RecordMatch(e MatchEvent) {
	for _, hook := range h {
		hook.RecordMatch(e)
	}
}

func (h Hooks) RecordSent(e SentEvent) {
	for _, hook := range h {
		hook.RecordSent(e)
	}
}
