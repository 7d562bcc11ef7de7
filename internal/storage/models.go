package storage

import "time"

// NotifiedWindow records the last window sent for one
// (subscriber, spot, rule-fingerprint) combination.
type NotifiedWindow struct {
	ChatID          int64
	SpotID          string
	RuleFingerprint string
	StartMs         int64
	EndMs           int64
	SentAt          time.Time
}

// NotificationRecord is one audit row per delivered notification.
type NotificationRecord struct {
	ID          int64
	ChatID      int64
	RuleID      string
	SpotID      string
	WindowStart time.Time
	WindowEnd   time.Time
	Hours       int
	CreatedAt   time.Time
}
