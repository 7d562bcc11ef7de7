package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: swell-alerts\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scheduler.TargetMinute)
	assert.Equal(t, "Europe/Madrid", cfg.Scheduler.Timezone)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.ScanHorizon)
	assert.Equal(t, time.Second, cfg.Scheduler.MinDelay)

	assert.Equal(t, 2, cfg.Evaluation.MinConsecutiveHours)
	assert.Equal(t, 3*time.Hour, cfg.Evaluation.TideWindow)
	assert.Equal(t, 7, cfg.Daylight.StartHour)
	assert.Equal(t, 21, cfg.Daylight.EndHour)

	assert.Equal(t, "rules.json", cfg.Rules.Path)
	assert.False(t, cfg.Alerting.Telegram.Enabled)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Forecast.RequestTimeout)
}

func TestLoadOverridesFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scheduler:
  target_minute: 25
  timezone: Europe/Lisbon
evaluation:
  min_consecutive_hours: 3
  tide_window: 2h30m
events:
  enabled: true
  brokers: [localhost:9092]
  topic: surf.events
`))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Scheduler.TargetMinute)
	assert.Equal(t, "Europe/Lisbon", cfg.Scheduler.Timezone)
	assert.Equal(t, 3, cfg.Evaluation.MinConsecutiveHours)
	assert.Equal(t, 2*time.Hour+30*time.Minute, cfg.Evaluation.TideWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "surf.events", cfg.Events.Topic)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"minute out of range", "scheduler:\n  target_minute: 75\n"},
		{"zero minimum hours", "evaluation:\n  min_consecutive_hours: 0\n"},
		{"inverted daylight window", "daylight:\n  start_hour: 20\n  end_hour: 8\n"},
		{"telegram without token", "alerting:\n  telegram:\n    enabled: true\n"},
		{"events without brokers", "events:\n  enabled: true\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}
