package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swell-alerts/internal/alerting"
	"swell-alerts/internal/daylight"
	"swell-alerts/internal/forecast"
	"swell-alerts/internal/rules"
	"swell-alerts/internal/storage"
	"swell-alerts/internal/tide"
)

type fakeFetcher struct {
	calls  int
	series map[string][]forecast.Sample
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, spotID string, _, _ float64) ([]forecast.Sample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.series[spotID], nil
}

type fakeTides struct {
	events []tide.Event
	err    error
}

func (f *fakeTides) Events(_ context.Context, _ string, _ time.Time) ([]tide.Event, error) {
	return f.events, f.err
}

type fakeNotifier struct {
	notes []alerting.Notification
	err   error
}

func (f *fakeNotifier) Notify(_ context.Context, n alerting.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.notes = append(f.notes, n)
	return nil
}

type captureHook struct {
	matches []MatchEvent
	sents   []SentEvent
}

func (c *captureHook) RecordMatch(e MatchEvent) { c.matches = append(c.matches, e) }
func (c *captureHook) RecordSent(e SentEvent)   { c.sents = append(c.sents, e) }

func sampleAt(hour int, height, period float64) forecast.Sample {
	return forecast.Sample{
		Time:      time.Date(2026, 8, 21, hour, 0, 0, 0, time.UTC),
		SpotID:    "somo",
		WindSpeed: 6,
		WindAngle: 180,
		Energy:    height * height * period,
		Swells:    []forecast.Swell{{Angle: 310, Height: height, Period: period}},
	}
}

func testRule(id string) rules.AlertRule {
	return rules.AlertRule{
		ChatID:  42,
		ID:      id,
		Name:    "dawn patrol",
		Spot:    rules.Spot{ID: "somo", Name: "Somo", Latitude: 43.46, Longitude: -3.74, Timezone: "UTC"},
		Enabled: true,

		WaveRanges:     []rules.Range{{Min: 0.5, Max: 3}},
		PeriodRanges:   []rules.Range{{Min: 5, Max: 20}},
		Energy:         rules.Range{Min: 0, Max: 1000},
		TidePreference: rules.TideAny,
	}
}

type harness struct {
	fetcher  *fakeFetcher
	tides    *fakeTides
	notifier *fakeNotifier
	hook     *captureHook
	windows  *storage.MemoryStore
	runner   *Runner
}

func newHarness(t *testing.T, samples []forecast.Sample, opts Options) *harness {
	t.Helper()
	h := &harness{
		fetcher:  &fakeFetcher{series: map[string][]forecast.Sample{"somo": samples}},
		tides:    &fakeTides{},
		notifier: &fakeNotifier{},
		hook:     &captureHook{},
		windows:  storage.NewMemoryStore(),
	}
	h.runner = New(Deps{
		Forecasts: h.fetcher,
		Tides:     h.tides,
		Daylight:  daylight.FixedHours{Start: 8, End: 22},
		Notifier:  h.notifier,
		Windows:   h.windows,
		Hook:      h.hook,
		Clock:     clockwork.NewFakeClockAt(time.Date(2026, 8, 21, 7, 10, 0, 0, time.UTC)),
		Logger:    zerolog.Nop(),
	}, opts)
	return h
}

func TestRunOnceNotifiesOnQualifyingWindow(t *testing.T) {
	samples := []forecast.Sample{
		sampleAt(10, 1.2, 10),
		sampleAt(11, 1.4, 11),
		sampleAt(12, 1.3, 10),
	}
	h := newHarness(t, samples, Options{})
	ruleset := []rules.AlertRule{testRule("r1")}

	stats := h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 1, stats.Rules)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, 0, stats.Errors)

	require.Len(t, h.notifier.notes, 1)
	note := h.notifier.notes[0]
	assert.Equal(t, int64(42), note.ChatID)
	assert.Equal(t, "Somo", note.SpotName)
	assert.Equal(t, 3, note.Hours)
	assert.Equal(t, time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC), note.WindowStart)
	assert.Equal(t, time.Date(2026, 8, 21, 13, 0, 0, 0, time.UTC), note.WindowEnd)

	assert.False(t, ruleset[0].LastNotified.IsZero())
}

func TestRunOnceIdenticalRunsSendOnce(t *testing.T) {
	samples := []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}
	h := newHarness(t, samples, Options{})
	ruleset := []rules.AlertRule{testRule("r1")}

	first := h.runner.RunOnce(context.Background(), ruleset, 2)
	second := h.runner.RunOnce(context.Background(), ruleset, 2)

	// Both runs detect the window, only the first one reaches the sink.
	assert.Equal(t, 1, first.Notified)
	assert.Equal(t, 0, second.Notified)
	assert.Len(t, h.hook.matches, 2)
	assert.Len(t, h.hook.sents, 1)
	assert.Len(t, h.notifier.notes, 1)
}

func TestRunOnceExtendedWindowSendsAgain(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})
	ruleset := []rules.AlertRule{testRule("r1")}

	h.runner.RunOnce(context.Background(), ruleset, 2)
	require.Len(t, h.notifier.notes, 1)

	// The next forecast grows the same run by an hour.
	h.fetcher.series["somo"] = []forecast.Sample{
		sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11), sampleAt(12, 1.3, 10),
	}
	stats := h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 1, stats.Notified)
	require.Len(t, h.notifier.notes, 2)
	assert.Equal(t, 3, h.notifier.notes[1].Hours)
}

func TestRunOnceShrunkWindowStaysQuiet(t *testing.T) {
	h := newHarness(t, []forecast.Sample{
		sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11), sampleAt(12, 1.3, 10),
	}, Options{})
	ruleset := []rules.AlertRule{testRule("r1")}

	h.runner.RunOnce(context.Background(), ruleset, 2)

	// The run shrinks to a sub-interval of what was already announced.
	h.fetcher.series["somo"] = []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}
	stats := h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 0, stats.Notified)
	assert.Len(t, h.notifier.notes, 1)
}

func TestRunOnceMemoizesForecastPerSpot(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})

	other := testRule("r2")
	other.ChatID = 99
	ruleset := []rules.AlertRule{testRule("r1"), other}

	h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 1, h.fetcher.calls, "rules sharing a spot must share one fetch")
	assert.Len(t, h.notifier.notes, 2)
}

func TestRunOnceFetchFailureDegradesToEmpty(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.fetcher.err = errors.New("upstream 503")
	ruleset := []rules.AlertRule{testRule("r1")}

	stats := h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 0, stats.Errors, "a failed fetch is not a rule error")
	assert.Equal(t, 0, stats.Notified)
}

func TestRunOnceDiscardHistogram(t *testing.T) {
	samples := []forecast.Sample{
		sampleAt(10, 5.0, 10), // wave too big
		sampleAt(11, 1.2, 3),  // period too short
		sampleAt(23, 1.2, 10), // fine but after dark
	}
	h := newHarness(t, samples, Options{})
	ruleset := []rules.AlertRule{testRule("r1")}

	stats := h.runner.RunOnce(context.Background(), ruleset, 1)

	assert.Equal(t, 1, stats.Discarded[ReasonWave])
	assert.Equal(t, 1, stats.Discarded[ReasonPeriod])
	assert.Equal(t, 1, stats.Discarded[ReasonDaylight])
	assert.Equal(t, 0, stats.Notified)
	// The 23:00 sample cleared the thresholds, so the rule still counts as
	// matched even though nothing survived to a window.
	assert.Equal(t, 1, stats.Matched)
}

func TestRunOnceLowTideProximity(t *testing.T) {
	samples := []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}
	h := newHarness(t, samples, Options{})
	h.tides.events = []tide.Event{
		{Time: time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC), Height: 0.5, Type: tide.TypeLow},
		{Time: time.Date(2026, 8, 21, 18, 0, 0, 0, time.UTC), Height: 3.1, Type: tide.TypeHigh},
	}

	rule := testRule("r1")
	rule.TidePort = "santander"
	rule.TidePreference = rules.TideLow

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{rule}, 2)
	assert.Equal(t, 1, stats.Notified, "both hours sit within 3h of low tide")
}

func TestRunOnceLowTideTooFarDiscards(t *testing.T) {
	samples := []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}
	h := newHarness(t, samples, Options{})
	h.tides.events = []tide.Event{
		{Time: time.Date(2026, 8, 21, 20, 0, 0, 0, time.UTC), Height: 0.5, Type: tide.TypeLow},
	}

	rule := testRule("r1")
	rule.TidePort = "santander"
	rule.TidePreference = rules.TideLow

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{rule}, 1)
	assert.Equal(t, 0, stats.Notified)
	assert.Equal(t, 2, stats.Discarded[ReasonTide])
}

func TestRunOnceMissingTideEventDiscards(t *testing.T) {
	samples := []forecast.Sample{sampleAt(10, 1.2, 10)}
	h := newHarness(t, samples, Options{})
	h.tides.events = []tide.Event{
		{Time: time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC), Height: 3.1, Type: tide.TypeHigh},
	}

	rule := testRule("r1")
	rule.TidePort = "santander"
	rule.TidePreference = rules.TideLow

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{rule}, 1)
	assert.Equal(t, 1, stats.Discarded[ReasonTide], "no low tide in the table means the hour cannot qualify")
}

func TestRunOnceMidTideRequiresMidPhase(t *testing.T) {
	// Interpolated height at 09:00 is 2.0 (mid tertile of 0.8..3.2); at
	// 12:00 it is 3.2 (high tertile).
	samples := []forecast.Sample{sampleAt(9, 1.2, 10), sampleAt(12, 1.2, 10)}
	h := newHarness(t, samples, Options{})
	h.tides.events = []tide.Event{
		{Time: time.Date(2026, 8, 21, 6, 0, 0, 0, time.UTC), Height: 0.8, Type: tide.TypeLow},
		{Time: time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC), Height: 3.2, Type: tide.TypeHigh},
	}

	rule := testRule("r1")
	rule.TidePort = "santander"
	rule.TidePreference = rules.TideMid

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{rule}, 1)

	assert.Equal(t, 1, stats.Notified)
	assert.Equal(t, 1, stats.Discarded[ReasonTide])
	require.Len(t, h.notifier.notes, 1)
	assert.Equal(t, time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC), h.notifier.notes[0].WindowStart)
}

func TestRunOnceNotifierFailureIsContained(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})
	h.notifier.err = errors.New("telegram down")

	other := testRule("r2")
	other.ChatID = 99
	ruleset := []rules.AlertRule{testRule("r1"), other}

	stats := h.runner.RunOnce(context.Background(), ruleset, 2)

	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 0, stats.Notified)
	// No dedup state was written, so the next healthy run still sends.
	h.notifier.err = nil
	stats = h.runner.RunOnce(context.Background(), ruleset, 2)
	assert.Equal(t, 2, stats.Notified)
}

func TestRunOncePanicInOneRuleDoesNotAbortRun(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})
	h.runner.deps.Tides = panickyTides{}

	// Only the bad rule touches the tide source, so only it blows up.
	bad := testRule("bad")
	bad.TidePort = "santander"
	bad.TidePreference = rules.TideLow

	good := testRule("r1")
	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{bad, good}, 2)

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Notified, "the healthy rule still notifies")
	assert.Len(t, h.notifier.notes, 1)
}

type panickyTides struct{}

func (panickyTides) Events(context.Context, string, time.Time) ([]tide.Event, error) {
	panic("tide source exploded")
}

func TestRunOnceSkipsDisabledRules(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})

	off := testRule("off")
	off.Enabled = false

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{off}, 2)

	assert.Equal(t, 0, stats.Rules)
	assert.Equal(t, 0, h.fetcher.calls)
	assert.Empty(t, h.notifier.notes)
}

func TestRunOnceRuleOverridesMinimumHours(t *testing.T) {
	h := newHarness(t, []forecast.Sample{sampleAt(10, 1.2, 10), sampleAt(11, 1.4, 11)}, Options{})

	rule := testRule("r1")
	rule.MinConsecutiveHours = 3

	stats := h.runner.RunOnce(context.Background(), []rules.AlertRule{rule}, 2)
	assert.Equal(t, 0, stats.Notified, "rule-level minimum of 3 beats the global 2")
}
