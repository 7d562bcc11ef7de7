package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"swell-alerts/internal/alerting"
	"swell-alerts/internal/daylight"
	"swell-alerts/internal/forecast"
	"swell-alerts/internal/rules"
	"swell-alerts/internal/storage"
	"swell-alerts/internal/tide"
	"swell-alerts/internal/window"
)

// Options tune one evaluation pass.
type Options struct {
	// MinConsecutiveHours is the global minimum run length; a rule may
	// override it.
	MinConsecutiveHours int
	// TideWindow is the proximity window around the nearest matching tide
	// event for high/low preferences.
	TideWindow time.Duration
	// ContextHours widens the sample slice included in a notification on
	// each side of the window.
	ContextHours int
}

// Deps are the runner's collaborators. Audit and Hook are optional.
type Deps struct {
	Forecasts forecast.Fetcher
	Tides     tide.Source
	Daylight  daylight.Provider
	Notifier  alerting.Notifier
	Windows   storage.WindowStore
	Audit     storage.AuditStore
	Hook      Hook
	Clock     clockwork.Clock
	Logger    zerolog.Logger
}

// Runner evaluates all rules in one sequential pass.
type Runner struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
}

// New constructs a Runner.
func New(deps Deps, opts Options) *Runner {
	if opts.MinConsecutiveHours < 1 {
		opts.MinConsecutiveHours = 1
	}
	if opts.TideWindow <= 0 {
		opts.TideWindow = 3 * time.Hour
	}
	if opts.ContextHours < 0 {
		opts.ContextHours = 0
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Runner{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.With().Str("component", "engine").Logger(),
	}
}

// RunOnce evaluates every enabled rule in sequence and returns aggregate
// statistics. A fault in one rule is counted and never aborts the run.
func (r *Runner) RunOnce(ctx context.Context, ruleset []rules.AlertRule, minHours int) RunStats {
	stats := newRunStats()
	// Forecast series are memoized per spot for this run only, so rules
	// sharing a spot cost one fetch.
	memo := make(map[string][]forecast.Sample)

	for i := range ruleset {
		rule := &ruleset[i]
		if !rule.Enabled {
			continue
		}
		stats.Rules++

		if err := r.evaluateRuleSafe(ctx, rule, minHours, memo, &stats); err != nil {
			stats.Errors++
			r.logger.Error().Err(err).Str("rule", rule.ID).Int64("chat_id", rule.ChatID).Msg("rule evaluation failed")
		}
	}

	r.logger.Info().
		Int("rules", stats.Rules).
		Int("matched", stats.Matched).
		Int("notified", stats.Notified).
		Int("errors", stats.Errors).
		Msg("evaluation run complete")
	return stats
}

// evaluateRuleSafe converts a panic inside one rule's evaluation into an
// error so the run can continue with the next rule.
func (r *Runner) evaluateRuleSafe(ctx context.Context, rule *rules.AlertRule, minHours int, memo map[string][]forecast.Sample, stats *RunStats) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.ID, rec)
		}
	}()
	return r.evaluateRule(ctx, rule, minHours, memo, stats)
}

func (r *Runner) evaluateRule(ctx context.Context, rule *rules.AlertRule, minHours int, memo map[string][]forecast.Sample, stats *RunStats) error {
	samples := r.seriesFor(ctx, memo, rule.Spot)

	minLen := minHours
	if rule.MinConsecutiveHours > 0 {
		minLen = rule.MinConsecutiveHours
	}
	if minLen < 1 {
		minLen = r.opts.MinConsecutiveHours
	}

	var candidates []window.Candidate
	rawMatched := false
	for _, s := range samples {
		res := rules.Match(*rule, s)
		if !res.OK() {
			stats.discard(failureReason(res))
			continue
		}
		rawMatched = true

		if !r.deps.Daylight.IsDaylight(rule.Spot.Timezone, s.Time) {
			stats.discard(ReasonDaylight)
			continue
		}

		cand, ok := r.applyTidePreference(ctx, rule, s)
		if !ok {
			stats.discard(ReasonTide)
			continue
		}
		candidates = append(candidates, cand)
	}
	if rawMatched {
		stats.Matched++
	}

	win, ok := window.FindConsecutive(candidates, minLen)
	if !ok {
		return nil
	}
	span := win.Span()

	if r.deps.Hook != nil {
		r.deps.Hook.RecordMatch(MatchEvent{
			ChatID: rule.ChatID,
			RuleID: rule.ID,
			SpotID: rule.Spot.ID,
			Span:   span,
			Hours:  win.Len(),
			At:     r.deps.Clock.Now(),
		})
	}

	fingerprint := rule.Fingerprint()
	previous, err := r.deps.Windows.LastWindow(ctx, rule.ChatID, rule.Spot.ID, fingerprint)
	if err != nil {
		return fmt.Errorf("load last window: %w", err)
	}
	if !window.ShouldSend(previous, span) {
		r.logger.Debug().Str("rule", rule.ID).
			Int64("start_ms", span.StartMs).Int64("end_ms", span.EndMs).
			Msg("window already reported; suppressed")
		return nil
	}

	note := r.composeNotification(ctx, rule, win, samples)
	if err := r.deps.Notifier.Notify(ctx, note); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	stats.Notified++

	now := r.deps.Clock.Now()
	rule.LastNotified = now

	if r.deps.Hook != nil {
		r.deps.Hook.RecordSent(SentEvent{
			ChatID: rule.ChatID,
			RuleID: rule.ID,
			SpotID: rule.Spot.ID,
			Span:   span,
			Hours:  win.Len(),
			At:     now,
		})
	}

	// Dedup state and audit are best effort after a successful send; a
	// write failure risks one duplicate later, not a missed notification.
	if err := r.deps.Windows.SaveWindow(ctx, storage.NotifiedWindow{
		ChatID:          rule.ChatID,
		SpotID:          rule.Spot.ID,
		RuleFingerprint: fingerprint,
		StartMs:         span.StartMs,
		EndMs:           span.EndMs,
		SentAt:          now,
	}); err != nil {
		r.logger.Error().Err(err).Str("rule", rule.ID).Msg("failed to persist notified window")
	}
	if r.deps.Audit != nil {
		if _, err := r.deps.Audit.InsertNotification(ctx, storage.NotificationRecord{
			ChatID:      rule.ChatID,
			RuleID:      rule.ID,
			SpotID:      rule.Spot.ID,
			WindowStart: time.UnixMilli(span.StartMs).UTC(),
			WindowEnd:   time.UnixMilli(span.EndMs).UTC(),
			Hours:       win.Len(),
		}); err != nil {
			r.logger.Error().Err(err).Str("rule", rule.ID).Msg("failed to record notification audit row")
		}
	}
	return nil
}

// seriesFor returns the memoized forecast series for a spot. Fetch failures
// degrade to an empty series: no samples, no match, next run retries.
func (r *Runner) seriesFor(ctx context.Context, memo map[string][]forecast.Sample, spot rules.Spot) []forecast.Sample {
	if series, ok := memo[spot.ID]; ok {
		return series
	}
	series, err := r.deps.Forecasts.Fetch(ctx, spot.ID, spot.Latitude, spot.Longitude)
	if err != nil {
		r.logger.Warn().Err(err).Str("spot", spot.ID).Msg("forecast fetch failed; treating series as empty")
		series = nil
	}
	memo[spot.ID] = series
	return series
}

// applyTidePreference decides whether a matching sample survives the rule's
// tide preference and annotates it with the interpolated tide state.
func (r *Runner) applyTidePreference(ctx context.Context, rule *rules.AlertRule, s forecast.Sample) (window.Candidate, bool) {
	cand := window.Candidate{Sample: s}
	pref := rule.TidePreference
	if pref == "" || pref == rules.TideAny {
		return cand, true
	}

	events := r.tideEventsFor(ctx, rule, s.Time)
	est, ok := tide.EstimateAt(events, s.Time)
	if ok {
		cand.TidePhase = est.Phase
		cand.TideHeight = est.Height
	}

	switch pref {
	case rules.TideMid:
		return cand, ok && est.Phase == tide.PhaseMid
	case rules.TideLow, rules.TideHigh:
		typ := tide.TypeLow
		if pref == rules.TideHigh {
			typ = tide.TypeHigh
		}
		nearest, found := tide.NearestOfType(events, s.Time, typ)
		if !found {
			return cand, false
		}
		dist := nearest.Time.Sub(s.Time)
		if dist < 0 {
			dist = -dist
		}
		return cand, dist <= r.opts.TideWindow
	default:
		return cand, true
	}
}

// tideEventsFor loads the tide table for the sample's civil day at the
// rule's port. Failures degrade to an empty day.
func (r *Runner) tideEventsFor(ctx context.Context, rule *rules.AlertRule, at time.Time) []tide.Event {
	if rule.TidePort == "" {
		return nil
	}
	day := civilDayStart(at, rule.Spot.Timezone)
	events, err := r.deps.Tides.Events(ctx, rule.TidePort, day)
	if err != nil {
		r.logger.Warn().Err(err).Str("port", rule.TidePort).Time("day", day).Msg("tide fetch failed; treating day as empty")
		return nil
	}
	return events
}

func (r *Runner) composeNotification(ctx context.Context, rule *rules.AlertRule, win window.Window, series []forecast.Sample) alerting.Notification {
	span := win.Span()
	start := time.UnixMilli(span.StartMs).UTC()
	end := time.UnixMilli(span.EndMs).UTC()

	contextPad := time.Duration(r.opts.ContextHours) * time.Hour
	var slice []forecast.Sample
	for _, s := range series {
		if !s.Time.Before(start.Add(-contextPad)) && s.Time.Before(end.Add(contextPad)) {
			slice = append(slice, s)
		}
	}

	note := alerting.Notification{
		ChatID:      rule.ChatID,
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		SpotName:    rule.Spot.Name,
		Timezone:    rule.Spot.Timezone,
		WindowStart: start,
		WindowEnd:   end,
		Hours:       win.Len(),
		Samples:     slice,
	}

	events := r.tideEventsFor(ctx, rule, start)
	if high, ok := tide.NearestOfType(events, start, tide.TypeHigh); ok {
		note.HighTide = &high
	}
	if low, ok := tide.NearestOfType(events, start, tide.TypeLow); ok {
		note.LowTide = &low
	}
	return note
}

// failureReason picks the histogram bucket for a failed match. A sample
// failing several dimensions counts once, under the first failing one.
func failureReason(res rules.MatchResult) Reason {
	switch {
	case !res.Wave:
		return ReasonWave
	case !res.Period:
		return ReasonPeriod
	case !res.Energy:
		return ReasonEnergy
	default:
		return ReasonWind
	}
}

// civilDayStart returns midnight of at's civil date in the given zone,
// falling back to UTC when the zone is unknown.
func civilDayStart(at time.Time, timezone string) time.Time {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	local := at.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
