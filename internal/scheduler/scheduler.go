package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Callback is invoked once per firing. The scheduler does not re-arm until
// the callback returns, so runs never overlap.
type Callback func(ctx context.Context)

// Options tune the civil-time scheduler.
type Options struct {
	TargetMinute int           // minute of the hour to fire on, in the target zone
	Timezone     string        // IANA zone name
	ScanHorizon  time.Duration // how far ahead to search for the target minute
	MinDelay     time.Duration // lower clamp, avoids zero-delay re-entrant firing
}

type state int

const (
	stateIdle state = iota
	stateArmed
	stateStopped
)

// Civil fires a callback once per hour at a fixed minute of a named civil
// time zone, rescheduling itself after each run and spanning DST transitions
// correctly.
type Civil struct {
	opts   Options
	loc    *time.Location
	clock  clockwork.Clock
	logger zerolog.Logger

	mu    sync.Mutex
	st    state
	timer clockwork.Timer
}

// New constructs a scheduler for the given zone.
func New(opts Options, clock clockwork.Clock, logger zerolog.Logger) (*Civil, error) {
	if opts.TargetMinute < 0 || opts.TargetMinute > 59 {
		return nil, fmt.Errorf("target minute %d outside 0..59", opts.TargetMinute)
	}
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
	}
	if opts.ScanHorizon <= 0 {
		opts.ScanHorizon = 6 * time.Hour
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Civil{
		opts:   opts,
		loc:    loc,
		clock:  clock,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// NextDelay computes the delay from now until the next instant whose civil
// minute-of-hour in the target zone equals the target minute.
//
// The search walks forward minute by minute in absolute time and checks the
// zone's rendered minute, instead of doing offset arithmetic. Around DST
// transitions a local minute can be skipped or duplicated, which makes
// arithmetic on offsets unreliable; scanning absolute instants handles both
// cases naturally.
func (s *Civil) NextDelay(now time.Time) time.Duration {
	candidate := now.Truncate(time.Minute).Add(time.Minute)
	limit := now.Add(s.opts.ScanHorizon)
	for !candidate.After(limit) {
		if candidate.In(s.loc).Minute() == s.opts.TargetMinute {
			delay := candidate.Sub(now)
			if delay < s.opts.MinDelay {
				return s.opts.MinDelay
			}
			return delay
		}
		candidate = candidate.Add(time.Minute)
	}
	// Should not happen with a horizon over one hour; re-arm conservatively.
	s.logger.Warn().Dur("horizon", s.opts.ScanHorizon).Msg("target minute not found within scan horizon")
	return time.Hour
}

// Start arms the first timer. It returns an error if the scheduler was
// already started or stopped.
func (s *Civil) Start(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != stateIdle {
		return fmt.Errorf("scheduler already started or stopped")
	}
	s.st = stateArmed
	s.armLocked(ctx, cb)
	return nil
}

// Stop cancels any pending timer and suppresses further rescheduling.
// Safe to call more than once.
func (s *Civil) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = stateStopped
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Civil) armLocked(ctx context.Context, cb Callback) {
	delay := s.NextDelay(s.clock.Now())
	s.logger.Debug().Dur("delay", delay).Int("minute", s.opts.TargetMinute).Msg("armed for next civil minute")
	s.timer = s.clock.AfterFunc(delay, func() {
		s.fire(ctx, cb)
	})
}

func (s *Civil) fire(ctx context.Context, cb Callback) {
	s.mu.Lock()
	if s.st != stateArmed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if ctx.Err() != nil {
		s.Stop()
		return
	}

	s.runCallback(ctx, cb)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != stateArmed {
		return
	}
	s.armLocked(ctx, cb)
}

// runCallback shields rescheduling from a panicking callback.
func (s *Civil) runCallback(ctx context.Context, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("scheduled callback panicked")
		}
	}()
	cb(ctx)
}
