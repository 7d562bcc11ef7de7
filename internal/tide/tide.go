package tide

import (
	"sort"
	"time"
)

// Type distinguishes high and low tide events.
type Type string

const (
	TypeHigh Type = "high"
	TypeLow  Type = "low"
)

// Phase classifies a height against the day's observed range.
type Phase string

const (
	PhaseLow     Phase = "low"
	PhaseMid     Phase = "mid"
	PhaseHigh    Phase = "high"
	PhaseUnknown Phase = "unknown"
)

// Event is one predicted tide extreme at a port.
type Event struct {
	Time   time.Time
	Height float64 // metres
	Type   Type
}

// Estimate is an interpolated tide state at an instant.
type Estimate struct {
	Height float64
	Phase  Phase
}

// Interpolate returns a continuous height at target by piecewise-linear
// interpolation between the bracketing events, clamping to the first or last
// event's height outside the covered range. ok is false for an empty day.
func Interpolate(events []Event, target time.Time) (float64, bool) {
	if len(events) == 0 {
		return 0, false
	}
	sorted := sortedByTime(events)

	if !target.After(sorted[0].Time) {
		return sorted[0].Height, true
	}
	last := sorted[len(sorted)-1]
	if !target.Before(last.Time) {
		return last.Height, true
	}

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if target.Before(next.Time) {
			span := next.Time.Sub(prev.Time).Seconds()
			if span <= 0 {
				return prev.Height, true
			}
			frac := target.Sub(prev.Time).Seconds() / span
			return prev.Height + frac*(next.Height-prev.Height), true
		}
	}
	return last.Height, true
}

// Classify splits the day's [min,max] height range into three equal tertiles.
// A degenerate day (min == max) classifies everything as mid.
func Classify(events []Event, height float64) Phase {
	if len(events) == 0 {
		return PhaseUnknown
	}
	min, max := events[0].Height, events[0].Height
	for _, e := range events[1:] {
		if e.Height < min {
			min = e.Height
		}
		if e.Height > max {
			max = e.Height
		}
	}
	if max == min {
		return PhaseMid
	}
	tertile := (max - min) / 3
	switch {
	case height <= min+tertile:
		return PhaseLow
	case height <= min+2*tertile:
		return PhaseMid
	default:
		return PhaseHigh
	}
}

// EstimateAt combines interpolation and classification.
func EstimateAt(events []Event, target time.Time) (Estimate, bool) {
	height, ok := Interpolate(events, target)
	if !ok {
		return Estimate{Phase: PhaseUnknown}, false
	}
	return Estimate{Height: height, Phase: Classify(events, height)}, true
}

// NearestOfType returns the event of the requested type closest in time to
// target, or false when the day has no event of that type.
func NearestOfType(events []Event, target time.Time, typ Type) (Event, bool) {
	var best Event
	found := false
	for _, e := range events {
		if e.Type != typ {
			continue
		}
		if !found || absDuration(e.Time.Sub(target)) < absDuration(best.Time.Sub(target)) {
			best = e
			found = true
		}
	}
	return best, found
}

func sortedByTime(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
