package window

import (
	"sort"
	"time"

	"swell-alerts/internal/forecast"
	"swell-alerts/internal/tide"
)

// Candidate is a forecast sample that passed rule matching, optionally
// annotated with the tide state evaluated for it.
type Candidate struct {
	Sample     forecast.Sample
	TidePhase  tide.Phase // empty when the rule imposed no tide constraint
	TideHeight float64
}

// Span is a half-open window [StartMs, EndMs) in Unix milliseconds.
type Span struct {
	StartMs int64
	EndMs   int64
}

// Window is a contiguous hourly run of candidates.
type Window struct {
	Items []Candidate
}

// Len returns the number of hours in the window.
func (w Window) Len() int { return len(w.Items) }

// First returns the earliest candidate in the run.
func (w Window) First() Candidate { return w.Items[0] }

// Last returns the latest candidate in the run.
func (w Window) Last() Candidate { return w.Items[len(w.Items)-1] }

// Span returns the window bounds: start of the first hour through the end of
// the last, so a run of n samples spans exactly n hours.
func (w Window) Span() Span {
	start := w.First().Sample.Time
	end := w.Last().Sample.Time.Add(time.Hour)
	return Span{StartMs: start.UnixMilli(), EndMs: end.UnixMilli()}
}

// FindConsecutive sorts the candidates by time and returns the first run of
// strictly hourly-spaced samples with length >= minLen. Returning the first
// qualifying run rather than the longest keeps notification timing close to
// the earliest actionable moment. ok is false on empty input or when no run
// qualifies.
func FindConsecutive(items []Candidate, minLen int) (Window, bool) {
	if len(items) == 0 {
		return Window{}, false
	}
	if minLen < 1 {
		minLen = 1
	}

	sorted := make([]Candidate, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Sample.Time.Before(sorted[j].Sample.Time)
	})

	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Sample.Time.Sub(sorted[i-1].Sample.Time) == time.Hour {
			continue
		}
		if i-start >= minLen {
			return Window{Items: sorted[start:i]}, true
		}
		start = i
	}
	return Window{}, false
}
