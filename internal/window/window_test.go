package window

import (
	"testing"
	"time"

	"swell-alerts/internal/forecast"
)

func candAt(hour int) Candidate {
	return Candidate{Sample: forecast.Sample{
		Time:   time.Date(2026, 8, 21, hour, 0, 0, 0, time.UTC),
		SpotID: "somo",
	}}
}

func TestFindConsecutiveUnorderedInput(t *testing.T) {
	items := []Candidate{candAt(11), candAt(9), candAt(10)}

	win, ok := FindConsecutive(items, 2)
	if !ok {
		t.Fatal("expected a window")
	}
	if win.Len() != 3 {
		t.Fatalf("expected length 3, got %d", win.Len())
	}
	if got := win.First().Sample.Time.Hour(); got != 9 {
		t.Fatalf("window should start at 09:00, got %02d:00", got)
	}
	if got := win.Last().Sample.Time.Hour(); got != 11 {
		t.Fatalf("window should end at 11:00, got %02d:00", got)
	}
}

func TestFindConsecutiveGapReturnsNone(t *testing.T) {
	items := []Candidate{candAt(9), candAt(11)}
	if _, ok := FindConsecutive(items, 2); ok {
		t.Fatal("gapped samples must not form a window of 2")
	}
}

func TestFindConsecutiveReturnsFirstQualifyingRun(t *testing.T) {
	// Two runs: 06-07 (length 2) and 10-13 (length 4). The earlier one wins
	// even though the later one is longer.
	items := []Candidate{candAt(10), candAt(6), candAt(12), candAt(7), candAt(11), candAt(13)}

	win, ok := FindConsecutive(items, 2)
	if !ok {
		t.Fatal("expected a window")
	}
	if got := win.First().Sample.Time.Hour(); got != 6 {
		t.Fatalf("first qualifying run starts at 06:00, got %02d:00", got)
	}
	if win.Len() != 2 {
		t.Fatalf("expected length 2, got %d", win.Len())
	}
}

func TestFindConsecutiveMinimumOneDegeneratesToSingle(t *testing.T) {
	items := []Candidate{candAt(15)}
	win, ok := FindConsecutive(items, 0)
	if !ok {
		t.Fatal("single sample with min<=1 should form a window")
	}
	if win.Len() != 1 {
		t.Fatalf("expected single-sample window, got %d", win.Len())
	}
}

func TestFindConsecutiveEmptyInput(t *testing.T) {
	if _, ok := FindConsecutive(nil, 1); ok {
		t.Fatal("empty input must return no window")
	}
}

func TestFindConsecutiveRunShorterThanMinimum(t *testing.T) {
	items := []Candidate{candAt(9), candAt(10)}
	if _, ok := FindConsecutive(items, 3); ok {
		t.Fatal("run of 2 must not satisfy minimum 3")
	}
}

func TestWindowSpanCoversWholeHours(t *testing.T) {
	items := []Candidate{candAt(9), candAt(10), candAt(11)}
	win, ok := FindConsecutive(items, 2)
	if !ok {
		t.Fatal("expected a window")
	}

	span := win.Span()
	wantStart := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC).UnixMilli()
	wantEnd := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC).UnixMilli()
	if span.StartMs != wantStart || span.EndMs != wantEnd {
		t.Fatalf("span = [%d,%d), want [%d,%d)", span.StartMs, span.EndMs, wantStart, wantEnd)
	}
}
