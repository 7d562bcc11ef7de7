package daylight

import (
	"testing"
	"time"
)

func TestFixedHoursWindow(t *testing.T) {
	p := FixedHours{Start: 8, End: 22}

	cases := []struct {
		name string
		utc  time.Time
		tz   string
		want bool
	}{
		{"morning inside", time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC), "UTC", true},
		{"start boundary inclusive", time.Date(2026, 8, 21, 8, 0, 0, 0, time.UTC), "UTC", true},
		{"end boundary exclusive", time.Date(2026, 8, 21, 22, 0, 0, 0, time.UTC), "UTC", false},
		{"night", time.Date(2026, 8, 21, 3, 0, 0, 0, time.UTC), "UTC", false},
		// 21:00 UTC is 23:00 in Madrid during August.
		{"zone shifts out of window", time.Date(2026, 8, 21, 21, 0, 0, 0, time.UTC), "Europe/Madrid", false},
		{"zone shifts into window", time.Date(2026, 8, 21, 6, 30, 0, 0, time.UTC), "Europe/Madrid", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.IsDaylight(tc.tz, tc.utc); got != tc.want {
				t.Fatalf("IsDaylight(%s, %v) = %v, want %v", tc.tz, tc.utc, got, tc.want)
			}
		})
	}
}

func TestFixedHoursFailsOpen(t *testing.T) {
	p := FixedHours{Start: 8, End: 22}
	night := time.Date(2026, 8, 21, 3, 0, 0, 0, time.UTC)

	if !p.IsDaylight("", night) {
		t.Fatal("empty timezone must fail open")
	}
	if !p.IsDaylight("Atlantis/Nowhere", night) {
		t.Fatal("unknown timezone must fail open")
	}
}
