package daylight

import "time"

// Provider answers whether an instant falls inside the daylight window at a
// spot. Implementations must fail open: when the answer cannot be computed
// the hour stays eligible and later filters decide.
type Provider interface {
	IsDaylight(timezone string, t time.Time) bool
}

// FixedHours passes hours whose local time falls in [Start, End) in the
// spot's zone.
type FixedHours struct {
	Start int
	End   int
}

// IsDaylight reports whether t renders inside the configured local hours.
// An unknown or empty zone fails open.
func (f FixedHours) IsDaylight(timezone string, t time.Time) bool {
	if timezone == "" {
		return true
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return true
	}
	h := t.In(loc).Hour()
	return h >= f.Start && h < f.End
}
