package rules

import (
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"swell-alerts/internal/forecast"
)

// TidePreference constrains matching hours relative to the tide.
type TidePreference string

const (
	TideAny  TidePreference = "any"
	TideLow  TidePreference = "low"
	TideMid  TidePreference = "mid"
	TideHigh TidePreference = "high"
)

// Range is a closed numeric interval. Min must not exceed Max.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies inside the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// WindRange is a closed interval over compass degrees. Min > Max is valid and
// denotes an interval wrapping through 0 (e.g. 337.5..22.5).
type WindRange struct {
	Min float64
	Max float64
}

// Contains reports whether the normalized angle lies inside the interval.
func (r WindRange) Contains(angle float64) bool {
	a := NormalizeAngle(angle)
	if r.Min <= r.Max {
		return a >= r.Min && a <= r.Max
	}
	return a >= r.Min || a <= r.Max
}

// NormalizeAngle reduces an angle in degrees to [0, 360).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Spot identifies a surf spot and its civil time zone.
type Spot struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Timezone  string // IANA name, e.g. Europe/Lisbon
}

// AlertRule is a subscriber's set of acceptable conditions for one spot.
type AlertRule struct {
	ChatID  int64
	ID      string
	Name    string
	Spot    Spot
	Enabled bool

	WaveRanges   []Range     // metres, OR-combined; empty = unconstrained
	PeriodRanges []Range     // seconds, OR-combined; empty = unconstrained
	Energy       Range       // mandatory single interval
	WindRanges   []WindRange // degrees, OR-combined; empty = unconstrained

	TidePort       string
	TidePreference TidePreference

	// MinConsecutiveHours overrides the global minimum when positive.
	MinConsecutiveHours int

	LastNotified time.Time
}

// Fingerprint identifies the rule's threshold configuration. Dedup state is
// keyed on it so that editing a rule's thresholds resets deduplication.
func (r AlertRule) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s", r.Spot.ID, r.TidePort, r.TidePreference, r.ID)
	for _, rg := range r.WaveRanges {
		fmt.Fprintf(h, "|w%.3f:%.3f", rg.Min, rg.Max)
	}
	for _, rg := range r.PeriodRanges {
		fmt.Fprintf(h, "|p%.3f:%.3f", rg.Min, rg.Max)
	}
	fmt.Fprintf(h, "|e%.3f:%.3f", r.Energy.Min, r.Energy.Max)
	for _, rg := range r.WindRanges {
		fmt.Fprintf(h, "|d%.3f:%.3f", rg.Min, rg.Max)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Validate enforces the interval invariants. Wind intervals are exempt from
// the min<=max check because wraparound is expressed as min > max.
func (r AlertRule) Validate() error {
	for _, rg := range r.WaveRanges {
		if rg.Min > rg.Max {
			return fmt.Errorf("rule %s: wave range %.2f..%.2f inverted", r.ID, rg.Min, rg.Max)
		}
	}
	for _, rg := range r.PeriodRanges {
		if rg.Min > rg.Max {
			return fmt.Errorf("rule %s: period range %.2f..%.2f inverted", r.ID, rg.Min, rg.Max)
		}
	}
	if r.Energy.Min > r.Energy.Max {
		return fmt.Errorf("rule %s: energy range %.2f..%.2f inverted", r.ID, r.Energy.Min, r.Energy.Max)
	}
	for _, rg := range r.WindRanges {
		if rg.Min < 0 || rg.Max < 0 || rg.Min >= 360 || rg.Max >= 360 {
			return fmt.Errorf("rule %s: wind range %.2f..%.2f outside [0,360)", r.ID, rg.Min, rg.Max)
		}
	}
	switch r.TidePreference {
	case "", TideAny, TideLow, TideMid, TideHigh:
	default:
		return fmt.Errorf("rule %s: unknown tide preference %q", r.ID, r.TidePreference)
	}
	return nil
}

// MatchResult holds the per-dimension outcome of matching one sample.
type MatchResult struct {
	Wave   bool
	Period bool
	Energy bool
	Wind   bool
}

// OK reports whether every dimension passed.
func (m MatchResult) OK() bool {
	return m.Wave && m.Period && m.Energy && m.Wind
}

// Match evaluates one forecast sample against the rule's thresholds.
// Empty interval lists pass unconditionally; energy is always enforced.
func Match(rule AlertRule, s forecast.Sample) MatchResult {
	return MatchResult{
		Wave:   matchAny(rule.WaveRanges, s.CombinedHeight()),
		Period: matchAny(rule.PeriodRanges, s.PrimaryPeriod()),
		Energy: rule.Energy.Contains(s.Energy),
		Wind:   matchWind(rule.WindRanges, s.WindAngle),
	}
}

func matchAny(ranges []Range, v float64) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

func matchWind(ranges []WindRange, angle float64) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if r.Contains(angle) {
			return true
		}
	}
	return false
}
