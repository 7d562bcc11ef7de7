package engine

// Reason explains why an individual forecast hour was discarded.
type Reason string

const (
	ReasonWave     Reason = "wave"
	ReasonPeriod   Reason = "period"
	ReasonEnergy   Reason = "energy"
	ReasonWind     Reason = "wind"
	ReasonDaylight Reason = "daylight"
	ReasonTide     Reason = "tide"
)

// RunStats aggregates the outcome of one evaluation pass over all rules.
// The discard histogram is the operational view of why hours fell out.
type RunStats struct {
	Rules     int
	Matched   int // rules with at least one sample passing the range matcher
	Notified  int
	Errors    int
	Discarded map[Reason]int
}

func newRunStats() RunStats {
	return RunStats{Discarded: make(map[Reason]int)}
}

func (s *RunStats) discard(r Reason) {
	s.Discarded[r]++
}
