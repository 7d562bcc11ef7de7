package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"swell-alerts/internal/engine"
)

// Metrics holds the Prometheus instruments for the evaluation engine and
// implements engine.Hook.
type Metrics struct {
	Runs           prometheus.Counter
	RulesEvaluated prometheus.Counter
	RulesMatched   prometheus.Counter
	Matches        prometheus.Counter
	Notifications  prometheus.Counter
	RuleErrors     prometheus.Counter
	HoursDiscarded *prometheus.CounterVec // label: reason
	LastRunUnix    prometheus.Gauge
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RulesEvaluated,
		m.RulesMatched,
		m.Matches,
		m.Notifications,
		m.RuleErrors,
		m.HoursDiscarded,
		m.LastRunUnix,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "runs_total",
			Help:      "Total evaluation runs executed.",
		}),
		RulesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "rules_evaluated_total",
			Help:      "Total enabled rules evaluated across all runs.",
		}),
		RulesMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "rules_matched_total",
			Help:      "Total rules with at least one raw threshold match.",
		}),
		Matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "windows_detected_total",
			Help:      "Total qualifying windows detected, before deduplication.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "notifications_sent_total",
			Help:      "Total notifications handed to the sink.",
		}),
		RuleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "rule_errors_total",
			Help:      "Total per-rule evaluation failures.",
		}),
		HoursDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swell_alerts",
			Name:      "hours_discarded_total",
			Help:      "Forecast hours discarded during filtering, by reason.",
		}, []string{"reason"}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "swell_alerts",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed evaluation run.",
		}),
	}
}

// RecordMatch implements engine.Hook.
func (m *Metrics) RecordMatch(_ engine.MatchEvent) {
	m.Matches.Inc()
}

// RecordSent implements engine.Hook.
func (m *Metrics) RecordSent(_ engine.SentEvent) {
	m.Notifications.Inc()
}

// ObserveRun folds one run's aggregate statistics into the instruments.
func (m *Metrics) ObserveRun(stats engine.RunStats, completedAtUnix float64) {
	m.Runs.Inc()
	m.RulesEvaluated.Add(float64(stats.Rules))
	m.RulesMatched.Add(float64(stats.Matched))
	m.RuleErrors.Add(float64(stats.Errors))
	for reason, count := range stats.Discarded {
		m.HoursDiscarded.WithLabelValues(string(reason)).Add(float64(count))
	}
	m.LastRunUnix.Set(completedAtUnix)
}

var _ engine.Hook = (*Metrics)(nil)
