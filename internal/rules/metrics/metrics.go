package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the rules module.
type Metrics struct {
	// Evaluation outcomes by rule set and aggregate result
	EvaluationOutcome *prometheus.CounterVec

	// Individual rule failures by rule ID
	RuleFailures *prometheus.CounterVec

	// Full evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New creates a Metrics instance with all rules module metrics registered.
func New() *Metrics {
	return &Metrics{
		EvaluationOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_rules_evaluations_total",
			Help: "Total rule set evaluations by rule set and aggregate result",
		}, []string{"rule_set", "result"}),

		RuleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_rules_failures_total",
			Help: "Total individual rule failures by rule ID",
		}, []string{"rule_id"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lendgate_rules_evaluate_duration_seconds",
			Help:    "Duration of full rule set evaluation including persistence",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementOutcome records an aggregate evaluation outcome.
func (m *Metrics) IncrementOutcome(ruleSet, result string) {
	if m != nil {
		m.EvaluationOutcome.WithLabelValues(ruleSet, result).Inc()
	}
}

// IncrementRuleFailure records one failing rule.
func (m *Metrics) IncrementRuleFailure(ruleID string) {
	if m != nil {
		m.RuleFailures.WithLabelValues(ruleID).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
