package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decisions generated by type and result
	Decisions *prometheus.CounterVec

	// Supersessions of prior decisions
	Supersessions prometheus.Counter

	// Risk band distribution of generated decisions
	RiskBands *prometheus.CounterVec
}

// New creates a Metrics instance with all decision module metrics registered.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_decisions_total",
			Help: "Decisions generated by decision type and result",
		}, []string{"type", "result"}),

		Supersessions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_decisions_superseded_total",
			Help: "Prior decisions superseded by a newer version",
		}),

		RiskBands: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_decisions_risk_band_total",
			Help: "Risk band distribution of generated decisions",
		}, []string{"band"}),
	}
}

// IncrementDecision records one generated decision.
func (m *Metrics) IncrementDecision(decisionType, result string) {
	if m != nil {
		m.Decisions.WithLabelValues(decisionType, result).Inc()
	}
}

// IncrementSupersession records one superseded decision.
func (m *Metrics) IncrementSupersession() {
	if m != nil {
		m.Supersessions.Inc()
	}
}

// ObserveRiskBand records the risk band of a generated decision.
func (m *Metrics) ObserveRiskBand(band string) {
	if m != nil {
		m.RiskBands.WithLabelValues(band).Inc()
	}
}
