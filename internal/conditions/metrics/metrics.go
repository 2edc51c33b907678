package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for condition lifecycle transitions.
type Metrics struct {
	Transitions *prometheus.CounterVec
}

// New creates a Metrics instance with all condition metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_conditions_transitions_total",
			Help: "Condition lifecycle transitions by category and resulting status",
		}, []string{"category", "status"}),
	}
}

// IncrementTransition records one lifecycle transition.
func (m *Metrics) IncrementTransition(category, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(category, status).Inc()
	}
}
