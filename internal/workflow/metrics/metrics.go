package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the workflow module.
type Metrics struct {
	// Milestone advances by target milestone and trigger kind
	Advances *prometheus.CounterVec

	// Rejected advance attempts by target milestone
	AdvancesRejected *prometheus.CounterVec

	// Task status transitions
	TaskTransitions *prometheus.CounterVec

	// Task SLA breaches flagged by the sweep
	SLABreaches prometheus.Counter
}

// New creates a Metrics instance with all workflow metrics registered.
func New() *Metrics {
	return &Metrics{
		Advances: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_workflow_advances_total",
			Help: "Milestone advances by target milestone and trigger kind",
		}, []string{"milestone", "triggered_by"}),

		AdvancesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_workflow_advances_rejected_total",
			Help: "Rejected milestone advance attempts by target milestone",
		}, []string{"milestone"}),

		TaskTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lendgate_workflow_task_transitions_total",
			Help: "Task status transitions by resulting status",
		}, []string{"status"}),

		SLABreaches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lendgate_workflow_sla_breaches_total",
			Help: "Task SLA breaches flagged by the sweep",
		}),
	}
}

// IncrementAdvance records a successful milestone advance.
func (m *Metrics) IncrementAdvance(milestone, triggeredBy string) {
	if m != nil {
		m.Advances.WithLabelValues(milestone, triggeredBy).Inc()
	}
}

// IncrementRejected records a rejected advance attempt.
func (m *Metrics) IncrementRejected(milestone string) {
	if m != nil {
		m.AdvancesRejected.WithLabelValues(milestone).Inc()
	}
}

// IncrementTaskTransition records one task status transition.
func (m *Metrics) IncrementTaskTransition(status string) {
	if m != nil {
		m.TaskTransitions.WithLabelValues(status).Inc()
	}
}

// IncrementSLABreach records one newly flagged SLA breach.
func (m *Metrics) IncrementSLABreach() {
	if m != nil {
		m.SLABreaches.Inc()
	}
}
