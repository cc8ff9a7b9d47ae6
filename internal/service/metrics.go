package service

import "github.com/prometheus/client_golang/prometheus"

// Decision labels.
const (
	DecisionAuthorize = "authorize"
	DecisionReject    = "reject"
)

// DecisionMetrics counts guardian decisions by outcome.
type DecisionMetrics struct {
	decisions *prometheus.CounterVec
}

// NewDecisionMetrics registers guardian_decisions_total on reg.
func NewDecisionMetrics(reg prometheus.Registerer) (*DecisionMetrics, error) {
	m := &DecisionMetrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guardian_decisions_total",
				Help: "Guardian authorization decisions by outcome.",
			},
			[]string{"decision", "outcome"},
		),
	}
	if err := reg.Register(m.decisions); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DecisionMetrics) observe(decision, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, outcome).Inc()
}
