package patterns

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts repository outcomes and store conflicts. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	conflicts  prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg (skipped when reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beatflow",
			Subsystem: "patterns",
			Name:      "operations_total",
			Help:      "Pattern operations by operation and outcome (ok or error kind).",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beatflow",
			Subsystem: "store",
			Name:      "conflicts_total",
			Help:      "Read-modify-write attempts retried because the slot changed underneath.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.conflicts)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
