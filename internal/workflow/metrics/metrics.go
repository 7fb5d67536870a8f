package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the disposition workflow.
type Metrics struct {
	// Records created since start
	RecordsCreated prometheus.Counter

	// Committed transitions by action and resulting status
	Transitions *prometheus.CounterVec

	// Rejected transitions by action and error code
	TransitionsRejected *prometheus.CounterVec

	// Lost optimistic version checks
	VersionConflicts prometheus.Counter

	// Time spent inside a record transaction
	TxDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "disposisi_records_created_total",
			Help: "Total number of records created",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "disposisi_transitions_total",
			Help: "Committed workflow transitions by action and target status",
		}, []string{"action", "status"}),
		TransitionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "disposisi_transitions_rejected_total",
			Help: "Rejected workflow transitions by action and error code",
		}, []string{"action", "code"}),
		VersionConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "disposisi_record_version_conflicts_total",
			Help: "Updates rejected because a concurrent writer committed first",
		}),
		TxDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "disposisi_record_tx_duration_seconds",
			Help:    "Duration of record transactions by operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.RecordsCreated.Inc()
	}
}

func (m *Metrics) IncrementTransition(action, status string) {
	if m != nil {
		m.Transitions.WithLabelValues(action, status).Inc()
	}
}

func (m *Metrics) IncrementRejected(action, code string) {
	if m != nil {
		m.TransitionsRejected.WithLabelValues(action, code).Inc()
	}
}

func (m *Metrics) IncrementConflict() {
	if m != nil {
		m.VersionConflicts.Inc()
	}
}

// ObserveTx records how long operation held its record transaction.
func (m *Metrics) ObserveTx(operation string, d time.Duration) {
	if m != nil {
		m.TxDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
