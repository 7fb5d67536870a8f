package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks login outcomes.
type Metrics struct {
	LoginsSucceeded prometheus.Counter
	LoginsFailed    prometheus.Counter
	LoginsLocked    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "disposisi_logins_succeeded_total",
			Help: "Total number of successful logins",
		}),
		LoginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "disposisi_logins_failed_total",
			Help: "Total number of rejected logins",
		}),
		LoginsLocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "disposisi_logins_locked_total",
			Help: "Total number of logins refused while the caller was locked out",
		}),
	}
}
