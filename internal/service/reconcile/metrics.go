package reconcile

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeCommitted = "committed"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

var (
	recordsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pastvra",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Pending weight records processed by reconciliation passes, by outcome.",
	}, []string{"outcome"})

	passDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pastvra",
		Subsystem: "sync",
		Name:      "pass_duration_seconds",
		Help:      "Wall time of non-empty reconciliation passes.",
		Buckets:   prometheus.DefBuckets,
	})

	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pastvra",
		Subsystem: "sync",
		Name:      "pending_records",
		Help:      "Records left in the local queue after the last pass.",
	})
)

func init() {
	prometheus.MustRegister(recordsCounter, passDuration, pendingGauge)
}
