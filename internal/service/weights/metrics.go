package weights

import "github.com/prometheus/client_golang/prometheus"

var ingestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pastvra",
	Subsystem: "weights",
	Name:      "ingested_total",
	Help:      "Weight insert attempts received by the API, by source and outcome.",
}, []string{"source", "outcome"})

func init() {
	prometheus.MustRegister(ingestCounter)
}
