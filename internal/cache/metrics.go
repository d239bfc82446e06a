package cache

import "github.com/prometheus/client_golang/prometheus"

var lookupsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pastvra",
	Subsystem: "cache",
	Name:      "animal_lookups_total",
	Help:      "Animal identifier lookups served by the cache, by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(lookupsCounter)
}
