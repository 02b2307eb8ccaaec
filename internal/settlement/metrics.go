package settlement

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// confirmations counts finished confirmation runs by outcome
	confirmations *prometheus.CounterVec

	// checks tracks how many status lookups a run needed
	checks prometheus.Histogram

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		confirmations = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "bridge",
				Subsystem: "settlement",
				Name:      "confirmations_total",
				Help:      "Settlement confirmation runs by outcome",
			},
			[]string{"outcome"},
		)

		checks = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "bridge",
				Subsystem: "settlement",
				Name:      "checks",
				Help:      "Status lookups per confirmation run",
				Buckets:   prometheus.LinearBuckets(0, 1, 11),
			},
		)
	})
}
