package analysis

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultBusy      = "busy"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "analysis_cycles_total",
			Help:      "Analysis cycles by path and result.",
		},
		[]string{"path", "result"},
	)

	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compliance",
			Name:      "analysis_cycle_duration_seconds",
			Help:      "Time spent in the loading state per cycle.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration)
}
