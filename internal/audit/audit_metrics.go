package audit

import "github.com/prometheus/client_golang/prometheus"

const (
	resultSuccess   = "success"
	resultTransport = "transport_error"
	resultStatus    = "status_error"
	resultContract  = "contract_violation"
	resultMalformed = "malformed"
	resultRejected  = "circuit_open"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "audit_calls_total",
			Help:      "Total audit service calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "compliance",
			Name:      "audit_call_duration_seconds",
			Help:      "Audit service round-trip time in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, callDuration)
}

// observeResult counts a call that got a 2xx response, by parse outcome.
func observeResult(op string, err error) {
	switch {
	case err == nil:
		callsTotal.WithLabelValues(op, resultSuccess).Inc()
	case IsContractViolation(err):
		callsTotal.WithLabelValues(op, resultContract).Inc()
	default:
		callsTotal.WithLabelValues(op, resultMalformed).Inc()
	}
}
