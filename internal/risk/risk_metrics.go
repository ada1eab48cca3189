package risk

import "github.com/prometheus/client_golang/prometheus"

// classificationsTotal counts classifications by resulting status.
var classificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "compliance",
		Name:      "risk_classifications_total",
		Help:      "Total risk classifications by resulting status.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(classificationsTotal)
}
