package risk

import (
	"github.com/mbd888/compliance-dashboard/internal/records"
)

// Classify maps a score to a compliance status and evaluates every rule.
//
// Out-of-range scores are clamped to [0, 100] before evaluation; NaN and
// infinities return a validation error. The function has no side effects on
// its result and is safe for concurrent use.
func Classify(score float64, rules RuleSet) (Assessment, error) {
	s, err := records.ClampScore(score)
	if err != nil {
		return Assessment{}, err
	}

	status := StatusCompliant
	if s > HighRiskThreshold {
		status = StatusHighRisk
	}

	outcomes := make([]RuleOutcome, 0, len(rules))
	for _, r := range rules {
		o := RuleOutcome{Rule: r.Name, Passed: true, Severity: SeverityLow}
		if r.Triggered(s) {
			o.Passed = false
			o.Severity = r.Severity
		}
		outcomes = append(outcomes, o)
	}

	classificationsTotal.WithLabelValues(string(status)).Inc()

	return Assessment{
		RiskScore:    s,
		Status:       status,
		StatusLabel:  status.Label(),
		RuleOutcomes: outcomes,
	}, nil
}
