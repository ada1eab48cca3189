// Package risk classifies a numeric risk score into a compliance status and a
// set of rule outcomes.
//
// Two thresholds coexist on purpose: the FATF Travel Rule trips above 50 while
// the displayed status and the KYC rule trip above 70. Both are declared once
// here and every other package derives tiers and colours from them.
package risk

// Status is the headline compliance verdict for a score.
type Status string

const (
	StatusCompliant Status = "Compliant"
	StatusHighRisk  Status = "HighRisk"
)

// Label returns the human-readable form shown on the dashboard.
func (s Status) Label() string {
	if s == StatusHighRisk {
		return "High Risk"
	}
	return string(s)
}

// Severity grades a rule outcome.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Thresholds. A score strictly greater than the threshold trips it.
const (
	HighRiskThreshold   = 70.0
	TravelRuleThreshold = 50.0
)

// Rule names as reported in rule outcomes.
const (
	RuleFATFTravel      = "FATF_TRAVEL_RULE"
	RuleKYCVerification = "KYC_VERIFICATION"
)

// Rule is one compliance check driven purely by the risk score.
type Rule struct {
	Name      string   `json:"rule"`
	Threshold float64  `json:"threshold"`
	Severity  Severity `json:"severity"` // severity when triggered
}

// Triggered reports whether score trips the rule.
func (r Rule) Triggered(score float64) bool {
	return score > r.Threshold
}

// RuleSet is an ordered list of rules; outcomes keep the same order.
type RuleSet []Rule

// DefaultRules returns the FATF Travel Rule and KYC verification checks.
func DefaultRules() RuleSet {
	return RuleSet{
		{Name: RuleFATFTravel, Threshold: TravelRuleThreshold, Severity: SeverityMedium},
		{Name: RuleKYCVerification, Threshold: HighRiskThreshold, Severity: SeverityHigh},
	}
}

// RuleOutcome is the pass/fail result of one rule.
type RuleOutcome struct {
	Rule     string   `json:"rule"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
}

// Assessment is the derived compliance view of a single score. It is never
// persisted.
type Assessment struct {
	RiskScore    float64       `json:"riskScore"`
	Status       Status        `json:"status"`
	StatusLabel  string        `json:"statusLabel"`
	RuleOutcomes []RuleOutcome `json:"ruleOutcomes"`
}

// Failed returns the outcomes whose rule was triggered.
func (a Assessment) Failed() []RuleOutcome {
	var out []RuleOutcome
	for _, o := range a.RuleOutcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// Tier is the two-level rendering bucket used for charts, tables and graph nodes.
type Tier string

const (
	TierLow  Tier = "low"
	TierHigh Tier = "high"
)

// TierOf buckets a score using HighRiskThreshold.
func TierOf(score float64) Tier {
	if score > HighRiskThreshold {
		return TierHigh
	}
	return TierLow
}

// Color returns the render colour for the tier.
func (t Tier) Color() string {
	if t == TierHigh {
		return "red"
	}
	return "green"
}
