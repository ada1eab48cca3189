package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// Service operations, also used as breaker keys and metric labels.
const (
	OpGenerateTemplate = "generate-template"
	OpAuditContract    = "audit-contract"
)

type auditResponse struct {
	Summary *struct {
		OverallHealth *float64 `json:"overallHealth"`
		RiskLevel     *string  `json:"riskLevel"`
	} `json:"summary"`
}

type templateResponse struct {
	ContractCode *string `json:"contractCode"`
}

// ParseAuditResponse converts an audit-contract response body into an
// assessment. summary.overallHealth becomes the (clamped) risk score and
// summary.riskLevel the status label. A missing field is a
// ContractViolation; an unparseable body is a ServiceError. Neither case
// yields a defaulted score.
func ParseAuditResponse(body []byte) (risk.Assessment, error) {
	var resp auditResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return risk.Assessment{}, &ServiceError{Op: OpAuditContract, Cause: fmt.Errorf("malformed response body: %w", err)}
	}
	if resp.Summary == nil || resp.Summary.OverallHealth == nil {
		return risk.Assessment{}, &ContractViolation{Op: OpAuditContract, Field: "summary.overallHealth"}
	}
	if resp.Summary.RiskLevel == nil || strings.TrimSpace(*resp.Summary.RiskLevel) == "" {
		return risk.Assessment{}, &ContractViolation{Op: OpAuditContract, Field: "summary.riskLevel"}
	}

	a, err := risk.Classify(*resp.Summary.OverallHealth, risk.DefaultRules())
	if err != nil {
		return risk.Assessment{}, err
	}
	a.StatusLabel = strings.TrimSpace(*resp.Summary.RiskLevel)
	return a, nil
}

// ParseTemplateResponse extracts contractCode from a generate-template body.
func ParseTemplateResponse(body []byte) (string, error) {
	var resp templateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ServiceError{Op: OpGenerateTemplate, Cause: fmt.Errorf("malformed response body: %w", err)}
	}
	if resp.ContractCode == nil {
		return "", &ContractViolation{Op: OpGenerateTemplate, Field: "contractCode"}
	}
	return *resp.ContractCode, nil
}
