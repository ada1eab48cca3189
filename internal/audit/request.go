// Package audit adapts the dashboard to the external contract template and
// audit service: it normalises form input into the service's request shape,
// performs the HTTP calls and converts the audit summary into a risk
// assessment.
package audit

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// maxFieldLength bounds every form input; longer values are rejected, not
// truncated.
const maxFieldLength = 256

// FormFields are the raw selections and inputs from the contract
// configuration form.
type FormFields struct {
	TransactionType string `json:"transactionType" validate:"required"`
	AssetType       string `json:"assetType" validate:"required"`
	Value           string `json:"value" validate:"required"`
	SettlementDate  string `json:"settlementDate" validate:"required"`
	CounterpartyID  string `json:"counterpartyId" validate:"required"`
	Jurisdiction    string `json:"jurisdiction" validate:"required"`
}

// ContractConfig is the normalised configuration sent to the service.
type ContractConfig struct {
	TransactionType string  `json:"transactionType"`
	AssetType       string  `json:"assetType"`
	Value           float64 `json:"value"`
	SettlementDate  string  `json:"settlementDate"`
	CounterpartyID  string  `json:"counterpartyId"`
	Jurisdiction    string  `json:"jurisdiction"`
}

// AuditRequest is the audit-contract request body.
type AuditRequest struct {
	ContractCode string         `json:"contractCode"`
	Config       ContractConfig `json:"config"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeKey lower-cases a display label and replaces each whitespace run
// with an underscore: "Global Custody Services" → "global_custody_services".
func NormalizeKey(label string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
}

// NormalizeJurisdiction drops the parenthetical regulator code:
// "USA(SEC/FINRA)" → "USA".
func NormalizeJurisdiction(label string) string {
	name, _, _ := strings.Cut(label, "(")
	return strings.TrimSpace(name)
}

// BuildAuditRequest validates the form and converts it into the machine keys
// the service expects. Every failing field is reported in one
// validation.ValidationErrors.
func BuildAuditRequest(form FormFields) (ContractConfig, error) {
	if errs := validation.Validate(
		validation.MaxLength("transactionType", strings.TrimSpace(form.TransactionType), maxFieldLength),
		validation.MaxLength("assetType", strings.TrimSpace(form.AssetType), maxFieldLength),
		validation.MaxLength("value", strings.TrimSpace(form.Value), maxFieldLength),
		validation.MaxLength("settlementDate", strings.TrimSpace(form.SettlementDate), maxFieldLength),
		validation.MaxLength("counterpartyId", strings.TrimSpace(form.CounterpartyID), maxFieldLength),
		validation.MaxLength("jurisdiction", strings.TrimSpace(form.Jurisdiction), maxFieldLength),
	); len(errs) > 0 {
		return ContractConfig{}, errs
	}

	form.TransactionType = validation.SanitizeString(form.TransactionType, maxFieldLength)
	form.AssetType = validation.SanitizeString(form.AssetType, maxFieldLength)
	form.Value = validation.SanitizeString(form.Value, maxFieldLength)
	form.SettlementDate = validation.SanitizeString(form.SettlementDate, maxFieldLength)
	form.CounterpartyID = validation.SanitizeString(form.CounterpartyID, maxFieldLength)
	form.Jurisdiction = validation.SanitizeString(form.Jurisdiction, maxFieldLength)

	errs := validation.Struct(form)
	errs = append(errs, validation.Validate(
		validation.Selected("transactionType", form.TransactionType),
		validation.Selected("assetType", form.AssetType),
		validation.Selected("jurisdiction", form.Jurisdiction),
	)...)

	var value float64
	if form.Value != "" {
		v, err := strconv.ParseFloat(form.Value, 64)
		switch {
		case err != nil:
			errs = append(errs, validation.ValidationError{Field: "value", Message: "must be a number"})
		case v < 0:
			errs = append(errs, validation.ValidationError{Field: "value", Message: "must not be negative"})
		default:
			if ferr := validation.Finite("value", v)(); ferr != nil {
				errs = append(errs, *ferr)
			}
			value = v
		}
	}
	if form.SettlementDate != "" {
		if _, err := records.ParseDate(form.SettlementDate); err != nil {
			errs = append(errs, validation.ValidationError{Field: "settlementDate", Message: "must be an ISO date (YYYY-MM-DD)"})
		}
	}
	if form.Jurisdiction != "" && NormalizeJurisdiction(form.Jurisdiction) == "" {
		errs = append(errs, validation.ValidationError{Field: "jurisdiction", Message: "is required"})
	}
	if len(errs) > 0 {
		return ContractConfig{}, errs
	}

	return ContractConfig{
		TransactionType: NormalizeKey(form.TransactionType),
		AssetType:       NormalizeKey(form.AssetType),
		Value:           value,
		SettlementDate:  form.SettlementDate,
		CounterpartyID:  form.CounterpartyID,
		Jurisdiction:    NormalizeJurisdiction(form.Jurisdiction),
	}, nil
}

// BuildAuditPayload pairs generated contract code with its configuration.
func BuildAuditPayload(contractCode string, cfg ContractConfig) AuditRequest {
	return AuditRequest{ContractCode: contractCode, Config: cfg}
}
