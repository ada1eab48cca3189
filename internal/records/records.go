// Package records defines the plain record types reviewed by the dashboard:
// wallets, transactions, identity verifications and regulation updates.
//
// Records are produced once per analysis cycle and never mutated; a new
// cycle replaces the whole set.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/compliance-dashboard/internal/validation"
)

// Score bounds. Every risk score in the system lives in [MinScore, MaxScore].
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// WalletID is an address-like identifier. It is not validated.
type WalletID = string

// Wallet is a wallet with its current risk score.
type Wallet struct {
	ID        WalletID `json:"id"`
	RiskScore float64  `json:"riskScore"`
}

// Transaction is a single observed transfer attributed to a wallet.
type Transaction struct {
	Wallet    WalletID        `json:"wallet"`
	Amount    decimal.Decimal `json:"amount"`
	RiskScore float64         `json:"riskScore"`
}

// VerificationEntry is the result of a zero-knowledge identity proof check.
// One entry per wallet; no history is kept.
type VerificationEntry struct {
	Wallet   WalletID `json:"wallet"`
	Verified bool     `json:"verified"`
}

// ContractHealth summarises the deployed compliance contract.
type ContractHealth struct {
	GasUsage      int64   `json:"gasUsage"`
	SecurityScore float64 `json:"securityScore"`
	Complexity    int     `json:"complexity"`
}

// RegulationStatus is the organisation's standing against a regulation.
type RegulationStatus string

const (
	RegulationCompliant         RegulationStatus = "Compliant"
	RegulationPendingCompliance RegulationStatus = "Pending Compliance"
	RegulationActionRequired    RegulationStatus = "Action Required"
)

// ParseRegulationStatus accepts the display label or its snake_case key.
func ParseRegulationStatus(s string) (RegulationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compliant":
		return RegulationCompliant, nil
	case "pending compliance", "pending_compliance":
		return RegulationPendingCompliance, nil
	case "action required", "action_required":
		return RegulationActionRequired, nil
	}
	return "", &validation.ValidationError{Field: "status", Message: fmt.Sprintf("unknown regulation status %q", s)}
}

// RegulationEntry is a regulatory update and its compliance status.
type RegulationEntry struct {
	Name          string           `json:"regulation"`
	EffectiveDate Date             `json:"effectiveDate"`
	Status        RegulationStatus `json:"status"`
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the date for the given year, month and day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// ClampScore returns score limited to [MinScore, MaxScore].
// NaN and infinities are rejected instead of clamped.
func ClampScore(score float64) (float64, error) {
	if err := validation.Finite("riskScore", score)(); err != nil {
		return 0, err
	}
	if score < MinScore {
		return MinScore, nil
	}
	if score > MaxScore {
		return MaxScore, nil
	}
	return score, nil
}

// NewWallet builds a wallet with its score clamped at the boundary.
func NewWallet(id WalletID, score float64) (Wallet, error) {
	s, err := ClampScore(score)
	if err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, err)
	}
	return Wallet{ID: id, RiskScore: s}, nil
}

// NewTransaction builds a transaction. Negative amounts are rejected and the
// score is clamped.
func NewTransaction(wallet WalletID, amount decimal.Decimal, score float64) (Transaction, error) {
	if amount.IsNegative() {
		return Transaction{}, &validation.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	s, err := ClampScore(score)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction for %s: %w", wallet, err)
	}
	return Transaction{Wallet: wallet, Amount: amount, RiskScore: s}, nil
}
