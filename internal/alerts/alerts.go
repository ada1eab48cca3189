// Package alerts turns high-risk transactions into human-readable alerts.
package alerts

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// DefaultThreshold is the score above which a transaction raises an alert.
const DefaultThreshold = risk.HighRiskThreshold

var generatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "compliance",
	Name:      "alerts_generated_total",
	Help:      "Total high-risk transaction alerts generated.",
})

func init() {
	prometheus.MustRegister(generatedTotal)
}

// Alert is a structured high-risk transaction alert.
type Alert struct {
	Wallet    records.WalletID `json:"wallet"`
	Amount    decimal.Decimal  `json:"amount"`
	RiskScore float64          `json:"riskScore"`
	Message   string           `json:"message"`
}

// Format renders the alert message for a transaction.
func Format(tx records.Transaction) string {
	return fmt.Sprintf("High-Risk Transaction Detected: Wallet %s - Amount: $%s", tx.Wallet, tx.Amount.String())
}

// Structured returns one alert per transaction whose score is strictly above
// threshold, preserving input order. The result is never nil.
func Structured(txs []records.Transaction, threshold float64) []Alert {
	out := make([]Alert, 0)
	for _, tx := range txs {
		if tx.RiskScore <= threshold {
			continue
		}
		out = append(out, Alert{
			Wallet:    tx.Wallet,
			Amount:    tx.Amount,
			RiskScore: tx.RiskScore,
			Message:   Format(tx),
		})
	}
	generatedTotal.Add(float64(len(out)))
	return out
}

// Generate returns the alert messages for txs above threshold, in input order.
func Generate(txs []records.Transaction, threshold float64) []string {
	structured := Structured(txs, threshold)
	msgs := make([]string, len(structured))
	for i, a := range structured {
		msgs[i] = a.Message
	}
	return msgs
}
