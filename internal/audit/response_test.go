package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/risk"
)

func TestParseAuditResponse(t *testing.T) {
	a, err := ParseAuditResponse([]byte(`{"summary":{"overallHealth":82,"riskLevel":"High"}}`))
	require.NoError(t, err)

	assert.Equal(t, 82.0, a.RiskScore)
	assert.Equal(t, risk.StatusHighRisk, a.Status)
	assert.Equal(t, "High", a.StatusLabel)
	require.Len(t, a.RuleOutcomes, 2)
	assert.False(t, a.RuleOutcomes[0].Passed)
	assert.False(t, a.RuleOutcomes[1].Passed)
}

func TestParseAuditResponse_LowScore(t *testing.T) {
	a, err := ParseAuditResponse([]byte(`{"summary":{"overallHealth":40,"riskLevel":"Low"}}`))
	require.NoError(t, err)
	assert.Equal(t, risk.StatusCompliant, a.Status)
	assert.Empty(t, a.Failed())
}

func TestParseAuditResponse_ClampsScore(t *testing.T) {
	a, err := ParseAuditResponse([]byte(`{"summary":{"overallHealth":140,"riskLevel":"Critical"}}`))
	require.NoError(t, err)
	assert.Equal(t, 100.0, a.RiskScore)
}

func TestParseAuditResponse_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"no summary", `{}`, "summary.overallHealth"},
		{"no health", `{"summary":{"riskLevel":"Low"}}`, "summary.overallHealth"},
		{"no level", `{"summary":{"overallHealth":10}}`, "summary.riskLevel"},
		{"blank level", `{"summary":{"overallHealth":10,"riskLevel":"  "}}`, "summary.riskLevel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAuditResponse([]byte(tt.body))
			var cv *ContractViolation
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, tt.field, cv.Field)
			assert.False(t, IsServiceError(err))
		})
	}
}

func TestParseAuditResponse_Malformed(t *testing.T) {
	_, err := ParseAuditResponse([]byte(`<html>bad gateway</html>`))
	assert.True(t, IsServiceError(err))
	assert.False(t, IsContractViolation(err))
}

func TestParseTemplateResponse(t *testing.T) {
	code, err := ParseTemplateResponse([]byte(`{"contractCode":"pragma solidity ^0.8.0;"}`))
	require.NoError(t, err)
	assert.Equal(t, "pragma solidity ^0.8.0;", code)

	_, err = ParseTemplateResponse([]byte(`{"code":"x"}`))
	assert.True(t, IsContractViolation(err))

	_, err = ParseTemplateResponse([]byte(`nope`))
	assert.True(t, IsServiceError(err))
}
