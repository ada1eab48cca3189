package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/alerts"
	"github.com/mbd888/compliance-dashboard/internal/analysis"
	"github.com/mbd888/compliance-dashboard/internal/datasource"
	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// failingSource fails one fetch and otherwise serves the sample data.
type failingSource struct {
	*datasource.MemorySource
	err error
}

func (f failingSource) FetchEdges(ctx context.Context) ([]graph.Edge, error) {
	return nil, f.err
}

func TestBuild_SampleData(t *testing.T) {
	b := NewBuilder(datasource.SampleSource(), nil, alerts.DefaultThreshold, nil)

	snap, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.ID)
	assert.False(t, snap.GeneratedAt.IsZero())

	assert.Equal(t, []string{"0x123", "0x456", "0x789", "0xABC", "0xDEF"}, snap.Chart.Labels)
	assert.Equal(t, []float64{90, 40, 95, 20, 85}, snap.Chart.Values)
	assert.Equal(t, []string{"red", "green", "red", "green", "red"}, snap.Chart.Colors)

	require.Len(t, snap.Transactions, 4)
	assert.Equal(t, risk.TierLow, snap.Transactions[0].Tier)
	assert.Equal(t, risk.TierHigh, snap.Transactions[1].Tier)

	require.Len(t, snap.Alerts, 2)
	assert.Equal(t, "High-Risk Transaction Detected: Wallet 0xBBB - Amount: $30000", snap.Alerts[0].Message)
	assert.Equal(t, "High-Risk Transaction Detected: Wallet 0xDDD - Amount: $60000", snap.Alerts[1].Message)

	assert.Len(t, snap.Verifications, 4)
	assert.Equal(t, 2, snap.VerifiedCount)
	assert.Len(t, snap.Regulations, 3)

	assert.Len(t, snap.Graph.Nodes, 5)
	assert.Len(t, snap.Graph.Links, 4)
	assert.Empty(t, snap.Graph.Dangling())

	assert.Nil(t, snap.Assessment)
	require.NotNil(t, snap.ContractHealth)
	assert.Equal(t, int64(50000), snap.ContractHealth.GasUsage)

	assert.Same(t, snap, b.Current())
}

func TestBuild_IncludesLastAssessment(t *testing.T) {
	a, err := risk.Classify(75, risk.DefaultRules())
	require.NoError(t, err)
	res := &analysis.Result{Assessment: a, Source: analysis.PathLocal}

	b := NewBuilder(datasource.SampleSource(), func() *analysis.Result { return res }, alerts.DefaultThreshold, nil)
	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, snap.Assessment)
}

func TestBuild_ErrorKeepsCurrent(t *testing.T) {
	src := &failingSource{MemorySource: datasource.SampleSource()}
	b := NewBuilder(src, nil, alerts.DefaultThreshold, nil)

	first, err := b.Build(context.Background())
	require.NoError(t, err)

	src.err = errors.New("connection refused")
	_, err = b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch edges")
	assert.Same(t, first, b.Current())
}

func TestBuild_MissingContractHealth(t *testing.T) {
	src := datasource.NewMemorySource()
	require.NoError(t, src.SetTransactions([]records.Transaction{
		{Wallet: "0x1", Amount: decimal.NewFromInt(10), RiskScore: 71},
	}))
	b := NewBuilder(src, nil, 70, nil)

	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.ContractHealth)
	assert.Len(t, snap.Alerts, 1)
	assert.Empty(t, snap.Chart.Labels)
	assert.NotNil(t, snap.Chart.Labels)
}

func TestBuild_ThresholdIsConfigurable(t *testing.T) {
	b := NewBuilder(datasource.SampleSource(), nil, 30, nil)
	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Alerts, 3)
}
