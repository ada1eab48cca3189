package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

func TestBuild_TwoWalletScenario(t *testing.T) {
	wallets := []records.Wallet{{ID: "0x123", RiskScore: 90}, {ID: "0x456", RiskScore: 40}}
	edges := []Edge{{Source: "0x123", Target: "0x456"}}

	g := Build(wallets, edges)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Links, 1)

	high, ok := g.Node("0x123")
	require.True(t, ok)
	assert.True(t, high.HighRisk())
	assert.Equal(t, "red", high.Color)

	low, ok := g.Node("0x456")
	require.True(t, ok)
	assert.False(t, low.HighRisk())
	assert.Equal(t, "green", low.Color)
	assert.Equal(t, risk.TierLow, low.Tier)
}

func TestBuild_PreservesNodeOrder(t *testing.T) {
	wallets := []records.Wallet{
		{ID: "0xDEF", RiskScore: 85},
		{ID: "0x123", RiskScore: 90},
		{ID: "0xABC", RiskScore: 20},
	}
	g := Build(wallets, nil)

	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"0xDEF", "0x123", "0xABC"}, ids)
	assert.NotNil(t, g.Links)
	assert.Empty(t, g.Links)
}

func TestBuild_DuplicateIDLastWriteWins(t *testing.T) {
	wallets := []records.Wallet{
		{ID: "0x123", RiskScore: 90},
		{ID: "0x456", RiskScore: 40},
		{ID: "0x123", RiskScore: 10},
	}
	g := Build(wallets, nil)

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "0x123", g.Nodes[0].ID)
	assert.Equal(t, 10.0, g.Nodes[0].Risk)
	assert.False(t, g.Nodes[0].HighRisk())
	assert.Equal(t, "0x456", g.Nodes[1].ID)
}

func TestBuild_LinksArePassedThroughLosslessly(t *testing.T) {
	edges := []Edge{
		{Source: "0x123", Target: "0x456"},
		{Source: "0x123", Target: "0xMISSING"},
		{Source: "0xGHOST", Target: "0x456"},
		{Source: "0x123", Target: "0x456"},
	}
	g := Build([]records.Wallet{{ID: "0x123", RiskScore: 90}, {ID: "0x456", RiskScore: 40}}, edges)

	assert.Equal(t, edges, g.Links)

	// Mutating the input afterwards must not change the snapshot.
	edges[0].Target = "0xCHANGED"
	assert.Equal(t, "0x456", g.Links[0].Target)
}

func TestGraph_RenderableAndDangling(t *testing.T) {
	g := Build(
		[]records.Wallet{{ID: "a", RiskScore: 1}, {ID: "b", RiskScore: 99}},
		[]Edge{{"a", "b"}, {"a", "zz"}, {"yy", "b"}, {"b", "a"}},
	)

	assert.Equal(t, []Edge{{"a", "b"}, {"b", "a"}}, g.Renderable())
	assert.Equal(t, []Edge{{"a", "zz"}, {"yy", "b"}}, g.Dangling())
}

func TestGraph_NodeMissing(t *testing.T) {
	g := Build(nil, []Edge{{"x", "y"}})
	_, ok := g.Node("x")
	assert.False(t, ok)
	assert.Empty(t, g.Renderable())
	assert.Len(t, g.Dangling(), 1)
}

func TestGraph_JSONShape(t *testing.T) {
	g := Build([]records.Wallet{{ID: "0x123", RiskScore: 90}}, []Edge{{"0x123", "0x456"}})
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [{"id":"0x123","risk":90,"tier":"high","color":"red"}],
		"links": [{"source":"0x123","target":"0x456"}]
	}`, string(b))
}
