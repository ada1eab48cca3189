// Package graph shapes wallets and their declared relationships into a
// node/link structure for force-directed rendering.
//
// It is a pass-through adapter, not a graph algorithm: no cycle detection,
// weighting or clustering. Links may reference wallets that are not in the
// node set; such dangling links are kept and consumers skip them when drawing.
package graph

import (
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// Node is a wallet projected for rendering.
type Node struct {
	ID    records.WalletID `json:"id"`
	Risk  float64          `json:"risk"`
	Tier  risk.Tier        `json:"tier"`
	Color string           `json:"color"`
}

// HighRisk reports whether the node renders in the high-risk tier.
func (n Node) HighRisk() bool {
	return n.Tier == risk.TierHigh
}

// Edge is a declared relationship between two wallets.
type Edge struct {
	Source records.WalletID `json:"source"`
	Target records.WalletID `json:"target"`
}

// Graph is one immutable snapshot of nodes and links.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Edge `json:"links"`

	index map[records.WalletID]int
}

// Build projects wallets into nodes and passes edges through unchanged.
//
// Node order follows the first appearance of each wallet id. When an id
// repeats, the later wallet overwrites the earlier one in place.
func Build(wallets []records.Wallet, edges []Edge) Graph {
	g := Graph{
		Nodes: make([]Node, 0, len(wallets)),
		Links: make([]Edge, len(edges)),
		index: make(map[records.WalletID]int, len(wallets)),
	}
	copy(g.Links, edges)

	for _, w := range wallets {
		tier := risk.TierOf(w.RiskScore)
		n := Node{ID: w.ID, Risk: w.RiskScore, Tier: tier, Color: tier.Color()}
		if i, ok := g.index[w.ID]; ok {
			g.Nodes[i] = n
			continue
		}
		g.index[w.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}
	return g
}

// Node looks up a node by wallet id.
func (g Graph) Node(id records.WalletID) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

func (g Graph) resolves(e Edge) bool {
	_, src := g.index[e.Source]
	_, dst := g.index[e.Target]
	return src && dst
}

// Renderable returns the links whose endpoints both exist, in link order.
func (g Graph) Renderable() []Edge {
	out := make([]Edge, 0, len(g.Links))
	for _, e := range g.Links {
		if g.resolves(e) {
			out = append(out, e)
		}
	}
	return out
}

// Dangling returns the links with at least one missing endpoint.
func (g Graph) Dangling() []Edge {
	out := make([]Edge, 0)
	for _, e := range g.Links {
		if !g.resolves(e) {
			out = append(out, e)
		}
	}
	return out
}
