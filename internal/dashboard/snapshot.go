// Package dashboard assembles the compliance dashboard view and serves it
// over HTTP.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbd888/compliance-dashboard/internal/alerts"
	"github.com/mbd888/compliance-dashboard/internal/analysis"
	"github.com/mbd888/compliance-dashboard/internal/datasource"
	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/idgen"
	"github.com/mbd888/compliance-dashboard/internal/metrics"
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/risk"
)

// Chart is the wallet risk bar chart: one bar per wallet.
type Chart struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors"`
}

// TransactionRow is a transaction with its display tier.
type TransactionRow struct {
	records.Transaction
	Tier risk.Tier `json:"tier"`
}

// Snapshot is one complete, immutable dashboard view. A new cycle builds a
// new Snapshot; nothing mutates an existing one.
type Snapshot struct {
	ID             string                      `json:"id"`
	GeneratedAt    time.Time                   `json:"generatedAt"`
	Chart          Chart                       `json:"chart"`
	Transactions   []TransactionRow            `json:"transactions"`
	Alerts         []alerts.Alert              `json:"alerts"`
	Verifications  []records.VerificationEntry `json:"verifications"`
	VerifiedCount  int                         `json:"verifiedCount"`
	Regulations    []records.RegulationEntry   `json:"regulations"`
	Graph          graph.Graph                 `json:"graph"`
	Assessment     *analysis.Result            `json:"assessment"`
	ContractHealth *records.ContractHealth     `json:"contractHealth"`
}

// Builder produces snapshots from a data source.
type Builder struct {
	source    datasource.DataSource
	last      func() *analysis.Result
	threshold float64
	now       func() time.Time
	logger    *slog.Logger

	mu      sync.RWMutex
	current *Snapshot
}

// NewBuilder creates a snapshot builder. last supplies the most recent
// assessment and may be nil.
func NewBuilder(source datasource.DataSource, last func() *analysis.Result, alertThreshold float64, logger *slog.Logger) *Builder {
	if last == nil {
		last = func() *analysis.Result { return nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		source:    source,
		last:      last,
		threshold: alertThreshold,
		now:       time.Now,
		logger:    logger,
	}
}

// Current returns the last successfully built snapshot, or nil.
func (b *Builder) Current() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Build fetches every record set concurrently and derives a new snapshot.
// On error the current snapshot is left as it was.
func (b *Builder) Build(ctx context.Context) (*Snapshot, error) {
	var (
		wallets       []records.Wallet
		txs           []records.Transaction
		verifications []records.VerificationEntry
		regulations   []records.RegulationEntry
		edges         []graph.Edge
		health        *records.ContractHealth
	)

	start := time.Now()
	defer func() { metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds()) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		wallets, err = b.source.FetchWallets(gctx)
		return wrap("wallets", err)
	})
	g.Go(func() (err error) {
		txs, err = b.source.FetchTransactions(gctx)
		return wrap("transactions", err)
	})
	g.Go(func() (err error) {
		verifications, err = b.source.FetchVerifications(gctx)
		return wrap("verifications", err)
	})
	g.Go(func() (err error) {
		regulations, err = b.source.FetchRegulations(gctx)
		return wrap("regulations", err)
	})
	g.Go(func() (err error) {
		edges, err = b.source.FetchEdges(gctx)
		return wrap("edges", err)
	})
	g.Go(func() error {
		h, err := b.source.FetchContractHealth(gctx)
		if errors.Is(err, datasource.ErrNotFound) {
			return nil
		}
		if err != nil {
			return wrap("contract health", err)
		}
		health = &h
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		b.logger.Error("snapshot build failed", "error", err)
		return nil, err
	}

	snap := &Snapshot{
		ID:             idgen.WithPrefix("snap_"),
		GeneratedAt:    b.now().UTC(),
		Chart:          chartOf(wallets),
		Transactions:   rowsOf(txs),
		Alerts:         alerts.Structured(txs, b.threshold),
		Verifications:  verifications,
		VerifiedCount:  countVerified(verifications),
		Regulations:    regulations,
		Graph:          graph.Build(wallets, edges),
		Assessment:     b.last(),
		ContractHealth: health,
	}

	b.mu.Lock()
	b.current = snap
	b.mu.Unlock()
	metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	return snap, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fetch %s: %w", what, err)
}

func chartOf(wallets []records.Wallet) Chart {
	c := Chart{
		Labels: make([]string, len(wallets)),
		Values: make([]float64, len(wallets)),
		Colors: make([]string, len(wallets)),
	}
	for i, w := range wallets {
		c.Labels[i] = w.ID
		c.Values[i] = w.RiskScore
		c.Colors[i] = risk.TierOf(w.RiskScore).Color()
	}
	return c
}

func rowsOf(txs []records.Transaction) []TransactionRow {
	rows := make([]TransactionRow, len(txs))
	for i, tx := range txs {
		rows[i] = TransactionRow{Transaction: tx, Tier: risk.TierOf(tx.RiskScore)}
	}
	return rows
}

func countVerified(v []records.VerificationEntry) int {
	n := 0
	for _, e := range v {
		if e.Verified {
			n++
		}
	}
	return n
}
