package datasource

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/records"
)

// MemorySource holds record sets in memory. Fetches return copies, so callers
// may not alter the source through a returned slice.
type MemorySource struct {
	mu            sync.RWMutex
	wallets       []records.Wallet
	transactions  []records.Transaction
	verifications []records.VerificationEntry
	regulations   []records.RegulationEntry
	edges         []graph.Edge
	health        *records.ContractHealth
}

// NewMemorySource returns an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// SampleSource returns a source preloaded with the demonstration data set.
func SampleSource() *MemorySource {
	m := NewMemorySource()
	mustLoad(m.SetWallets([]records.Wallet{
		{ID: "0x123", RiskScore: 90},
		{ID: "0x456", RiskScore: 40},
		{ID: "0x789", RiskScore: 95},
		{ID: "0xABC", RiskScore: 20},
		{ID: "0xDEF", RiskScore: 85},
	}))
	mustLoad(m.SetTransactions([]records.Transaction{
		{Wallet: "0xAAA", Amount: decimal.NewFromInt(15000), RiskScore: 35},
		{Wallet: "0xBBB", Amount: decimal.NewFromInt(30000), RiskScore: 80},
		{Wallet: "0xCCC", Amount: decimal.NewFromInt(5000), RiskScore: 20},
		{Wallet: "0xDDD", Amount: decimal.NewFromInt(60000), RiskScore: 90},
	}))
	m.SetVerifications([]records.VerificationEntry{
		{Wallet: "0xAAA", Verified: true},
		{Wallet: "0xBBB", Verified: false},
		{Wallet: "0xCCC", Verified: true},
		{Wallet: "0xDDD", Verified: false},
	})
	m.SetRegulations([]records.RegulationEntry{
		{Name: "FATF Travel Rule Update", EffectiveDate: records.NewDate(2024, time.June, 15), Status: records.RegulationPendingCompliance},
		{Name: "GDPR Data Privacy Enhancement", EffectiveDate: records.NewDate(2024, time.May, 10), Status: records.RegulationCompliant},
		{Name: "SEC Crypto Custody Rule", EffectiveDate: records.NewDate(2024, time.July, 1), Status: records.RegulationActionRequired},
	})
	m.SetEdges([]graph.Edge{
		{Source: "0x123", Target: "0x456"},
		{Source: "0x123", Target: "0x789"},
		{Source: "0x456", Target: "0xABC"},
		{Source: "0xDEF", Target: "0x789"},
	})
	m.SetContractHealth(records.ContractHealth{GasUsage: 50000, SecurityScore: 85, Complexity: 3})
	return m
}

func mustLoad(err error) {
	if err != nil {
		panic(err)
	}
}

// SetWallets replaces the wallet set. Scores are clamped to [0,100]; a
// non-finite score rejects the whole set and leaves the source unchanged.
func (m *MemorySource) SetWallets(w []records.Wallet) error {
	out := make([]records.Wallet, 0, len(w))
	for _, in := range w {
		wallet, err := records.NewWallet(in.ID, in.RiskScore)
		if err != nil {
			return err
		}
		out = append(out, wallet)
	}
	m.mu.Lock()
	m.wallets = out
	m.mu.Unlock()
	return nil
}

// SetTransactions replaces the transaction set, normalizing each entry the
// same way SetWallets does. Negative amounts are rejected.
func (m *MemorySource) SetTransactions(t []records.Transaction) error {
	out := make([]records.Transaction, 0, len(t))
	for _, in := range t {
		tx, err := records.NewTransaction(in.Wallet, in.Amount, in.RiskScore)
		if err != nil {
			return err
		}
		out = append(out, tx)
	}
	m.mu.Lock()
	m.transactions = out
	m.mu.Unlock()
	return nil
}

// SetVerifications replaces the verification set.
func (m *MemorySource) SetVerifications(v []records.VerificationEntry) {
	m.mu.Lock()
	m.verifications = slices.Clone(v)
	m.mu.Unlock()
}

// SetRegulations replaces the regulation set.
func (m *MemorySource) SetRegulations(r []records.RegulationEntry) {
	m.mu.Lock()
	m.regulations = slices.Clone(r)
	m.mu.Unlock()
}

// SetEdges replaces the declared wallet relationships.
func (m *MemorySource) SetEdges(e []graph.Edge) {
	m.mu.Lock()
	m.edges = slices.Clone(e)
	m.mu.Unlock()
}

// SetContractHealth records the contract health metrics.
func (m *MemorySource) SetContractHealth(h records.ContractHealth) {
	m.mu.Lock()
	m.health = &h
	m.mu.Unlock()
}

func (m *MemorySource) FetchWallets(ctx context.Context) ([]records.Wallet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNonNil(m.wallets), nil
}

func (m *MemorySource) FetchTransactions(ctx context.Context) ([]records.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNonNil(m.transactions), nil
}

func (m *MemorySource) FetchVerifications(ctx context.Context) ([]records.VerificationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNonNil(m.verifications), nil
}

func (m *MemorySource) FetchRegulations(ctx context.Context) ([]records.RegulationEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNonNil(m.regulations), nil
}

func (m *MemorySource) FetchEdges(ctx context.Context) ([]graph.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneNonNil(m.edges), nil
}

func (m *MemorySource) FetchContractHealth(ctx context.Context) (records.ContractHealth, error) {
	if err := ctx.Err(); err != nil {
		return records.ContractHealth{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.health == nil {
		return records.ContractHealth{}, ErrNotFound
	}
	return *m.health, nil
}

// Ping always succeeds.
func (m *MemorySource) Ping(ctx context.Context) error {
	return ctx.Err()
}

func cloneNonNil[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
