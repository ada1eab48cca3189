// Package datasource supplies the record sets a dashboard snapshot is built
// from. MemorySource serves fixed sample data; PostgresSource reads the same
// sets from the tables created by migrations/.
package datasource

import (
	"context"
	"errors"

	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/records"
)

// ErrNotFound is returned when a singleton record (contract health) has not
// been recorded yet.
var ErrNotFound = errors.New("datasource: not found")

// DataSource is a read-only provider of dashboard records. Implementations
// must be safe for concurrent use; the snapshot builder calls every method in
// parallel.
type DataSource interface {
	FetchWallets(ctx context.Context) ([]records.Wallet, error)
	FetchTransactions(ctx context.Context) ([]records.Transaction, error)
	FetchVerifications(ctx context.Context) ([]records.VerificationEntry, error)
	FetchRegulations(ctx context.Context) ([]records.RegulationEntry, error)
	FetchEdges(ctx context.Context) ([]graph.Edge, error)
	FetchContractHealth(ctx context.Context) (records.ContractHealth, error)
	Ping(ctx context.Context) error
}
