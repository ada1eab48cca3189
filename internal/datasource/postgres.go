package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mbd888/compliance-dashboard/internal/graph"
	"github.com/mbd888/compliance-dashboard/internal/records"
	"github.com/mbd888/compliance-dashboard/internal/retry"
)

// PostgresSource reads dashboard records from PostgreSQL.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource wraps an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Open connects to the database at dsn, retrying the initial ping while the
// server comes up.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	attempt := 0
	err = retry.Do(ctx, 5, 500*time.Millisecond, func() error {
		attempt++
		pingErr := db.PingContext(ctx)
		if pingErr != nil {
			logger.Warn("database not ready", "attempt", attempt, "error", pingErr)
		}
		return pingErr
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func (s *PostgresSource) FetchWallets(ctx context.Context) ([]records.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, risk_score
		FROM wallets
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []records.Wallet{}
	for rows.Next() {
		var (
			id    string
			score float64
		)
		if err := rows.Scan(&id, &score); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		w, err := records.NewWallet(id, score)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

func (s *PostgresSource) FetchTransactions(ctx context.Context) ([]records.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, amount, risk_score
		FROM transactions
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []records.Transaction{}
	for rows.Next() {
		var (
			wallet string
			amount decimal.Decimal
			score  float64
		)
		if err := rows.Scan(&wallet, &amount, &score); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx, err := records.NewTransaction(wallet, amount, score)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func (s *PostgresSource) FetchVerifications(ctx context.Context) ([]records.VerificationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_id, verified
		FROM verifications
		ORDER BY position, wallet_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []records.VerificationEntry{}
	for rows.Next() {
		var v records.VerificationEntry
		if err := rows.Scan(&v.Wallet, &v.Verified); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

func (s *PostgresSource) FetchRegulations(ctx context.Context) ([]records.RegulationEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, effective_date, status
		FROM regulations
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query regulations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []records.RegulationEntry{}
	for rows.Next() {
		var (
			name      string
			effective time.Time
			status    string
		)
		if err := rows.Scan(&name, &effective, &status); err != nil {
			return nil, fmt.Errorf("failed to scan regulation: %w", err)
		}
		st, err := records.ParseRegulationStatus(status)
		if err != nil {
			return nil, fmt.Errorf("regulation %q: %w", name, err)
		}
		result = append(result, records.RegulationEntry{
			Name:          name,
			EffectiveDate: records.NewDate(effective.Year(), effective.Month(), effective.Day()),
			Status:        st,
		})
	}
	return result, rows.Err()
}

func (s *PostgresSource) FetchEdges(ctx context.Context) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id
		FROM wallet_edges
		ORDER BY position, source_id, target_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		if err := rows.Scan(&e.Source, &e.Target); err != nil {
			return nil, fmt.Errorf("failed to scan wallet edge: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *PostgresSource) FetchContractHealth(ctx context.Context) (records.ContractHealth, error) {
	var h records.ContractHealth
	err := s.db.QueryRowContext(ctx, `
		SELECT gas_usage, security_score, complexity
		FROM contract_health
		ORDER BY recorded_at DESC
		LIMIT 1
	`).Scan(&h.GasUsage, &h.SecurityScore, &h.Complexity)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ContractHealth{}, ErrNotFound
	}
	if err != nil {
		return records.ContractHealth{}, fmt.Errorf("failed to query contract health: %w", err)
	}
	return h, nil
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
