package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/okian/profitshare/internal/domain/model"
	"github.com/okian/profitshare/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultMaxOpenConns = 1
	defaultMaxRuns      = 1000
	monthLayout         = "2006-01-02"
)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db           *sql.DB
	maxOpenConns int
	maxRuns      int
}

// NewSQLiteStore opens the database at dbPath, creating parent directories
// and running migrations.
func NewSQLiteStore(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		maxOpenConns: defaultMaxOpenConns,
		maxRuns:      defaultMaxRuns,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTable replaces the cached observations for source.
func (s *SQLiteStore) SaveTable(ctx context.Context, source string, table *model.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE source = ?", source); err != nil {
		return fmt.Errorf("failed to clear report: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO reports (source, imported_at) VALUES (?, ?)",
		source, time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO observations (source, month, metric, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare observation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range table.Observations() {
		if _, err := stmt.ExecContext(ctx, source, o.Month.Format(monthLayout), o.Metric, o.Value); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// LoadTable returns the cached table for source.
func (s *SQLiteStore) LoadTable(ctx context.Context, source string) (*model.Table, error) {
	var importedAt int64
	err := s.db.QueryRowContext(ctx, "SELECT imported_at FROM reports WHERE source = ?", source).Scan(&importedAt)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordCacheMiss()
		return nil, fmt.Errorf("report %s: %w", source, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT month, metric, value FROM observations WHERE source = ?", source)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	table := model.NewTable()
	for rows.Next() {
		var month, metric string
		var value float64
		if err := rows.Scan(&month, &metric, &value); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		m, err := time.Parse(monthLayout, month)
		if err != nil {
			return nil, fmt.Errorf("bad cached month %q: %w", month, err)
		}
		table.Set(m, metric, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}

	metrics.RecordCacheHit()
	return table, nil
}

// SaveRun persists a simulation summary. A missing ID is generated.
func (s *SQLiteStore) SaveRun(ctx context.Context, summary model.Summary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	} else if _, err := uuid.Parse(summary.ID); err != nil {
		return fmt.Errorf("%w: id %q", ErrInvalidRun, summary.ID)
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, months, universes, seed, required_profit, target_unreachable,
		 mean_profit, probability_profit_on_target) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.CreatedAt.UnixNano(), summary.Months, summary.Universes, summary.Seed,
		summary.RequiredProfit, summary.TargetUnreachable, summary.MeanProfit, summary.ProbabilityProfitOnTarget,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, p := range summary.People {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_people (run_id, position, name, partner, target_pay, mean_pay,
			 p05_pay, p50_pay, p95_pay, probability_on_target) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.ID, i, p.Name, p.Partner, p.TargetPay, p.MeanPay,
			p.P05Pay, p.P50Pay, p.P95Pay, p.ProbabilityOnTarget,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run person: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `id, created_at, months, universes, seed, required_profit, target_unreachable,
	mean_profit, probability_profit_on_target`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.Summary, error) {
	var s model.Summary
	var createdAt int64
	err := row.Scan(&s.ID, &createdAt, &s.Months, &s.Universes, &s.Seed,
		&s.RequiredProfit, &s.TargetUnreachable, &s.MeanProfit, &s.ProbabilityProfitOnTarget)
	if err != nil {
		return model.Summary{}, err
	}
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	return s, nil
}

// GetRun returns a run with its people in roster order.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Summary, error) {
	summary, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Summary{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, partner, target_pay, mean_pay, p05_pay, p50_pay, p95_pay, probability_on_target
		 FROM run_people WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to query run people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary.People = []model.PersonSummary{}
	for rows.Next() {
		var p model.PersonSummary
		if err := rows.Scan(&p.Name, &p.Partner, &p.TargetPay, &p.MeanPay,
			&p.P05Pay, &p.P50Pay, &p.P95Pay, &p.ProbabilityOnTarget); err != nil {
			return model.Summary{}, fmt.Errorf("failed to scan run person: %w", err)
		}
		summary.People = append(summary.People, p)
	}
	if err := rows.Err(); err != nil {
		return model.Summary{}, fmt.Errorf("failed to read run people: %w", err)
	}
	return summary, nil
}

// ListRuns returns run headers, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Summary, error) {
	if limit <= 0 || limit > s.maxRuns {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []model.Summary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
