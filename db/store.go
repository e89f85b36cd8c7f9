package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yashasviy/payroll-bridge/models"
)

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 20

// MaxListLimit is the most runs ListRuns returns.
const MaxListLimit = 200

// Store keeps the history of bulk payroll runs in Postgres.
// Contract state itself is never stored here.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordRun writes a run and its per-employee payments in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *models.PayrollRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op if already committed

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payroll_runs (id, started_at, finished_at, total, successful, failed) VALUES ($1, $2, $3, $4, $5, $6)",
		run.ID, run.StartedAt, run.FinishedAt, run.Summary.Total, run.Summary.Successful, run.Summary.Failed,
	); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, p := range run.Payments {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO payroll_payments (run_id, position, employee_address, status, output, error) VALUES ($1, $2, $3, $4, $5, $6)",
			run.ID, i, p.Address, string(p.Status), p.Output, p.Error,
		); err != nil {
			return fmt.Errorf("insert payment %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, with their payments.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]models.PayrollRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, total, successful, failed FROM payroll_runs ORDER BY started_at DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.PayrollRun{}
	for rows.Next() {
		var r models.PayrollRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Summary.Total, &r.Summary.Successful, &r.Summary.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		payments, err := s.payments(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Payments = payments
	}
	return runs, nil
}

func (s *Store) payments(ctx context.Context, runID string) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT employee_address, status, output, error FROM payroll_payments WHERE run_id = $1 ORDER BY position",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments of run %s: %w", runID, err)
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		var status string
		if err := rows.Scan(&p.Address, &status, &p.Output, &p.Error); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Status = models.PaymentStatus(status)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
