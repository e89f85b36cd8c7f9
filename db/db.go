package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Initialize creates the payroll history tables if they do not exist.
func Initialize(ctx context.Context, db *sql.DB) error {
	// 1. Create Payroll Runs Table
	queryRuns := `
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		total INT NOT NULL,
		successful INT NOT NULL,
		failed INT NOT NULL
	);`

	if _, err := db.ExecContext(ctx, queryRuns); err != nil {
		return fmt.Errorf("create payroll_runs table: %w", err)
	}

	// 2. Create Payroll Payments Table
	// position keeps the contract's list order within a run
	queryPayments := `
	CREATE TABLE IF NOT EXISTS payroll_payments (
		run_id UUID NOT NULL REFERENCES payroll_runs(id) ON DELETE CASCADE,
		position INT NOT NULL,
		employee_address VARCHAR(56) NOT NULL,
		status VARCHAR(16) NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, position)
	);`

	if _, err := db.ExecContext(ctx, queryPayments); err != nil {
		return fmt.Errorf("create payroll_payments table: %w", err)
	}

	return nil
}
