package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all GoAPS tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id              TEXT PRIMARY KEY,
		number          TEXT NOT NULL,
		horizon_start   TEXT NOT NULL,
		horizon_end     TEXT NOT NULL,
		scope           TEXT NOT NULL,
		weights         TEXT NOT NULL,
		rules           TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'PENDING',
		engine_trace_id TEXT NOT NULL DEFAULT '',
		error_message   TEXT NOT NULL DEFAULT '',
		deleted         INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plans (
		id         TEXT PRIMARY KEY,
		job_id     TEXT NOT NULL,
		number     TEXT NOT NULL,
		is_best    INTEGER NOT NULL DEFAULT 0,
		kpi        TEXT NOT NULL DEFAULT '{}',
		status     TEXT NOT NULL DEFAULT 'DRAFT',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS buckets (
		id             TEXT PRIMARY KEY,
		plan_id        TEXT NOT NULL,
		process_type   TEXT NOT NULL,
		line_id        TEXT NOT NULL,
		biz_date       TEXT NOT NULL,
		shift_code     TEXT NOT NULL,
		order_id       TEXT NOT NULL,
		seq            INTEGER NOT NULL,
		qty            INTEGER NOT NULL DEFAULT 0,
		from_setup_key TEXT NOT NULL DEFAULT '',
		to_setup_key   TEXT NOT NULL DEFAULT '',
		setup_minutes  INTEGER NOT NULL DEFAULT 0,
		setup_cost     REAL NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS conflicts (
		id       TEXT PRIMARY KEY,
		plan_id  TEXT NOT NULL,
		ctype    TEXT NOT NULL,
		severity TEXT NOT NULL,
		ref_type TEXT NOT NULL DEFAULT '',
		ref_id   TEXT NOT NULL DEFAULT '',
		message  TEXT NOT NULL,
		detail   TEXT NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS stats (
		plan_id       TEXT PRIMARY KEY,
		on_time_rate  REAL NOT NULL DEFAULT 0,
		setup_count   INTEGER NOT NULL DEFAULT 0,
		avg_line_load REAL NOT NULL DEFAULT 0,
		computed_at   TEXT NOT NULL
	)`,

	// Append-only audit log of manual adjustments. No UPDATE or DELETE
	// statement in this package touches it.
	`CREATE TABLE IF NOT EXISTS adjust_log (
		id         TEXT PRIMARY KEY,
		plan_id    TEXT NOT NULL,
		actor      TEXT NOT NULL,
		changes    TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_plans_job_id ON plans(job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_buckets_plan_id ON buckets(plan_id)`,
	// Slot lookup for sequence checks (plan + line + date + shift)
	`CREATE INDEX IF NOT EXISTS idx_buckets_slot ON buckets(plan_id, line_id, biz_date, shift_code)`,
	`CREATE INDEX IF NOT EXISTS idx_conflicts_plan_id ON conflicts(plan_id)`,
	`CREATE INDEX IF NOT EXISTS idx_adjust_log_plan_id ON adjust_log(plan_id)`,
}

// migrate executes all schema statements in order.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// Include a snippet of the failing statement for diagnostics.
			snippet := strings.Join(strings.Fields(stmt), " ")
			if len(snippet) > 60 {
				snippet = snippet[:60]
			}
			return &migrationError{stmt: snippet, err: err}
		}
	}
	return nil
}

type migrationError struct {
	stmt string
	err  error
}

func (e *migrationError) Error() string {
	return "migration failed at " + e.stmt + ": " + e.err.Error()
}

func (e *migrationError) Unwrap() error {
	return e.err
}
