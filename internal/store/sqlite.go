package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/goaps/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Job CRUD ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	s.logger.Debug("sql", "op", "insert", "table", "jobs", "id", job.ID)

	scopeJSON, err := json.Marshal(job.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	weightsJSON, err := json.Marshal(job.Weights)
	if err != nil {
		return fmt.Errorf("marshal weights: %w", err)
	}
	rulesJSON, err := json.Marshal(job.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}

	status := job.Status
	if status == "" {
		status = model.JobStatusPending
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, number, horizon_start, horizon_end, scope, weights, rules, status, engine_trace_id, error_message, deleted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Number,
		job.HorizonStart.Format(time.RFC3339Nano), job.HorizonEnd.Format(time.RFC3339Nano),
		string(scopeJSON), string(weightsJSON), string(rulesJSON),
		string(status), job.EngineTraceID, job.ErrorMessage, boolToInt(job.Deleted),
		job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

const jobColumns = `id, number, horizon_start, horizon_end, scope, weights, rules, status, engine_trace_id, error_message, deleted, created_at, updated_at`

func scanJob(scan func(...any) error) (*model.Job, error) {
	var job model.Job
	var scopeJSON, weightsJSON, rulesJSON string
	var status, horizonStart, horizonEnd, createdAt, updatedAt string
	var deleted int

	err := scan(&job.ID, &job.Number, &horizonStart, &horizonEnd,
		&scopeJSON, &weightsJSON, &rulesJSON,
		&status, &job.EngineTraceID, &job.ErrorMessage, &deleted,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	job.Status = model.JobStatus(status)
	job.Deleted = deleted != 0
	if err := json.Unmarshal([]byte(scopeJSON), &job.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	if err := json.Unmarshal([]byte(weightsJSON), &job.Weights); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	if err := json.Unmarshal([]byte(rulesJSON), &job.Rules); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	job.HorizonStart, _ = time.Parse(time.RFC3339Nano, horizonStart)
	job.HorizonEnd, _ = time.Parse(time.RFC3339Nano, horizonEnd)
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &job, nil
}

// GetJob returns the job with the given id, or (nil, nil) when the job does
// not exist or is soft-deleted.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND deleted = 0`, id)
	job, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := `WHERE deleted = 0`
	args := []any{}
	if opts.Status != "" {
		where += ` AND status = ?`
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs `+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// UpdateJobStatus atomically writes status, error message, and updated_at
// for one job row. Last writer wins; callers check transition legality.
func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error {
	s.logger.Debug("sql", "op", "update_status", "table", "jobs", "id", id, "status", status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ? WHERE id = ? AND deleted = 0`,
		string(status), errMsg, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// SetJobTrace records the engine-side job id after an asynchronous submit.
func (s *SQLiteStore) SetJobTrace(ctx context.Context, id, traceID string) error {
	s.logger.Debug("sql", "op", "set_trace", "table", "jobs", "id", id)

	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET engine_trace_id = ?, updated_at = ? WHERE id = ? AND deleted = 0`,
		traceID, time.Now().UTC().Format(time.RFC3339Nano), id)
	return err
}

// SoftDeleteJob marks the job deleted. Dependent plans remain as historical
// artifacts.
func (s *SQLiteStore) SoftDeleteJob(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "soft_delete", "table", "jobs", "id", id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) GetJobsByStatus(ctx context.Context, status model.JobStatus) ([]*model.Job, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "status", status)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? AND deleted = 0 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetStaleRunningJobs returns RUNNING jobs whose updated_at is older than
// the given cutoff. Used by the timeout sweep.
func (s *SQLiteStore) GetStaleRunningJobs(ctx context.Context, olderThan time.Time) ([]*model.Job, error) {
	s.logger.Debug("sql", "op", "select_stale", "table", "jobs", "older_than", olderThan)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = 'RUNNING' AND deleted = 0 AND updated_at < ? ORDER BY updated_at`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// --- Plan reads ---

const planColumns = `id, job_id, number, is_best, kpi, status, created_at, updated_at`

func scanPlan(scan func(...any) error) (*model.Plan, error) {
	var plan model.Plan
	var isBest int
	var kpiJSON, status, createdAt, updatedAt string

	err := scan(&plan.ID, &plan.JobID, &plan.Number, &isBest, &kpiJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	plan.IsBest = isBest != 0
	plan.Status = model.PlanStatus(status)
	if err := json.Unmarshal([]byte(kpiJSON), &plan.KPI); err != nil {
		return nil, fmt.Errorf("unmarshal kpi: %w", err)
	}
	plan.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	plan.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &plan, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*model.Plan, error) {
	s.logger.Debug("sql", "op", "select", "table", "plans", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	plan, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *SQLiteStore) ListPlansByJob(ctx context.Context, jobID string) ([]*model.Plan, error) {
	s.logger.Debug("sql", "op", "select", "table", "plans", "job_id", jobID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE job_id = ? ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		plan, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *SQLiteStore) CountPlansByJob(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans WHERE job_id = ?`, jobID).Scan(&n)
	return n, err
}

const bucketColumns = `id, plan_id, process_type, line_id, biz_date, shift_code, order_id, seq, qty, from_setup_key, to_setup_key, setup_minutes, setup_cost`

func scanBucket(scan func(...any) error) (*model.Bucket, error) {
	var b model.Bucket
	err := scan(&b.ID, &b.PlanID, &b.ProcessType, &b.LineID, &b.BizDate, &b.ShiftCode,
		&b.OrderID, &b.Seq, &b.Qty, &b.FromSetupKey, &b.ToSetupKey, &b.SetupMinutes, &b.SetupCost)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLiteStore) ListPlanBuckets(ctx context.Context, planID string) ([]*model.Bucket, error) {
	s.logger.Debug("sql", "op", "select", "table", "buckets", "plan_id", planID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bucketColumns+` FROM buckets WHERE plan_id = ?
		 ORDER BY line_id, biz_date, shift_code, seq`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []*model.Bucket
	for rows.Next() {
		b, err := scanBucket(rows.Scan)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (s *SQLiteStore) ListPlanConflicts(ctx context.Context, planID string) ([]*model.Conflict, error) {
	s.logger.Debug("sql", "op", "select", "table", "conflicts", "plan_id", planID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, ctype, severity, ref_type, ref_id, message, detail
		 FROM conflicts WHERE plan_id = ? ORDER BY severity, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*model.Conflict
	for rows.Next() {
		var c model.Conflict
		var severity, detailJSON string
		if err := rows.Scan(&c.ID, &c.PlanID, &c.Type, &severity, &c.RefType, &c.RefID, &c.Message, &detailJSON); err != nil {
			return nil, err
		}
		c.Severity = model.ConflictSeverity(severity)
		if err := json.Unmarshal([]byte(detailJSON), &c.Detail); err != nil {
			return nil, fmt.Errorf("unmarshal conflict detail: %w", err)
		}
		conflicts = append(conflicts, &c)
	}
	return conflicts, rows.Err()
}

func (s *SQLiteStore) GetPlanStat(ctx context.Context, planID string) (*model.Stat, error) {
	s.logger.Debug("sql", "op", "select", "table", "stats", "plan_id", planID)

	var st model.Stat
	var computedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT plan_id, on_time_rate, setup_count, avg_line_load, computed_at FROM stats WHERE plan_id = ?`,
		planID).Scan(&st.PlanID, &st.OnTimeRate, &st.SetupCount, &st.AvgLineLoad, &computedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.ComputedAt, _ = time.Parse(time.RFC3339Nano, computedAt)
	return &st, nil
}

func (s *SQLiteStore) ListAdjustLog(ctx context.Context, planID string) ([]*model.AdjustLogEntry, error) {
	s.logger.Debug("sql", "op", "select", "table", "adjust_log", "plan_id", planID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_id, actor, changes, created_at FROM adjust_log WHERE plan_id = ? ORDER BY created_at`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.AdjustLogEntry
	for rows.Next() {
		var e model.AdjustLogEntry
		var changesJSON, createdAt string
		if err := rows.Scan(&e.ID, &e.PlanID, &e.Actor, &changesJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(changesJSON), &e.Changes); err != nil {
			return nil, fmt.Errorf("unmarshal changes: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- Plan writes ---

func insertPlanTx(ctx context.Context, tx *sql.Tx, plan *model.Plan) error {
	kpiJSON, err := json.Marshal(plan.KPI)
	if err != nil {
		return fmt.Errorf("marshal kpi: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO plans (id, job_id, number, is_best, kpi, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.JobID, plan.Number, boolToInt(plan.IsBest), string(kpiJSON), string(plan.Status),
		plan.CreatedAt.Format(time.RFC3339Nano), plan.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

func insertBucketTx(ctx context.Context, tx *sql.Tx, b *model.Bucket) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO buckets (`+bucketColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.PlanID, b.ProcessType, b.LineID, b.BizDate, b.ShiftCode,
		b.OrderID, b.Seq, b.Qty, b.FromSetupKey, b.ToSetupKey, b.SetupMinutes, b.SetupCost)
	return err
}

func insertConflictTx(ctx context.Context, tx *sql.Tx, c *model.Conflict) error {
	detailJSON, err := json.Marshal(c.Detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO conflicts (id, plan_id, ctype, severity, ref_type, ref_id, message, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.PlanID, c.Type, string(c.Severity), c.RefType, c.RefID, c.Message, string(detailJSON))
	return err
}

func upsertStatTx(ctx context.Context, tx *sql.Tx, st *model.Stat) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO stats (plan_id, on_time_rate, setup_count, avg_line_load, computed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(plan_id) DO UPDATE SET
		   on_time_rate = excluded.on_time_rate,
		   setup_count = excluded.setup_count,
		   avg_line_load = excluded.avg_line_load,
		   computed_at = excluded.computed_at`,
		st.PlanID, st.OnTimeRate, st.SetupCount, st.AvgLineLoad,
		st.ComputedAt.Format(time.RFC3339Nano))
	return err
}

// CreatePlanGraph persists a plan with its buckets, stat, and conflicts in a
// single transaction, so readers never see a half-built plan.
func (s *SQLiteStore) CreatePlanGraph(ctx context.Context, plan *model.Plan, buckets []*model.Bucket, stat *model.Stat, conflicts []*model.Conflict) error {
	s.logger.Debug("sql", "op", "create_plan_graph", "plan_id", plan.ID, "buckets", len(buckets), "conflicts", len(conflicts))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertPlanTx(ctx, tx, plan); err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	for _, b := range buckets {
		if err := insertBucketTx(ctx, tx, b); err != nil {
			return fmt.Errorf("insert bucket %s: %w", b.ID, err)
		}
	}
	if stat != nil {
		if err := upsertStatTx(ctx, tx, stat); err != nil {
			return fmt.Errorf("insert stat: %w", err)
		}
	}
	for _, c := range conflicts {
		if err := insertConflictTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert conflict %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReplacePlanArtifacts swaps a plan's full bucket set, stat, and conflicts,
// and appends one adjust-log entry, all in a single transaction.
func (s *SQLiteStore) ReplacePlanArtifacts(ctx context.Context, planID string, buckets []*model.Bucket, stat *model.Stat, conflicts []*model.Conflict, entry *model.AdjustLogEntry) error {
	s.logger.Debug("sql", "op", "replace_plan_artifacts", "plan_id", planID, "buckets", len(buckets))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE plan_id = ?`, planID); err != nil {
		return fmt.Errorf("clear buckets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conflicts WHERE plan_id = ?`, planID); err != nil {
		return fmt.Errorf("clear conflicts: %w", err)
	}

	for _, b := range buckets {
		if err := insertBucketTx(ctx, tx, b); err != nil {
			return fmt.Errorf("insert bucket %s: %w", b.ID, err)
		}
	}
	for _, c := range conflicts {
		if err := insertConflictTx(ctx, tx, c); err != nil {
			return fmt.Errorf("insert conflict %s: %w", c.ID, err)
		}
	}
	if stat != nil {
		if err := upsertStatTx(ctx, tx, stat); err != nil {
			return fmt.Errorf("upsert stat: %w", err)
		}
	}

	if entry != nil {
		changesJSON, err := json.Marshal(entry.Changes)
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO adjust_log (id, plan_id, actor, changes, created_at) VALUES (?, ?, ?, ?, ?)`,
			entry.ID, entry.PlanID, entry.Actor, string(changesJSON),
			entry.CreatedAt.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("append adjust log: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE plans SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), planID); err != nil {
		return fmt.Errorf("touch plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CopyPlanGraph deep-copies the source plan's buckets and stat under dst.
// Conflicts are intentionally not copied; they are regenerated on the next
// structural change.
func (s *SQLiteStore) CopyPlanGraph(ctx context.Context, srcPlanID string, dst *model.Plan) error {
	s.logger.Debug("sql", "op", "copy_plan_graph", "src", srcPlanID, "dst", dst.ID)

	buckets, err := s.ListPlanBuckets(ctx, srcPlanID)
	if err != nil {
		return fmt.Errorf("list source buckets: %w", err)
	}
	stat, err := s.GetPlanStat(ctx, srcPlanID)
	if err != nil {
		return fmt.Errorf("get source stat: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertPlanTx(ctx, tx, dst); err != nil {
		return fmt.Errorf("insert plan copy: %w", err)
	}
	for i, b := range buckets {
		copied := *b
		copied.ID = fmt.Sprintf("%s-b%d", dst.ID, i+1)
		copied.PlanID = dst.ID
		if err := insertBucketTx(ctx, tx, &copied); err != nil {
			return fmt.Errorf("insert bucket copy: %w", err)
		}
	}
	if stat != nil {
		copied := *stat
		copied.PlanID = dst.ID
		if err := upsertStatTx(ctx, tx, &copied); err != nil {
			return fmt.Errorf("insert stat copy: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePlanStatus(ctx context.Context, id string, status model.PlanStatus) error {
	s.logger.Debug("sql", "op", "update_status", "table", "plans", "id", id, "status", status)

	res, err := s.db.ExecContext(ctx,
		`UPDATE plans SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return nil
}

// SetBestPlan clears is_best on every sibling plan of the same job and sets
// it on planID, as one transaction.
func (s *SQLiteStore) SetBestPlan(ctx context.Context, jobID, planID string) error {
	s.logger.Debug("sql", "op", "set_best", "job_id", jobID, "plan_id", planID)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE plans SET is_best = 0, updated_at = ? WHERE job_id = ? AND is_best = 1`, now, jobID); err != nil {
		return fmt.Errorf("clear best: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE plans SET is_best = 1, updated_at = ? WHERE id = ? AND job_id = ?`, now, planID, jobID)
	if err != nil {
		return fmt.Errorf("set best: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("plan %s not found under job %s", planID, jobID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
