package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/result"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

// SolverDefaults are the server-wide solver parameters merged into every
// engine request alongside the job's own scope, weights, and rules. Zero
// values defer to the engine's defaults.
type SolverDefaults struct {
	Algorithm    string
	TimeBudgetMS int
	Seed         int64
	LineCapacity map[string]int // line id -> max qty per slot
}

// Manager owns the job state machine: creation, submission, cancellation,
// and deletion. Submissions are asynchronous; callers observe progress via
// the job's status.
type Manager struct {
	store   store.Store
	engine  engine.Adapter
	results *result.Processor
	solver  SolverDefaults
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewManager creates a job lifecycle manager. results may be nil if the
// synchronous solve path is not needed.
func NewManager(st store.Store, eng engine.Adapter, results *result.Processor, solver SolverDefaults, logger *slog.Logger) *Manager {
	return &Manager{
		store:   st,
		engine:  eng,
		results: results,
		solver:  solver,
		logger:  logger.With("component", "lifecycle"),
	}
}

// Wait blocks until all in-flight asynchronous submissions settle. Used by
// tests and graceful shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// CreateJob validates the spec and persists a PENDING job.
func (m *Manager) CreateJob(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	number := spec.Number
	if number == "" {
		number = "APS-" + now.Format("20060102") + "-" + uuid.New().String()[:8]
	}

	job := &model.Job{
		ID:           "job_" + uuid.New().String(),
		Number:       number,
		HorizonStart: spec.HorizonStart,
		HorizonEnd:   spec.HorizonEnd,
		Scope:        spec.Scope,
		Weights:      spec.Weights,
		Rules:        spec.Rules,
		Status:       model.JobStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info("job created", "job_id", job.ID, "number", job.Number, "orders", len(job.Scope.Orders))
	return job, nil
}

func validateSpec(spec model.JobSpec) error {
	var details []model.FieldError

	if spec.HorizonStart.IsZero() || spec.HorizonEnd.IsZero() {
		details = append(details, model.FieldError{Field: "horizon", Message: "horizon start and end are required"})
	} else if !spec.HorizonStart.Before(spec.HorizonEnd) {
		details = append(details, model.FieldError{Field: "horizon", Message: "horizon start must be before end"})
	}

	if len(spec.Scope.Orders) == 0 {
		details = append(details, model.FieldError{Field: "scope.orders", Message: "at least one order is required"})
	}
	seen := make(map[string]bool, len(spec.Scope.Orders))
	for _, o := range spec.Scope.Orders {
		if o.OrderID == "" {
			details = append(details, model.FieldError{Field: "scope.orders", Message: "order id must not be empty"})
			continue
		}
		if seen[o.OrderID] {
			details = append(details, model.FieldError{Field: "scope.orders", Message: fmt.Sprintf("duplicate order %s", o.OrderID)})
		}
		seen[o.OrderID] = true
	}

	// Exclusive assignments are self-contradictory when one line is
	// reserved for two different orders.
	byLine := make(map[string]string, len(spec.Scope.ExclusiveLines))
	for _, a := range spec.Scope.ExclusiveLines {
		if prev, ok := byLine[a.LineID]; ok && prev != a.OrderID {
			details = append(details, model.FieldError{
				Field:   "scope.exclusive_lines",
				Message: fmt.Sprintf("line %s reserved for both %s and %s", a.LineID, prev, a.OrderID),
			})
		}
		byLine[a.LineID] = a.OrderID
		if len(seen) > 0 && !seen[a.OrderID] {
			details = append(details, model.FieldError{
				Field:   "scope.exclusive_lines",
				Message: fmt.Sprintf("line %s reserved for order %s which is not in scope", a.LineID, a.OrderID),
			})
		}
	}

	if len(details) > 0 {
		return model.NewInvalidSpecError("invalid job spec", details...)
	}
	return nil
}

// RunJob transitions a PENDING job to RUNNING and submits it to the engine
// asynchronously. The caller returns as soon as the job is RUNNING; the
// submission outcome lands in the job record.
func (m *Manager) RunJob(ctx context.Context, id string) error {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if job == nil {
		return model.NewNotFoundError("job", id)
	}
	if job.Status != model.JobStatusPending {
		return &model.InvalidTransitionError{
			Entity: "job", ID: id,
			From: string(job.Status), To: string(model.JobStatusRunning),
		}
	}

	if err := m.store.UpdateJobStatus(ctx, id, model.JobStatusRunning, ""); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	req := BuildSolveRequest(job, m.solver)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		// The HTTP request context is gone by the time the submission
		// lands; the adapter applies its own deadline.
		bg := context.Background()

		engineJobID, err := m.engine.SubmitAsync(bg, req)
		if err != nil {
			m.logger.Error("engine submission failed", "job_id", id, "error", err)
			if uerr := m.store.UpdateJobStatus(bg, id, model.JobStatusFailed, "engine submission failed: "+err.Error()); uerr != nil {
				m.logger.Error("mark failed", "job_id", id, "error", uerr)
			}
			return
		}
		if err := m.store.SetJobTrace(bg, id, engineJobID); err != nil {
			m.logger.Error("record engine trace", "job_id", id, "engine_job_id", engineJobID, "error", err)
			return
		}
		m.logger.Info("job running", "job_id", id, "engine_job_id", engineJobID)
	}()

	return nil
}

// StopJob marks a RUNNING job FAILED with a "stopped by user" message and
// fires a best-effort cancel at the engine. The local record is
// authoritative: it is written before the engine is asked, so a late engine
// completion cannot resurrect the job.
func (m *Manager) StopJob(ctx context.Context, id string) error {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if job == nil {
		return model.NewNotFoundError("job", id)
	}
	if job.Status != model.JobStatusRunning {
		return model.NewInvalidStateError(fmt.Sprintf("job %s is %s; only RUNNING jobs can be stopped", id, job.Status))
	}

	if err := m.store.UpdateJobStatus(ctx, id, model.JobStatusFailed, "stopped by user"); err != nil {
		return fmt.Errorf("mark stopped: %w", err)
	}
	m.logger.Info("job stopped", "job_id", id)

	if job.EngineTraceID != "" {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.engine.Cancel(context.Background(), job.EngineTraceID); err != nil {
				// The engine has no durable cancellation guarantee; a
				// failed cancel only means it may burn cycles on a
				// result nobody will read.
				m.logger.Warn("engine cancel failed", "job_id", id, "engine_job_id", job.EngineTraceID, "error", err)
			}
		}()
	}

	return nil
}

// DeleteJob soft-deletes a job. Its plans remain as historical artifacts but
// the job disappears from reads and listings.
func (m *Manager) DeleteJob(ctx context.Context, id string) error {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	if job == nil {
		return model.NewNotFoundError("job", id)
	}
	if err := m.store.SoftDeleteJob(ctx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	m.logger.Info("job deleted", "job_id", id)
	return nil
}

// SolveNow runs the synchronous solve path: PENDING job straight through the
// engine and into a materialized plan. Meant for short test and demo
// invocations; production submissions use RunJob.
func (m *Manager) SolveNow(ctx context.Context, id string) (*model.Plan, error) {
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if job == nil {
		return nil, model.NewNotFoundError("job", id)
	}
	if job.Status != model.JobStatusPending {
		return nil, &model.InvalidTransitionError{
			Entity: "job", ID: id,
			From: string(job.Status), To: string(model.JobStatusRunning),
		}
	}

	if err := m.store.UpdateJobStatus(ctx, id, model.JobStatusRunning, ""); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}

	res, err := m.engine.SolveSync(ctx, BuildSolveRequest(job, m.solver))
	if err != nil {
		status := model.JobStatusFailed
		if engine.IsInfeasible(err) {
			status = model.JobStatusInfeasible
		}
		if uerr := m.store.UpdateJobStatus(ctx, id, status, err.Error()); uerr != nil {
			m.logger.Error("mark failed", "job_id", id, "error", uerr)
		}
		return nil, err
	}

	plan, err := m.results.ProcessResult(ctx, job, res)
	if err != nil {
		if uerr := m.store.UpdateJobStatus(ctx, id, model.JobStatusFailed, "materialize plan: "+err.Error()); uerr != nil {
			m.logger.Error("mark failed", "job_id", id, "error", uerr)
		}
		return nil, err
	}
	if err := m.store.UpdateJobStatus(ctx, id, model.JobStatusSuccess, ""); err != nil {
		return nil, fmt.Errorf("mark success: %w", err)
	}
	return plan, nil
}

// BuildSolveRequest maps a job's scope, weights, and rules onto the engine
// request payload, merging in the server-wide solver defaults.
func BuildSolveRequest(job *model.Job, solver SolverDefaults) *engine.SolveRequest {
	items := make([]engine.WorkItem, 0, len(job.Scope.Orders))
	for _, o := range job.Scope.Orders {
		items = append(items, engine.WorkItem{
			OrderID:      o.OrderID,
			DueTime:      o.DueTime.UTC().Format(time.RFC3339),
			Qty:          o.Qty,
			StageMinutes: o.StageMinutes,
			ToolingKey:   o.ToolingKey,
			FixtureKey:   o.FixtureKey,
			ColorCode:    o.ColorCode,
			ConfigCode:   o.ConfigCode,
			EnergyScore:  o.EnergyScore,
		})
	}

	exclusive := make(map[string]string, len(job.Scope.ExclusiveLines))
	for _, a := range job.Scope.ExclusiveLines {
		exclusive[a.LineID] = a.OrderID
	}

	return &engine.SolveRequest{
		RequestID:    job.ID,
		HorizonStart: job.HorizonStart.UTC().Format("2006-01-02"),
		HorizonEnd:   job.HorizonEnd.UTC().Format("2006-01-02"),
		Items:        items,
		Params: engine.SolverParams{
			Algorithm:    solver.Algorithm,
			TimeBudgetMS: solver.TimeBudgetMS,
			Seed:         solver.Seed,
			Weights: map[string]float64{
				"tardiness":    job.Weights.Tardiness,
				"setup_cost":   job.Weights.SetupCost,
				"energy_cost":  job.Weights.EnergyCost,
				"load_balance": job.Weights.LoadBalance,
			},
			LineIDs:              job.Scope.LineIDs,
			ExclusiveUse:         exclusive,
			LineCapacity:         solver.LineCapacity,
			FrozenDays:           job.Rules.FrozenDays,
			MaxSetupMinutes:      job.Rules.MaxSetupMinutes,
			EnforceToolingCompat: job.Rules.EnforceToolingCompat,
		},
	}
}
