package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/result"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

// Config holds monitor configuration.
type Config struct {
	StatusInterval  time.Duration // how often RUNNING jobs are polled
	TimeoutInterval time.Duration // how often stale jobs are swept
	HealthInterval  time.Duration // how often the engine is pinged
	JobTimeout      time.Duration // max RUNNING age before forced failure
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		StatusInterval:  30 * time.Second,
		TimeoutInterval: time.Hour,
		HealthInterval:  5 * time.Minute,
		JobTimeout:      2 * time.Hour,
	}
}

// Monitor drives RUNNING jobs to completion by polling the engine, sweeps
// jobs stuck past their timeout, and tracks engine health.
type Monitor struct {
	store   store.Store
	engine  engine.Adapter
	results *result.Processor
	config  Config
	logger  *slog.Logger
	healthy atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a job monitor.
func NewMonitor(st store.Store, eng engine.Adapter, results *result.Processor, cfg Config, logger *slog.Logger) *Monitor {
	m := &Monitor{
		store:   st,
		engine:  eng,
		results: results,
		config:  cfg,
		logger:  logger.With("component", "monitor"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	m.healthy.Store(true)
	return m
}

// Healthy reports the last observed engine reachability.
func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// Start begins the monitoring loops. Blocks until ctx is cancelled or Stop
// is called.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info("monitor started",
		"status_interval", m.config.StatusInterval,
		"timeout_interval", m.config.TimeoutInterval,
		"health_interval", m.config.HealthInterval)

	status := time.NewTicker(m.config.StatusInterval)
	defer status.Stop()
	timeout := time.NewTicker(m.config.TimeoutInterval)
	defer timeout.Stop()
	health := time.NewTicker(m.config.HealthInterval)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping (context cancelled)")
			close(m.doneCh)
			return ctx.Err()
		case <-m.stopCh:
			m.logger.Info("monitor stopping (stop called)")
			close(m.doneCh)
			return nil
		case <-status.C:
			if err := m.SweepStatus(ctx); err != nil {
				m.logger.Error("status sweep", "error", err)
			}
		case <-timeout.C:
			if err := m.SweepTimeouts(ctx); err != nil {
				m.logger.Error("timeout sweep", "error", err)
			}
		case <-health.C:
			m.CheckEngineHealth(ctx)
		}
	}
}

// Stop gracefully shuts down the monitor and waits for the current sweep to
// finish.
func (m *Monitor) Stop() error {
	close(m.stopCh)
	<-m.doneCh
	return nil
}

// SweepStatus polls the engine for every RUNNING job and applies terminal
// transitions. One job's failure never blocks the rest of the sweep.
func (m *Monitor) SweepStatus(ctx context.Context) error {
	running, err := m.store.GetJobsByStatus(ctx, model.JobStatusRunning)
	if err != nil {
		return err
	}

	for _, job := range running {
		if job.EngineTraceID == "" {
			// Submission is still in flight; the next sweep picks it up.
			continue
		}
		if err := m.pollJob(ctx, job); err != nil {
			m.logger.Error("poll job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (m *Monitor) pollJob(ctx context.Context, job *model.Job) error {
	st, err := m.engine.PollStatus(ctx, job.EngineTraceID)
	if err != nil {
		return err
	}
	if st == nil {
		m.logger.Warn("engine job vanished", "job_id", job.ID, "engine_job_id", job.EngineTraceID)
		return nil
	}

	switch st.Status {
	case engine.StatusQueued, engine.StatusRunning:
		return nil
	case engine.StatusCompleted:
		return m.completeJob(ctx, job, st)
	case engine.StatusFailed:
		return m.failJob(ctx, job, model.JobStatusFailed, st.ErrorMessage, "engine reported failure")
	case engine.StatusInfeasible:
		return m.failJob(ctx, job, model.JobStatusInfeasible, st.ErrorMessage, "no feasible schedule")
	default:
		m.logger.Warn("unknown engine status", "job_id", job.ID, "status", st.Status)
		return nil
	}
}

// completeJob materializes the result and marks the job SUCCESS. The local
// status is re-read first: a stop issued between sweeps wins over a late
// engine completion.
func (m *Monitor) completeJob(ctx context.Context, job *model.Job, st *engine.JobStatus) error {
	current, err := m.store.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if current == nil || current.Status != model.JobStatusRunning {
		m.logger.Info("dropping late engine completion", "job_id", job.ID)
		return nil
	}

	if st.Result == nil {
		return m.failJob(ctx, job, model.JobStatusFailed, "engine completed without a result", "")
	}

	plan, err := m.results.ProcessResult(ctx, current, st.Result)
	if err != nil {
		return m.failJob(ctx, job, model.JobStatusFailed, "materialize plan: "+err.Error(), "")
	}
	if err := m.store.UpdateJobStatus(ctx, job.ID, model.JobStatusSuccess, ""); err != nil {
		return err
	}
	m.logger.Info("job completed", "job_id", job.ID, "plan_id", plan.ID, "number", plan.Number)
	return nil
}

func (m *Monitor) failJob(ctx context.Context, job *model.Job, status model.JobStatus, msg, fallback string) error {
	current, err := m.store.GetJob(ctx, job.ID)
	if err != nil {
		return err
	}
	if current == nil || current.Status != model.JobStatusRunning {
		return nil
	}
	if msg == "" {
		msg = fallback
	}
	if err := m.store.UpdateJobStatus(ctx, job.ID, status, msg); err != nil {
		return err
	}
	m.logger.Info("job finished", "job_id", job.ID, "status", status, "message", msg)
	return nil
}

// SweepTimeouts fails RUNNING jobs older than the configured timeout and
// asks the engine to stop them, best effort.
func (m *Monitor) SweepTimeouts(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-m.config.JobTimeout)
	stale, err := m.store.GetStaleRunningJobs(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, job := range stale {
		if err := m.store.UpdateJobStatus(ctx, job.ID, model.JobStatusFailed, "execution timed out"); err != nil {
			m.logger.Error("mark timed out", "job_id", job.ID, "error", err)
			continue
		}
		m.logger.Warn("job timed out", "job_id", job.ID, "timeout", m.config.JobTimeout)

		if job.EngineTraceID != "" {
			if err := m.engine.Cancel(ctx, job.EngineTraceID); err != nil {
				m.logger.Warn("cancel timed-out job", "job_id", job.ID, "error", err)
			}
		}
	}
	return nil
}

// CheckEngineHealth pings the engine and records the outcome. Transitions
// are logged once, not on every tick.
func (m *Monitor) CheckEngineHealth(ctx context.Context) {
	up := m.engine.HealthCheck(ctx)
	was := m.healthy.Swap(up)
	if up != was {
		if up {
			m.logger.Info("engine recovered")
		} else {
			m.logger.Error("engine unreachable")
		}
	}
}
