package monitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/result"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

type fakeAdapter struct {
	statuses  map[string]*engine.JobStatus
	healthy   bool
	cancelled []string
}

func (f *fakeAdapter) SolveSync(ctx context.Context, req *engine.SolveRequest) (*engine.SolveResult, error) {
	return nil, nil
}

func (f *fakeAdapter) SubmitAsync(ctx context.Context, req *engine.SolveRequest) (string, error) {
	return "", nil
}

func (f *fakeAdapter) PollStatus(ctx context.Context, engineJobID string) (*engine.JobStatus, error) {
	return f.statuses[engineJobID], nil
}

func (f *fakeAdapter) Cancel(ctx context.Context, engineJobID string) error {
	f.cancelled = append(f.cancelled, engineJobID)
	return nil
}

func (f *fakeAdapter) ListJobs(ctx context.Context, limit int) ([]engine.JobSummary, error) {
	return nil, nil
}

func (f *fakeAdapter) HealthCheck(ctx context.Context) bool {
	return f.healthy
}

type emptyLookup struct{}

func (emptyLookup) SetupMinutes(processType, fromKey, toKey string) (int, float64, bool) {
	return 0, 0, false
}

func testMonitor(t *testing.T, fake *fakeAdapter) (*Monitor, *store.SQLiteStore) {
	return testMonitorWithConfig(t, fake, DefaultConfig())
}

func testMonitorWithConfig(t *testing.T, fake *fakeAdapter, cfg Config) (*Monitor, *store.SQLiteStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	results := result.NewProcessor(st, emptyLookup{}, logger)
	return NewMonitor(st, fake, results, cfg, logger), st
}

func runningJob(t *testing.T, st *store.SQLiteStore, traceID string) *model.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &model.Job{
		ID:           "job_" + uuid.New().String(),
		Number:       "APS-20260401-001",
		HorizonStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		HorizonEnd:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		Scope: model.JobScope{
			Orders:       []model.OrderItem{{OrderID: "PO-1", DueTime: now.Add(48 * time.Hour), Qty: 100}},
			ProcessTypes: []string{"ASSEMBLY"},
		},
		Status:    model.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := st.UpdateJobStatus(context.Background(), job.ID, model.JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if traceID != "" {
		if err := st.SetJobTrace(context.Background(), job.ID, traceID); err != nil {
			t.Fatalf("SetJobTrace: %v", err)
		}
	}
	return job
}

func completedStatus() *engine.JobStatus {
	return &engine.JobStatus{
		EngineJobID: "eng-1",
		Status:      engine.StatusCompleted,
		Result: &engine.SolveResult{
			RequestID: "req-1",
			KPI:       engine.KPI{Cost: 100},
			Entries: []engine.ScheduleEntry{
				{OrderID: "PO-1", ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-04-02", ShiftCode: "A", Seq: 1, Qty: 100},
			},
		},
	}
}

func TestSweepStatus_CompletesJob(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{"eng-1": completedStatus()}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-1")
	ctx := context.Background()

	if err := m.SweepStatus(ctx); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != model.JobStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", got.Status)
	}

	plans, err := st.ListPlansByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("ListPlansByJob: %v", err)
	}
	if len(plans) != 1 || plans[0].Status != model.PlanStatusDraft {
		t.Fatalf("plans = %+v, want one DRAFT", plans)
	}
}

func TestSweepStatus_EngineFailure(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{
		"eng-1": {EngineJobID: "eng-1", Status: engine.StatusFailed, ErrorMessage: "solver crash"},
	}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-1")

	if err := m.SweepStatus(context.Background()); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, _ := st.GetJob(context.Background(), job.ID)
	if got.Status != model.JobStatusFailed || got.ErrorMessage != "solver crash" {
		t.Fatalf("job = %s %q", got.Status, got.ErrorMessage)
	}
}

func TestSweepStatus_Infeasible(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{
		"eng-1": {EngineJobID: "eng-1", Status: engine.StatusInfeasible},
	}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-1")

	if err := m.SweepStatus(context.Background()); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, _ := st.GetJob(context.Background(), job.ID)
	if got.Status != model.JobStatusInfeasible {
		t.Fatalf("status = %s, want INFEASIBLE", got.Status)
	}
	if got.ErrorMessage != "no feasible schedule" {
		t.Fatalf("message = %q", got.ErrorMessage)
	}
}

func TestSweepStatus_AbsentEngineJobKeepsRunning(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-gone")

	if err := m.SweepStatus(context.Background()); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, _ := st.GetJob(context.Background(), job.ID)
	if got.Status != model.JobStatusRunning {
		t.Fatalf("status = %s, want RUNNING preserved on absent engine job", got.Status)
	}
}

func TestSweepStatus_SkipsJobsWithoutTrace(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "")

	if err := m.SweepStatus(context.Background()); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, _ := st.GetJob(context.Background(), job.ID)
	if got.Status != model.JobStatusRunning {
		t.Fatalf("status = %s, want RUNNING", got.Status)
	}
}

func TestSweepStatus_StillRunning(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{
		"eng-1": {EngineJobID: "eng-1", Status: engine.StatusRunning},
	}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-1")

	if err := m.SweepStatus(context.Background()); err != nil {
		t.Fatalf("SweepStatus: %v", err)
	}

	got, _ := st.GetJob(context.Background(), job.ID)
	if got.Status != model.JobStatusRunning {
		t.Fatalf("status = %s, want RUNNING", got.Status)
	}
}

func TestCompleteJob_StoppedJobWins(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{"eng-1": completedStatus()}}
	m, st := testMonitor(t, fake)
	job := runningJob(t, st, "eng-1")
	ctx := context.Background()

	// The operator stopped the job before the sweep observed completion.
	if err := st.UpdateJobStatus(ctx, job.ID, model.JobStatusFailed, "stopped by user"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	stale, _ := st.GetJob(ctx, job.ID)
	stale.Status = model.JobStatusRunning // sweep's view before the stop landed
	if err := m.completeJob(ctx, stale, fake.statuses["eng-1"]); err != nil {
		t.Fatalf("completeJob: %v", err)
	}

	got, _ := st.GetJob(ctx, job.ID)
	if got.Status != model.JobStatusFailed || got.ErrorMessage != "stopped by user" {
		t.Fatalf("job = %s %q, want stop preserved", got.Status, got.ErrorMessage)
	}
	plans, _ := st.ListPlansByJob(ctx, job.ID)
	if len(plans) != 0 {
		t.Fatalf("plan materialized for a stopped job")
	}
}

func TestSweepTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JobTimeout = 50 * time.Millisecond

	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{}}
	m, st := testMonitorWithConfig(t, fake, cfg)
	ctx := context.Background()

	job := runningJob(t, st, "eng-1")
	time.Sleep(60 * time.Millisecond) // age past the timeout
	fresh := runningJob(t, st, "eng-2")

	if err := m.SweepTimeouts(ctx); err != nil {
		t.Fatalf("SweepTimeouts: %v", err)
	}

	timedOut, _ := st.GetJob(ctx, job.ID)
	if timedOut.Status != model.JobStatusFailed || timedOut.ErrorMessage != "execution timed out" {
		t.Fatalf("job = %s %q", timedOut.Status, timedOut.ErrorMessage)
	}
	if len(fake.cancelled) != 1 || fake.cancelled[0] != "eng-1" {
		t.Fatalf("cancelled = %v, want [eng-1]", fake.cancelled)
	}

	kept, _ := st.GetJob(ctx, fresh.ID)
	if kept.Status != model.JobStatusRunning {
		t.Fatalf("fresh job status = %s, want RUNNING", kept.Status)
	}
}

func TestCheckEngineHealth(t *testing.T) {
	fake := &fakeAdapter{healthy: true}
	m, _ := testMonitor(t, fake)
	ctx := context.Background()

	m.CheckEngineHealth(ctx)
	if !m.Healthy() {
		t.Fatal("healthy engine read as down")
	}

	fake.healthy = false
	m.CheckEngineHealth(ctx)
	if m.Healthy() {
		t.Fatal("unreachable engine read as up")
	}

	fake.healthy = true
	m.CheckEngineHealth(ctx)
	if !m.Healthy() {
		t.Fatal("recovered engine read as down")
	}
}

func TestStartStop(t *testing.T) {
	fake := &fakeAdapter{statuses: map[string]*engine.JobStatus{}, healthy: true}
	m, _ := testMonitor(t, fake)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Start returned %v", err)
	}
}
