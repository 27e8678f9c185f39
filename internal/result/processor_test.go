package result

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

type tableLookup map[string]struct {
	minutes int
	cost    float64
}

func (t tableLookup) SetupMinutes(processType, fromKey, toKey string) (int, float64, bool) {
	e, ok := t[processType+"|"+fromKey+"|"+toKey]
	return e.minutes, e.cost, ok
}

func testProcessor(t *testing.T) (*Processor, *store.SQLiteStore) {
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

	lookup := tableLookup{"ASSEMBLY|red/std|blue/std": {25, 50}}
	return NewProcessor(st, lookup, logger), st
}

func testJob(t *testing.T, st *store.SQLiteStore) *model.Job {
	t.Helper()
	now := time.Now().UTC()
	job := &model.Job{
		ID:           "job_" + uuid.New().String(),
		Number:       "APS-20260301-001",
		HorizonStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		HorizonEnd:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Scope: model.JobScope{
			Orders:       []model.OrderItem{{OrderID: "PO-1", DueTime: now.Add(48 * time.Hour), Qty: 100}},
			ProcessTypes: []string{"ASSEMBLY"},
		},
		Status:    model.JobStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func solveResult() *engine.SolveResult {
	return &engine.SolveResult{
		RequestID:     "req-1",
		EngineVersion: "2.3.1",
		KPI:           engine.KPI{Cost: 980.5, TardinessMinutes: 0, ColorChanges: 1, ElapsedMS: 4200},
		Entries: []engine.ScheduleEntry{
			{OrderID: "PO-1", ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-03-02", ShiftCode: "A", Seq: 10, Qty: 60, ToSetupKey: "red/std"},
			{OrderID: "PO-2", ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-03-02", ShiftCode: "A", Seq: 20, Qty: 40, FromSetupKey: "red/std", ToSetupKey: "blue/std", SetupMinutes: 25, SetupCost: 50},
			{OrderID: "PO-3", ProcessType: "ASSEMBLY", LineID: "L2", BizDate: "2026-03-02", ShiftCode: "A", Seq: 5, Qty: 30},
		},
		Violations: []engine.Violation{
			{Type: "LATE_DELIVERY", Severity: "WARNING", RefType: "order", RefID: "PO-2", Message: "45 minutes late"},
		},
	}
}

func TestProcessResult_CreatesDraftPlan(t *testing.T) {
	p, st := testProcessor(t)
	job := testJob(t, st)
	ctx := context.Background()

	plan, err := p.ProcessResult(ctx, job, solveResult())
	if err != nil {
		t.Fatalf("ProcessResult: %v", err)
	}

	if plan.Number != "P1" || plan.Status != model.PlanStatusDraft || !plan.IsBest {
		t.Fatalf("plan = %s %s best=%v, want P1 DRAFT best", plan.Number, plan.Status, plan.IsBest)
	}
	if plan.KPI.Cost != 980.5 || plan.KPI.ElapsedMS != 4200 {
		t.Fatalf("kpi = %+v", plan.KPI)
	}

	stored, err := st.GetPlan(ctx, plan.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetPlan: %v, %v", stored, err)
	}

	buckets, err := st.ListPlanBuckets(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ListPlanBuckets: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("buckets = %d, want 3", len(buckets))
	}

	conflicts, err := st.ListPlanConflicts(ctx, plan.ID)
	if err != nil {
		t.Fatalf("ListPlanConflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].Type != "LATE_DELIVERY" || conflicts[0].Severity != model.SeverityWarning {
		t.Fatalf("conflicts = %+v", conflicts)
	}

	stat, err := st.GetPlanStat(ctx, plan.ID)
	if err != nil || stat == nil {
		t.Fatalf("GetPlanStat: %v, %v", stat, err)
	}
	if stat.OnTimeRate != 1 {
		t.Fatalf("on-time rate = %.2f, want 1 with zero tardiness", stat.OnTimeRate)
	}
}

func TestProcessResult_NormalizesSequencePerGroup(t *testing.T) {
	p, st := testProcessor(t)
	job := testJob(t, st)

	plan, err := p.ProcessResult(context.Background(), job, solveResult())
	if err != nil {
		t.Fatalf("ProcessResult: %v", err)
	}
	buckets, err := st.ListPlanBuckets(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("ListPlanBuckets: %v", err)
	}

	// Engine seqs 10/20 on L1 and 5 on L2 become 1/2 and 1.
	seqs := make(map[model.SlotKey][]int)
	for _, b := range buckets {
		seqs[b.Slot()] = append(seqs[b.Slot()], b.Seq)
	}
	for slot, got := range seqs {
		for i, s := range got {
			if s != i+1 {
				t.Fatalf("group %v seqs = %v, want contiguous from 1", slot, got)
			}
		}
	}
}

func TestProcessResult_SequentialPlanNumbers(t *testing.T) {
	p, st := testProcessor(t)
	job := testJob(t, st)
	ctx := context.Background()

	first, err := p.ProcessResult(ctx, job, solveResult())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := p.ProcessResult(ctx, job, solveResult())
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first.Number != "P1" || second.Number != "P2" {
		t.Fatalf("numbers = %s, %s", first.Number, second.Number)
	}
	if !first.IsBest || second.IsBest {
		t.Fatalf("is_best = %v, %v; only the first plan defaults to best", first.IsBest, second.IsBest)
	}
}

func TestProcessResult_RepairsMissingSetupLinkage(t *testing.T) {
	p, st := testProcessor(t)
	job := testJob(t, st)

	res := solveResult()
	// Engine reported configurations but no transition data.
	res.Entries = []engine.ScheduleEntry{
		{OrderID: "PO-1", ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-03-02", ShiftCode: "A", Seq: 1, Qty: 60, ToSetupKey: "red/std"},
		{OrderID: "PO-2", ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-03-02", ShiftCode: "A", Seq: 2, Qty: 40, ToSetupKey: "blue/std"},
	}
	res.Violations = nil

	plan, err := p.ProcessResult(context.Background(), job, res)
	if err != nil {
		t.Fatalf("ProcessResult: %v", err)
	}
	buckets, err := st.ListPlanBuckets(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("ListPlanBuckets: %v", err)
	}

	var second *model.Bucket
	for _, b := range buckets {
		if b.OrderID == "PO-2" {
			second = b
		}
	}
	if second == nil {
		t.Fatal("PO-2 bucket missing")
	}
	if second.FromSetupKey != "red/std" || second.SetupMinutes != 25 || second.SetupCost != 50 {
		t.Fatalf("setup = (%q, %d, %.0f), want (red/std, 25, 50)", second.FromSetupKey, second.SetupMinutes, second.SetupCost)
	}
}

func TestProcessResult_EmptyEntries(t *testing.T) {
	p, st := testProcessor(t)
	job := testJob(t, st)

	res := solveResult()
	res.Entries = nil
	if _, err := p.ProcessResult(context.Background(), job, res); err == nil {
		t.Fatal("expected error for empty schedule")
	}
	if _, err := p.ProcessResult(context.Background(), job, nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestParseSeverity_DefaultsUnknownToWarning(t *testing.T) {
	if got := parseSeverity("FATAL"); got != model.SeverityFatal {
		t.Fatalf("got %s", got)
	}
	if got := parseSeverity("critical"); got != model.SeverityWarning {
		t.Fatalf("got %s, want WARNING for unknown severity", got)
	}
}
