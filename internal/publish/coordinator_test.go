package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

type fakeEmitter struct {
	created  []string // bucket ids
	statuses map[string]string
	failFor  map[string]bool // bucket ids that fail to emit
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{statuses: make(map[string]string), failFor: make(map[string]bool)}
}

func (f *fakeEmitter) CreateWorkOrder(ctx context.Context, bucket *model.Bucket) (string, error) {
	if f.failFor[bucket.ID] {
		return "", errors.New("execution system rejected order")
	}
	f.created = append(f.created, bucket.ID)
	return "wo_" + bucket.ID, nil
}

func (f *fakeEmitter) UpdateStatus(ctx context.Context, orderID, status string) error {
	f.statuses[orderID] = status
	return nil
}

func testCoordinator(t *testing.T, emitter OrderEmitter) (*Coordinator, *store.SQLiteStore) {
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

	return NewCoordinator(st, emitter, logger), st
}

func seedPlan(t *testing.T, st *store.SQLiteStore, conflicts []*model.Conflict) (*model.Plan, []*model.Bucket) {
	t.Helper()
	now := time.Now().UTC()

	job := &model.Job{
		ID:           "job_" + uuid.New().String(),
		Number:       "APS-20260501-001",
		HorizonStart: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		HorizonEnd:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		Scope: model.JobScope{
			Orders:       []model.OrderItem{{OrderID: "PO-1", DueTime: now, Qty: 100}},
			ProcessTypes: []string{"ASSEMBLY"},
		},
		Status:    model.JobStatusSuccess,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	plan := &model.Plan{
		ID:        "plan_" + uuid.New().String(),
		JobID:     job.ID,
		Number:    "P1",
		IsBest:    true,
		KPI:       model.KPISummary{Cost: 500},
		Status:    model.PlanStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	buckets := []*model.Bucket{
		{ID: plan.ID + "-b1", PlanID: plan.ID, ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-05-02", ShiftCode: "A", OrderID: "PO-1", Seq: 1, Qty: 60},
		{ID: plan.ID + "-b2", PlanID: plan.ID, ProcessType: "ASSEMBLY", LineID: "L1", BizDate: "2026-05-02", ShiftCode: "A", OrderID: "PO-1", Seq: 2, Qty: 40},
	}
	for _, c := range conflicts {
		c.PlanID = plan.ID
	}
	if err := st.CreatePlanGraph(context.Background(), plan, buckets, nil, conflicts); err != nil {
		t.Fatalf("CreatePlanGraph: %v", err)
	}
	return plan, buckets
}

func TestPublish(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, buckets := seedPlan(t, st, nil)
	ctx := context.Background()

	report, err := c.Publish(ctx, plan.ID, true)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.WorkOrders != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(emitter.created) != len(buckets) {
		t.Fatalf("work orders = %d, want %d", len(emitter.created), len(buckets))
	}
	if emitter.statuses["PO-1"] != "SCHEDULED" {
		t.Fatalf("order status = %q, want SCHEDULED", emitter.statuses["PO-1"])
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanStatusPublished {
		t.Fatalf("plan status = %s, want PUBLISHED", got.Status)
	}
}

func TestPublish_WithoutOrderGeneration(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	report, err := c.Publish(ctx, plan.ID, false)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.WorkOrders != 0 || len(emitter.created) != 0 {
		t.Fatalf("orders emitted on a dry release: %+v", report)
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanStatusPublished {
		t.Fatalf("plan status = %s, want PUBLISHED", got.Status)
	}
}

func TestPublish_RejectsBlockingConflict(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, _ := seedPlan(t, st, []*model.Conflict{
		{ID: "cfl_1", Type: "OVER_CAPACITY", Severity: model.SeverityFatal, Message: "line L1 overloaded"},
	})
	ctx := context.Background()

	_, err := c.Publish(ctx, plan.ID, true)
	if model.CodeOf(err) != model.ErrInvalidState {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanStatusDraft {
		t.Fatalf("plan status = %s, want DRAFT preserved", got.Status)
	}
	if len(emitter.created) != 0 {
		t.Fatal("work orders emitted for a rejected publish")
	}
}

func TestPublish_WarningConflictAllowed(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, _ := seedPlan(t, st, []*model.Conflict{
		{ID: "cfl_1", Type: "LATE_DELIVERY", Severity: model.SeverityWarning, Message: "PO-1 slightly late"},
	})

	if _, err := c.Publish(context.Background(), plan.ID, true); err != nil {
		t.Fatalf("Publish with WARNING conflict: %v", err)
	}
}

func TestPublish_RejectsNonDraft(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	if _, err := c.Publish(ctx, plan.ID, true); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	_, err := c.Publish(ctx, plan.ID, true)
	if model.CodeOf(err) != model.ErrInvalidState {
		t.Fatalf("second publish err = %v, want INVALID_STATE", err)
	}
}

func TestPublish_EmissionFailureDoesNotRollBack(t *testing.T) {
	emitter := newFakeEmitter()
	c, st := testCoordinator(t, emitter)
	plan, buckets := seedPlan(t, st, nil)
	emitter.failFor[buckets[0].ID] = true
	ctx := context.Background()

	report, err := c.Publish(ctx, plan.ID, true)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if report.WorkOrders != 1 || len(report.Failed) != 1 || report.Failed[0] != buckets[0].ID {
		t.Fatalf("report = %+v", report)
	}

	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanStatusPublished {
		t.Fatalf("plan status = %s, want PUBLISHED despite emission failure", got.Status)
	}
}

func TestPublish_UnknownPlan(t *testing.T) {
	c, _ := testCoordinator(t, newFakeEmitter())
	_, err := c.Publish(context.Background(), "plan_missing", true)
	if model.CodeOf(err) != model.ErrNotFound {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
}

func TestDiscard(t *testing.T) {
	c, st := testCoordinator(t, newFakeEmitter())
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	if err := c.Discard(ctx, plan.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	got, _ := st.GetPlan(ctx, plan.ID)
	if got.Status != model.PlanStatusDiscarded {
		t.Fatalf("status = %s, want DISCARDED", got.Status)
	}

	// DISCARDED is terminal.
	err := c.Discard(ctx, plan.ID)
	if model.CodeOf(err) != model.ErrInvalidState {
		t.Fatalf("double discard err = %v, want INVALID_STATE", err)
	}
}

func TestDiscard_PublishedPlan(t *testing.T) {
	c, st := testCoordinator(t, newFakeEmitter())
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	if _, err := c.Publish(ctx, plan.ID, true); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := c.Discard(ctx, plan.ID); err != nil {
		t.Fatalf("Discard published plan: %v", err)
	}
}

func TestCopyPlan(t *testing.T) {
	c, st := testCoordinator(t, newFakeEmitter())
	plan, buckets := seedPlan(t, st, nil)
	ctx := context.Background()

	dst, err := c.CopyPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("CopyPlan: %v", err)
	}
	if dst.Number != "P2" || dst.Status != model.PlanStatusDraft || dst.IsBest {
		t.Fatalf("copy = %s %s best=%v, want P2 DRAFT not-best", dst.Number, dst.Status, dst.IsBest)
	}

	copied, err := st.ListPlanBuckets(ctx, dst.ID)
	if err != nil {
		t.Fatalf("ListPlanBuckets: %v", err)
	}
	if len(copied) != len(buckets) {
		t.Fatalf("copied buckets = %d, want %d", len(copied), len(buckets))
	}
	for _, b := range copied {
		if b.PlanID != dst.ID {
			t.Fatalf("copied bucket points at %s", b.PlanID)
		}
	}
}

func TestSetBest(t *testing.T) {
	c, st := testCoordinator(t, newFakeEmitter())
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	dst, err := c.CopyPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("CopyPlan: %v", err)
	}
	if err := c.SetBest(ctx, dst.ID); err != nil {
		t.Fatalf("SetBest: %v", err)
	}

	plans, err := st.ListPlansByJob(ctx, plan.JobID)
	if err != nil {
		t.Fatalf("ListPlansByJob: %v", err)
	}
	var best []string
	for _, p := range plans {
		if p.IsBest {
			best = append(best, p.ID)
		}
	}
	if len(best) != 1 || best[0] != dst.ID {
		t.Fatalf("best plans = %v, want exactly [%s]", best, dst.ID)
	}
}

func TestSetBest_RejectsDiscarded(t *testing.T) {
	c, st := testCoordinator(t, newFakeEmitter())
	plan, _ := seedPlan(t, st, nil)
	ctx := context.Background()

	if err := c.Discard(ctx, plan.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	err := c.SetBest(ctx, plan.ID)
	if model.CodeOf(err) != model.ErrInvalidState {
		t.Fatalf("err = %v, want INVALID_STATE", err)
	}
}
