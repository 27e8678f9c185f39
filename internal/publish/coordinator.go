package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

// OrderEmitter delivers a published plan to the execution system, one work
// order per bucket.
type OrderEmitter interface {
	// CreateWorkOrder opens a work order for a bucket and returns its id.
	CreateWorkOrder(ctx context.Context, bucket *model.Bucket) (string, error)

	// UpdateStatus moves a source order to the given execution status.
	UpdateStatus(ctx context.Context, orderID, status string) error
}

// LogEmitter is the default emitter: it records what would be sent and
// succeeds. Used until a real execution system is wired in.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates an emitter that only logs.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With("component", "emitter")}
}

func (e *LogEmitter) CreateWorkOrder(ctx context.Context, bucket *model.Bucket) (string, error) {
	id := "wo_" + uuid.New().String()
	e.logger.Info("work order",
		"work_order_id", id, "bucket_id", bucket.ID, "order_id", bucket.OrderID,
		"line_id", bucket.LineID, "biz_date", bucket.BizDate, "shift_code", bucket.ShiftCode,
		"seq", bucket.Seq, "qty", bucket.Qty)
	return id, nil
}

func (e *LogEmitter) UpdateStatus(ctx context.Context, orderID, status string) error {
	e.logger.Info("order status", "order_id", orderID, "status", status)
	return nil
}

// Coordinator owns plan release: publishing to execution, discarding,
// copying, and best-plan selection.
type Coordinator struct {
	store   store.Store
	emitter OrderEmitter
	logger  *slog.Logger
}

// NewCoordinator creates a publish coordinator.
func NewCoordinator(st store.Store, emitter OrderEmitter, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   st,
		emitter: emitter,
		logger:  logger.With("component", "publish"),
	}
}

// PublishReport summarizes one publish: how many work orders were opened and
// which buckets failed to emit. Emission failures do not roll the publish
// back; the plan is already the committed schedule.
type PublishReport struct {
	PlanID     string   `json:"plan_id"`
	WorkOrders int      `json:"work_orders"`
	Failed     []string `json:"failed_bucket_ids,omitempty"`
}

// Publish releases a DRAFT plan to execution. Plans with blocking conflicts
// are rejected; the operator resolves them through adjustment first. When
// generateOrders is false the plan is published without emitting work
// orders, for dry releases where execution is driven elsewhere.
func (c *Coordinator) Publish(ctx context.Context, planID string, generateOrders bool) (*PublishReport, error) {
	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	if plan == nil {
		return nil, model.NewNotFoundError("plan", planID)
	}
	if plan.Status != model.PlanStatusDraft {
		return nil, &model.InvalidTransitionError{
			Entity: "plan", ID: planID,
			From: string(plan.Status), To: string(model.PlanStatusPublished),
		}
	}

	conflicts, err := c.store.ListPlanConflicts(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	for _, cf := range conflicts {
		if cf.Severity.Blocking() {
			return nil, model.NewInvalidStateError(
				fmt.Sprintf("plan %s has a blocking %s conflict: %s", planID, cf.Type, cf.Message))
		}
	}

	buckets, err := c.store.ListPlanBuckets(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	if len(buckets) == 0 {
		return nil, model.NewInvalidStateError(fmt.Sprintf("plan %s has no buckets to publish", planID))
	}

	// The status flip commits the publish. Emission below is delivery, not
	// part of the transaction.
	if err := c.store.UpdatePlanStatus(ctx, planID, model.PlanStatusPublished); err != nil {
		return nil, fmt.Errorf("mark published: %w", err)
	}

	report := &PublishReport{PlanID: planID}
	if generateOrders {
		orders := make(map[string]bool)
		for _, b := range buckets {
			if _, err := c.emitter.CreateWorkOrder(ctx, b); err != nil {
				c.logger.Error("emit work order", "plan_id", planID, "bucket_id", b.ID, "error", err)
				report.Failed = append(report.Failed, b.ID)
				continue
			}
			report.WorkOrders++
			orders[b.OrderID] = true
		}
		for orderID := range orders {
			if err := c.emitter.UpdateStatus(ctx, orderID, "SCHEDULED"); err != nil {
				c.logger.Error("update order status", "plan_id", planID, "order_id", orderID, "error", err)
			}
		}
	}

	c.logger.Info("plan published",
		"plan_id", planID, "job_id", plan.JobID,
		"work_orders", report.WorkOrders, "failed", len(report.Failed))
	return report, nil
}

// Discard retires a DRAFT or PUBLISHED plan.
func (c *Coordinator) Discard(ctx context.Context, planID string) error {
	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("get plan %s: %w", planID, err)
	}
	if plan == nil {
		return model.NewNotFoundError("plan", planID)
	}
	if !plan.Status.CanTransitionTo(model.PlanStatusDiscarded) {
		return &model.InvalidTransitionError{
			Entity: "plan", ID: planID,
			From: string(plan.Status), To: string(model.PlanStatusDiscarded),
		}
	}

	if err := c.store.UpdatePlanStatus(ctx, planID, model.PlanStatusDiscarded); err != nil {
		return fmt.Errorf("mark discarded: %w", err)
	}
	c.logger.Info("plan discarded", "plan_id", planID, "was", plan.Status)
	return nil
}

// CopyPlan clones a plan into a fresh DRAFT under the same job, so an
// operator can rework a published schedule without touching the released
// one. Conflicts are not copied; they regenerate on the first adjustment.
func (c *Coordinator) CopyPlan(ctx context.Context, planID string) (*model.Plan, error) {
	src, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	if src == nil {
		return nil, model.NewNotFoundError("plan", planID)
	}

	count, err := c.store.CountPlansByJob(ctx, src.JobID)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}

	now := time.Now().UTC()
	dst := &model.Plan{
		ID:        "plan_" + uuid.New().String(),
		JobID:     src.JobID,
		Number:    fmt.Sprintf("P%d", count+1),
		IsBest:    false,
		KPI:       src.KPI,
		Status:    model.PlanStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.store.CopyPlanGraph(ctx, planID, dst); err != nil {
		return nil, fmt.Errorf("copy plan graph: %w", err)
	}

	c.logger.Info("plan copied", "src", planID, "dst", dst.ID, "number", dst.Number)
	return dst, nil
}

// SetBest marks one plan as the job's preferred schedule. Exactly one plan
// per job holds the flag.
func (c *Coordinator) SetBest(ctx context.Context, planID string) error {
	plan, err := c.store.GetPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("get plan %s: %w", planID, err)
	}
	if plan == nil {
		return model.NewNotFoundError("plan", planID)
	}
	if plan.Status == model.PlanStatusDiscarded {
		return model.NewInvalidStateError(fmt.Sprintf("plan %s is discarded", planID))
	}

	if err := c.store.SetBestPlan(ctx, plan.JobID, planID); err != nil {
		return fmt.Errorf("set best plan: %w", err)
	}
	c.logger.Info("best plan set", "job_id", plan.JobID, "plan_id", planID)
	return nil
}
