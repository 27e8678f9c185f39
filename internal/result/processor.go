package result

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/adjust"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

// Processor materializes engine solve results into stored plan graphs.
type Processor struct {
	store  store.Store
	setup  adjust.SetupLookup
	logger *slog.Logger
}

// NewProcessor creates a result processor.
func NewProcessor(st store.Store, setup adjust.SetupLookup, logger *slog.Logger) *Processor {
	return &Processor{
		store:  st,
		setup:  setup,
		logger: logger.With("component", "result"),
	}
}

// ProcessResult turns one solve result into a new DRAFT plan with buckets,
// a stat row, and conflicts mapped from the engine's violations. The plan is
// numbered sequentially per job and written in a single transaction.
func (p *Processor) ProcessResult(ctx context.Context, job *model.Job, res *engine.SolveResult) (*model.Plan, error) {
	if res == nil {
		return nil, fmt.Errorf("nil solve result for job %s", job.ID)
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("solve result for job %s has no schedule entries", job.ID)
	}

	count, err := p.store.CountPlansByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}

	now := time.Now().UTC()
	plan := &model.Plan{
		ID:     "plan_" + uuid.New().String(),
		JobID:  job.ID,
		Number: fmt.Sprintf("P%d", count+1),
		IsBest: count == 0, // first plan starts as the job's best
		KPI: model.KPISummary{
			Cost:             res.KPI.Cost,
			TardinessMinutes: res.KPI.TardinessMinutes,
			ColorChanges:     res.KPI.ColorChanges,
			ConfigChanges:    res.KPI.ConfigChanges,
			ElapsedMS:        res.KPI.ElapsedMS,
		},
		Status:    model.PlanStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	buckets := p.buildBuckets(plan.ID, res.Entries)
	conflicts := mapViolations(plan.ID, res.Violations)
	stat := adjust.ComputeStat(plan, buckets)

	if err := p.store.CreatePlanGraph(ctx, plan, buckets, stat, conflicts); err != nil {
		return nil, fmt.Errorf("persist plan %s: %w", plan.ID, err)
	}

	p.logger.Info("plan materialized",
		"job_id", job.ID, "plan_id", plan.ID, "number", plan.Number,
		"buckets", len(buckets), "conflicts", len(conflicts),
		"engine_version", res.EngineVersion)
	return plan, nil
}

// buildBuckets maps schedule entries to buckets. Entries are grouped per
// slot and renumbered 1..n in the engine's order, so stored sequence numbers
// are contiguous and unique regardless of how the engine counts.
func (p *Processor) buildBuckets(planID string, entries []engine.ScheduleEntry) []*model.Bucket {
	buckets := make([]*model.Bucket, 0, len(entries))
	for i, e := range entries {
		buckets = append(buckets, &model.Bucket{
			ID:           fmt.Sprintf("%s-b%d", planID, i+1),
			PlanID:       planID,
			ProcessType:  e.ProcessType,
			LineID:       e.LineID,
			BizDate:      e.BizDate,
			ShiftCode:    e.ShiftCode,
			OrderID:      e.OrderID,
			Seq:          e.Seq,
			Qty:          e.Qty,
			FromSetupKey: e.FromSetupKey,
			ToSetupKey:   e.ToSetupKey,
			SetupMinutes: e.SetupMinutes,
			SetupCost:    e.SetupCost,
		})
	}

	groups := make(map[model.SlotKey][]*model.Bucket)
	for _, b := range buckets {
		groups[b.Slot()] = append(groups[b.Slot()], b)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Seq < group[j].Seq })
		for i, b := range group {
			b.Seq = i + 1
		}
		if missingSetupLinkage(group) {
			adjust.RecomputeGroupSetup(group, p.setup)
		}
	}

	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.LineID != b.LineID {
			return a.LineID < b.LineID
		}
		if a.BizDate != b.BizDate {
			return a.BizDate < b.BizDate
		}
		if a.ShiftCode != b.ShiftCode {
			return a.ShiftCode < b.ShiftCode
		}
		return a.Seq < b.Seq
	})
	return buckets
}

// missingSetupLinkage reports whether the engine left the group's setup
// chain incomplete: any non-head bucket without a from-key while the group
// carries setup configurations at all.
func missingSetupLinkage(group []*model.Bucket) bool {
	for i, b := range group {
		if i == 0 {
			continue
		}
		if b.FromSetupKey == "" && b.ToSetupKey != "" {
			return true
		}
	}
	return false
}

func mapViolations(planID string, violations []engine.Violation) []*model.Conflict {
	conflicts := make([]*model.Conflict, 0, len(violations))
	for _, v := range violations {
		conflicts = append(conflicts, &model.Conflict{
			ID:       "cfl_" + uuid.New().String(),
			PlanID:   planID,
			Type:     v.Type,
			Severity: parseSeverity(v.Severity),
			RefType:  v.RefType,
			RefID:    v.RefID,
			Message:  v.Message,
			Detail:   v.Detail,
		})
	}
	return conflicts
}

// parseSeverity defaults anything unrecognized to WARNING so an engine
// upgrade cannot silently downgrade a violation to informational.
func parseSeverity(s string) model.ConflictSeverity {
	switch model.ConflictSeverity(s) {
	case model.SeverityInfo, model.SeverityWarning, model.SeverityFatal:
		return model.ConflictSeverity(s)
	default:
		return model.SeverityWarning
	}
}
