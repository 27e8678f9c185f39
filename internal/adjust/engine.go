package adjust

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/internal/store"
	"github.com/me/goaps/pkg/model"
)

// SetupLookup resolves the changeover time and cost between two setup
// configurations on a process type. Owned by master data, injected here.
type SetupLookup interface {
	// SetupMinutes returns the transition minutes and cost. ok is false
	// when the transition is not in the compatibility table.
	SetupMinutes(processType, fromKey, toKey string) (minutes int, cost float64, ok bool)
}

// Engine applies operator-issued structural edits to a plan's buckets,
// recomputing setup linkage, conflicts, and stats, and logging the change.
// Each invocation is all-or-nothing across its change list.
type Engine struct {
	store    store.Store
	setup    SetupLookup
	capacity map[string]int // line id -> max qty per slot; 0/absent = unlimited
	logger   *slog.Logger
	locks    sync.Map // plan id -> *sync.Mutex
}

// NewEngine creates a plan adjustment engine.
func NewEngine(st store.Store, setup SetupLookup, capacity map[string]int, logger *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		setup:    setup,
		capacity: capacity,
		logger:   logger.With("component", "adjust"),
	}
}

// Result is the post-adjustment view of the plan.
type Result struct {
	Plan      *model.Plan       `json:"plan"`
	Buckets   []*model.Bucket   `json:"buckets"`
	Conflicts []*model.Conflict `json:"conflicts"`
	Stat      *model.Stat       `json:"stat"`
	LogID     string            `json:"log_id"`
}

// lockFor returns the mutex serializing adjustments of one plan. Concurrent
// edits to the same plan are a correctness hazard, not a tolerable race;
// this assumes a single server process owns the database.
func (e *Engine) lockFor(planID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(planID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Apply validates and applies the change list in order, recomputes setup
// transitions and derived artifacts, appends one audit entry, and persists
// everything in a single transaction.
func (e *Engine) Apply(ctx context.Context, actor, planID string, changes []model.BucketChange) (*Result, error) {
	if len(changes) == 0 {
		return nil, model.NewValidationError("empty change list")
	}

	mu := e.lockFor(planID)
	mu.Lock()
	defer mu.Unlock()

	plan, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	if plan == nil {
		return nil, model.NewNotFoundError("plan", planID)
	}
	if plan.Status != model.PlanStatusDraft {
		return nil, model.NewInvalidStateError(fmt.Sprintf("plan %s is %s; only DRAFT plans can be adjusted", planID, plan.Status))
	}

	stored, err := e.store.ListPlanBuckets(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	ws := newWorkingSet(planID, stored)
	for i, ch := range changes {
		if err := ws.apply(ch); err != nil {
			return nil, fmt.Errorf("change %d (%s): %w", i+1, ch.Type, err)
		}
	}

	buckets := ws.resequenceTouched()
	e.recomputeSetups(ws, buckets)

	conflicts := RegenerateConflicts(planID, buckets, e.setup, e.capacity)
	stat := ComputeStat(plan, buckets)

	entry := &model.AdjustLogEntry{
		ID:        "adj_" + uuid.New().String(),
		PlanID:    planID,
		Actor:     actor,
		Changes:   changes,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.store.ReplacePlanArtifacts(ctx, planID, buckets, stat, conflicts, entry); err != nil {
		return nil, fmt.Errorf("persist adjustment: %w", err)
	}

	e.logger.Info("plan adjusted",
		"plan_id", planID, "actor", actor,
		"changes", len(changes), "buckets", len(buckets), "conflicts", len(conflicts))

	return &Result{
		Plan:      plan,
		Buckets:   buckets,
		Conflicts: conflicts,
		Stat:      stat,
		LogID:     entry.ID,
	}, nil
}

// recomputeSetups rebuilds the setup chain of every touched slot group.
// Untouched groups keep their engine-computed transitions.
func (e *Engine) recomputeSetups(ws *workingSet, buckets []*model.Bucket) {
	groups := make(map[model.SlotKey][]*model.Bucket)
	for _, b := range buckets {
		groups[b.Slot()] = append(groups[b.Slot()], b)
	}
	for slot := range ws.touched {
		RecomputeGroupSetup(groups[slot], e.setup)
	}
}
