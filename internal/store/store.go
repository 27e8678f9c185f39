package store

import (
	"context"
	"time"

	"github.com/me/goaps/pkg/model"
)

// Store defines the persistence layer for GoAPS entities. Implementations
// own write consistency only; business rules live in the callers.
type Store interface {
	// Job CRUD
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error)
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, errMsg string) error
	SetJobTrace(ctx context.Context, id, traceID string) error
	SoftDeleteJob(ctx context.Context, id string) error
	GetJobsByStatus(ctx context.Context, status model.JobStatus) ([]*model.Job, error)
	GetStaleRunningJobs(ctx context.Context, olderThan time.Time) ([]*model.Job, error)

	// Plan reads
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
	ListPlansByJob(ctx context.Context, jobID string) ([]*model.Plan, error)
	CountPlansByJob(ctx context.Context, jobID string) (int, error)
	ListPlanBuckets(ctx context.Context, planID string) ([]*model.Bucket, error)
	ListPlanConflicts(ctx context.Context, planID string) ([]*model.Conflict, error)
	GetPlanStat(ctx context.Context, planID string) (*model.Stat, error)
	ListAdjustLog(ctx context.Context, planID string) ([]*model.AdjustLogEntry, error)

	// Plan writes. The multi-row operations are single transactions: readers
	// never observe a half-built plan graph.
	CreatePlanGraph(ctx context.Context, plan *model.Plan, buckets []*model.Bucket, stat *model.Stat, conflicts []*model.Conflict) error
	ReplacePlanArtifacts(ctx context.Context, planID string, buckets []*model.Bucket, stat *model.Stat, conflicts []*model.Conflict, entry *model.AdjustLogEntry) error
	CopyPlanGraph(ctx context.Context, srcPlanID string, dst *model.Plan) error
	UpdatePlanStatus(ctx context.Context, id string, status model.PlanStatus) error
	SetBestPlan(ctx context.Context, jobID, planID string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
