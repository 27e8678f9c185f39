package model

// JobStatus represents the lifecycle state of a scheduling Job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusRunning    JobStatus = "RUNNING"
	JobStatusSuccess    JobStatus = "SUCCESS"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusInfeasible JobStatus = "INFEASIBLE"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the job is in a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusInfeasible:
		return true
	}
	return false
}

// ValidJobTransitions defines the allowed state transitions for Jobs.
// RUNNING is entered at most once; terminal states are never left.
var ValidJobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending: {JobStatusRunning},
	JobStatusRunning: {JobStatusSuccess, JobStatusFailed, JobStatusInfeasible},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range ValidJobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PlanStatus represents the lifecycle state of a Plan.
type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusPublished PlanStatus = "PUBLISHED"
	PlanStatusDiscarded PlanStatus = "DISCARDED"
)

// String returns the string representation of the plan status.
func (s PlanStatus) String() string {
	return string(s)
}

// ValidPlanTransitions defines the allowed state transitions for Plans.
// DISCARDED is irreversible.
var ValidPlanTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusDraft:     {PlanStatusPublished, PlanStatusDiscarded},
	PlanStatusPublished: {PlanStatusDiscarded},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	for _, allowed := range ValidPlanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConflictSeverity classifies a plan conflict annotation.
type ConflictSeverity string

const (
	SeverityInfo    ConflictSeverity = "INFO"
	SeverityWarning ConflictSeverity = "WARNING"
	SeverityFatal   ConflictSeverity = "FATAL"
)

// Blocking returns true if the severity prevents publishing a plan.
func (s ConflictSeverity) Blocking() bool {
	return s == SeverityFatal
}
