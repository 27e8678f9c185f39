package engine

// Engine-side job status values.
const (
	StatusQueued     = "QUEUED"
	StatusRunning    = "RUNNING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
	StatusInfeasible = "INFEASIBLE"
)

// SolveRequest is the payload submitted to the optimization engine.
type SolveRequest struct {
	RequestID    string       `json:"request_id"`
	HorizonStart string       `json:"horizon_start"` // YYYY-MM-DD
	HorizonEnd   string       `json:"horizon_end"`   // YYYY-MM-DD
	Items        []WorkItem   `json:"items"`
	Params       SolverParams `json:"params"`
}

// WorkItem is one schedulable order handed to the engine.
type WorkItem struct {
	OrderID      string         `json:"order_id"`
	DueTime      string         `json:"due_time"` // RFC3339
	Qty          int            `json:"qty"`
	StageMinutes map[string]int `json:"stage_minutes,omitempty"` // process type -> minutes
	ToolingKey   string         `json:"tooling_key,omitempty"`
	FixtureKey   string         `json:"fixture_key,omitempty"`
	ColorCode    string         `json:"color_code,omitempty"`
	ConfigCode   string         `json:"config_code,omitempty"`
	EnergyScore  float64        `json:"energy_score,omitempty"`
}

// SolverParams tunes the engine run.
type SolverParams struct {
	Algorithm            string             `json:"algorithm,omitempty"`
	TimeBudgetMS         int                `json:"time_budget_ms,omitempty"`
	Seed                 int64              `json:"seed,omitempty"`
	Weights              map[string]float64 `json:"weights,omitempty"`
	LineIDs              []string           `json:"line_ids,omitempty"`
	ExclusiveUse         map[string]string  `json:"exclusive_use,omitempty"` // line id -> order id
	LineCapacity         map[string]int     `json:"line_capacity,omitempty"`
	FrozenDays           int                `json:"frozen_days,omitempty"`
	MaxSetupMinutes      int                `json:"max_setup_minutes,omitempty"`
	EnforceToolingCompat bool               `json:"enforce_tooling_compat,omitempty"`
}

// KPI is the engine-reported quality summary of a solve.
type KPI struct {
	Cost             float64 `json:"cost"`
	TardinessMinutes int     `json:"tardiness_minutes"`
	ColorChanges     int     `json:"color_changes"`
	ConfigChanges    int     `json:"config_changes"`
	ElapsedMS        int64   `json:"elapsed_ms"`
}

// ScheduleEntry is one scheduled unit in the engine's solution.
type ScheduleEntry struct {
	OrderID      string  `json:"order_id"`
	ProcessType  string  `json:"process_type"`
	LineID       string  `json:"line_id"`
	BizDate      string  `json:"biz_date"` // YYYY-MM-DD
	ShiftCode    string  `json:"shift_code"`
	Seq          int     `json:"seq"`
	Qty          int     `json:"qty"`
	FromSetupKey string  `json:"from_setup_key,omitempty"`
	ToSetupKey   string  `json:"to_setup_key,omitempty"`
	SetupMinutes int     `json:"setup_minutes"`
	SetupCost    float64 `json:"setup_cost"`
}

// Violation is one constraint violation or warning reported by the engine.
type Violation struct {
	Type     string         `json:"type"`
	Severity string         `json:"severity"` // INFO | WARNING | FATAL
	RefType  string         `json:"ref_type,omitempty"`
	RefID    string         `json:"ref_id,omitempty"`
	Message  string         `json:"message"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// SolveResult is the engine's full response to a solve.
type SolveResult struct {
	RequestID     string          `json:"request_id"`
	EngineVersion string          `json:"engine_version"`
	KPI           KPI             `json:"kpi"`
	Entries       []ScheduleEntry `json:"entries"`
	Violations    []Violation     `json:"violations,omitempty"`
}

// JobStatus describes an asynchronous engine job.
type JobStatus struct {
	EngineJobID  string       `json:"engine_job_id"`
	Status       string       `json:"status"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
	Result       *SolveResult `json:"result,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// JobSummary is one row of the engine's job listing.
type JobSummary struct {
	EngineJobID string `json:"engine_job_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at,omitempty"`
}

// submitReply is the engine's answer to submit_job.
type submitReply struct {
	EngineJobID string `json:"engine_job_id"`
	Message     string `json:"message,omitempty"`
}
