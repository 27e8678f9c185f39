package model

import "time"

// Job is a request to compute a production schedule over a horizon. The job
// record tracks the engine-side execution independently of its results; a
// job owns zero or more Plans.
type Job struct {
	ID            string           `json:"id"`
	Number        string           `json:"number"`
	HorizonStart  time.Time        `json:"horizon_start"`
	HorizonEnd    time.Time        `json:"horizon_end"`
	Scope         JobScope         `json:"scope"`
	Weights       ObjectiveWeights `json:"weights"`
	Rules         ConstraintRules  `json:"rules"`
	Status        JobStatus        `json:"status"`
	EngineTraceID string           `json:"engine_trace_id,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
	Deleted       bool             `json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// JobScope describes what the job schedules: the orders in scope, the
// process stages to plan, and line restrictions.
type JobScope struct {
	Orders         []OrderItem      `json:"orders"`
	ProcessTypes   []string         `json:"process_types,omitempty"`
	LineIDs        []string         `json:"line_ids,omitempty"` // allow-list; empty means all lines
	ExclusiveLines []LineAssignment `json:"exclusive_lines,omitempty"`
}

// OrderItem is one production order in a job's scope, carrying the
// attributes the engine needs to place it.
type OrderItem struct {
	OrderID      string         `json:"order_id"`
	DueTime      time.Time      `json:"due_time"`
	Qty          int            `json:"qty"`
	StageMinutes map[string]int `json:"stage_minutes,omitempty"` // process type -> minutes per unit batch
	ToolingKey   string         `json:"tooling_key,omitempty"`
	FixtureKey   string         `json:"fixture_key,omitempty"`
	ColorCode    string         `json:"color_code,omitempty"`
	ConfigCode   string         `json:"config_code,omitempty"`
	EnergyScore  float64        `json:"energy_score,omitempty"`
}

// LineAssignment reserves a production line exclusively for one order.
type LineAssignment struct {
	LineID  string `json:"line_id"`
	OrderID string `json:"order_id"`
}

// ObjectiveWeights tunes the engine's objective function.
type ObjectiveWeights struct {
	Tardiness   float64 `json:"tardiness"`
	SetupCost   float64 `json:"setup_cost"`
	EnergyCost  float64 `json:"energy_cost"`
	LoadBalance float64 `json:"load_balance"`
}

// ConstraintRules toggles solver-side constraint handling.
type ConstraintRules struct {
	EnforceToolingCompat bool `json:"enforce_tooling_compat"`
	MaxSetupMinutes      int  `json:"max_setup_minutes,omitempty"`
	FrozenDays           int  `json:"frozen_days,omitempty"` // days from horizon start the engine must not touch
}

// JobSpec is the caller-supplied input for creating a Job.
type JobSpec struct {
	Number       string           `json:"number"`
	HorizonStart time.Time        `json:"horizon_start"`
	HorizonEnd   time.Time        `json:"horizon_end"`
	Scope        JobScope         `json:"scope"`
	Weights      ObjectiveWeights `json:"weights"`
	Rules        ConstraintRules  `json:"rules"`
}
