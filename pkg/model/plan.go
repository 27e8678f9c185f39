package model

import "time"

// Plan is one concrete scheduling result belonging to a Job. A plan owns an
// ordered collection of Buckets, derived Conflicts, and at most one Stat.
type Plan struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	Number    string     `json:"number"` // sequential per job: P1, P2, ...
	IsBest    bool       `json:"is_best"`
	KPI       KPISummary `json:"kpi"`
	Status    PlanStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// KPISummary is the engine-reported quality summary for a plan.
type KPISummary struct {
	Cost             float64 `json:"cost"`
	TardinessMinutes int     `json:"tardiness_minutes"`
	ColorChanges     int     `json:"color_changes"`
	ConfigChanges    int     `json:"config_changes"`
	ElapsedMS        int64   `json:"elapsed_ms"`
}

// Bucket is the atomic scheduling unit: one order's assignment to one
// line/date/shift slot with a position. Buckets are mutated only through
// the plan adjustment engine, which maintains sequence uniqueness and setup
// linkage.
type Bucket struct {
	ID           string  `json:"id"`
	PlanID       string  `json:"plan_id"`
	ProcessType  string  `json:"process_type"`
	LineID       string  `json:"line_id"`
	BizDate      string  `json:"biz_date"` // YYYY-MM-DD
	ShiftCode    string  `json:"shift_code"`
	OrderID      string  `json:"order_id"`
	Seq          int     `json:"seq"` // unique within (plan, line, date, shift)
	Qty          int     `json:"qty"`
	FromSetupKey string  `json:"from_setup_key,omitempty"`
	ToSetupKey   string  `json:"to_setup_key,omitempty"`
	SetupMinutes int     `json:"setup_minutes"`
	SetupCost    float64 `json:"setup_cost"`
}

// SlotKey identifies the (line, date, shift) group a bucket belongs to.
type SlotKey struct {
	LineID    string `json:"line_id"`
	BizDate   string `json:"biz_date"`
	ShiftCode string `json:"shift_code"`
}

// Slot returns the bucket's group key.
func (b *Bucket) Slot() SlotKey {
	return SlotKey{LineID: b.LineID, BizDate: b.BizDate, ShiftCode: b.ShiftCode}
}

// Conflict is a derived, non-authoritative annotation on a plan. Conflicts
// are regenerated in full whenever the plan's buckets change.
type Conflict struct {
	ID       string           `json:"id"`
	PlanID   string           `json:"plan_id"`
	Type     string           `json:"type"`
	Severity ConflictSeverity `json:"severity"`
	RefType  string           `json:"ref_type,omitempty"`
	RefID    string           `json:"ref_id,omitempty"`
	Message  string           `json:"message"`
	Detail   map[string]any   `json:"detail,omitempty"`
}

// Stat is the derived aggregate for a plan, recomputed whenever buckets
// change.
type Stat struct {
	PlanID      string    `json:"plan_id"`
	OnTimeRate  float64   `json:"on_time_rate"`
	SetupCount  int       `json:"setup_count"`
	AvgLineLoad float64   `json:"avg_line_load"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ChangeType enumerates structural plan edits.
type ChangeType string

const (
	ChangeMove   ChangeType = "MOVE"
	ChangeSwap   ChangeType = "SWAP"
	ChangeDelete ChangeType = "DELETE"
	ChangeInsert ChangeType = "INSERT"
)

// BucketChange is one operator-issued structural edit in an adjustment
// request. Which fields are required depends on Type:
//
//	MOVE:   BucketID + Target
//	SWAP:   BucketID + OtherID
//	DELETE: BucketID
//	INSERT: NewBucket
type BucketChange struct {
	Type      ChangeType  `json:"type"`
	BucketID  string      `json:"bucket_id,omitempty"`
	OtherID   string      `json:"other_id,omitempty"`
	Target    *SlotTarget `json:"target,omitempty"`
	NewBucket *BucketSpec `json:"new_bucket,omitempty"`
}

// SlotTarget is the destination of a MOVE: a slot plus the desired position
// within it. Seq 0 appends at the end of the group.
type SlotTarget struct {
	LineID    string `json:"line_id"`
	BizDate   string `json:"biz_date"`
	ShiftCode string `json:"shift_code"`
	Seq       int    `json:"seq"`
}

// BucketSpec describes a bucket to INSERT.
type BucketSpec struct {
	ProcessType string `json:"process_type"`
	LineID      string `json:"line_id"`
	BizDate     string `json:"biz_date"`
	ShiftCode   string `json:"shift_code"`
	OrderID     string `json:"order_id"`
	Seq         int    `json:"seq"` // desired position; 0 appends
	Qty         int    `json:"qty"`
	SetupKey    string `json:"setup_key,omitempty"` // configuration the bucket runs
}

// AdjustLogEntry is the append-only audit record of one adjustment request.
// Entries are never mutated or deleted.
type AdjustLogEntry struct {
	ID        string         `json:"id"`
	PlanID    string         `json:"plan_id"`
	Actor     string         `json:"actor"`
	Changes   []BucketChange `json:"changes"`
	CreatedAt time.Time      `json:"created_at"`
}
