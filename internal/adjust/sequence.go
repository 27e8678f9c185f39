package adjust

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/me/goaps/pkg/model"
)

// workingSet is the in-memory state of one adjustment request: cloned
// buckets plus the bookkeeping needed for deterministic resequencing.
type workingSet struct {
	planID  string
	buckets map[string]*model.Bucket
	origSeq map[string]int              // seq before this request
	pos     map[string]float64          // requested positions for moved/inserted buckets
	touched map[model.SlotKey]bool      // groups whose order or membership changed
	claimed map[model.SlotKey]map[int]string // explicit (slot, seq) claims, for conflict detection
}

// appendPos sorts after every explicit position and every existing seq.
const appendPos = 1 << 30

func newWorkingSet(planID string, stored []*model.Bucket) *workingSet {
	ws := &workingSet{
		planID:  planID,
		buckets: make(map[string]*model.Bucket, len(stored)),
		origSeq: make(map[string]int, len(stored)),
		pos:     make(map[string]float64),
		touched: make(map[model.SlotKey]bool),
		claimed: make(map[model.SlotKey]map[int]string),
	}
	for _, b := range stored {
		clone := *b
		ws.buckets[b.ID] = &clone
		ws.origSeq[b.ID] = b.Seq
	}
	return ws
}

// claim registers an explicit (slot, seq) target. Two changes claiming the
// same position in one request violate sequence uniqueness deterministically
// and are rejected rather than silently reordered.
func (ws *workingSet) claim(slot model.SlotKey, seq int, bucketID string) error {
	if seq <= 0 {
		return nil // append has no explicit position
	}
	if ws.claimed[slot] == nil {
		ws.claimed[slot] = make(map[int]string)
	}
	if prev, ok := ws.claimed[slot][seq]; ok && prev != bucketID {
		return model.NewSequenceConflictError(
			fmt.Sprintf("buckets %s and %s both target seq %d on line %s %s shift %s", prev, bucketID, seq, slot.LineID, slot.BizDate, slot.ShiftCode))
	}
	ws.claimed[slot][seq] = bucketID
	return nil
}

func (ws *workingSet) apply(ch model.BucketChange) error {
	switch ch.Type {
	case model.ChangeMove:
		return ws.move(ch)
	case model.ChangeSwap:
		return ws.swap(ch)
	case model.ChangeDelete:
		return ws.remove(ch)
	case model.ChangeInsert:
		return ws.insert(ch)
	default:
		return model.NewValidationError(fmt.Sprintf("unknown change type %q", ch.Type))
	}
}

func (ws *workingSet) move(ch model.BucketChange) error {
	if ch.Target == nil {
		return model.NewValidationError("MOVE requires a target")
	}
	b, ok := ws.buckets[ch.BucketID]
	if !ok {
		return model.NewNotFoundError("bucket", ch.BucketID)
	}
	if ch.Target.LineID == "" || ch.Target.BizDate == "" || ch.Target.ShiftCode == "" {
		return model.NewValidationError("MOVE target must name line, date, and shift")
	}

	ws.touched[b.Slot()] = true
	b.LineID = ch.Target.LineID
	b.BizDate = ch.Target.BizDate
	b.ShiftCode = ch.Target.ShiftCode
	ws.touched[b.Slot()] = true

	if err := ws.claim(b.Slot(), ch.Target.Seq, b.ID); err != nil {
		return err
	}
	if ch.Target.Seq > 0 {
		// Land just before the current occupant of that position.
		ws.pos[b.ID] = float64(ch.Target.Seq) - 0.5
	} else {
		ws.pos[b.ID] = appendPos
	}
	return nil
}

func (ws *workingSet) swap(ch model.BucketChange) error {
	a, ok := ws.buckets[ch.BucketID]
	if !ok {
		return model.NewNotFoundError("bucket", ch.BucketID)
	}
	b, ok := ws.buckets[ch.OtherID]
	if !ok {
		return model.NewNotFoundError("bucket", ch.OtherID)
	}

	ws.touched[a.Slot()] = true
	ws.touched[b.Slot()] = true

	a.LineID, b.LineID = b.LineID, a.LineID
	a.BizDate, b.BizDate = b.BizDate, a.BizDate
	a.ShiftCode, b.ShiftCode = b.ShiftCode, a.ShiftCode
	a.Seq, b.Seq = b.Seq, a.Seq
	return nil
}

func (ws *workingSet) remove(ch model.BucketChange) error {
	b, ok := ws.buckets[ch.BucketID]
	if !ok {
		return model.NewNotFoundError("bucket", ch.BucketID)
	}
	ws.touched[b.Slot()] = true
	delete(ws.buckets, b.ID)
	return nil
}

func (ws *workingSet) insert(ch model.BucketChange) error {
	spec := ch.NewBucket
	if spec == nil {
		return model.NewValidationError("INSERT requires a new bucket spec")
	}
	var details []model.FieldError
	if spec.LineID == "" || spec.BizDate == "" || spec.ShiftCode == "" {
		details = append(details, model.FieldError{Field: "new_bucket", Message: "line, date, and shift are required"})
	}
	if spec.OrderID == "" {
		details = append(details, model.FieldError{Field: "new_bucket.order_id", Message: "order id is required"})
	}
	if spec.ProcessType == "" {
		details = append(details, model.FieldError{Field: "new_bucket.process_type", Message: "process type is required"})
	}
	if spec.Qty <= 0 {
		details = append(details, model.FieldError{Field: "new_bucket.qty", Message: "qty must be positive"})
	}
	if len(details) > 0 {
		return model.NewValidationError("invalid INSERT", details...)
	}

	b := &model.Bucket{
		ID:          "bkt_" + uuid.New().String(),
		PlanID:      ws.planID,
		ProcessType: spec.ProcessType,
		LineID:      spec.LineID,
		BizDate:     spec.BizDate,
		ShiftCode:   spec.ShiftCode,
		OrderID:     spec.OrderID,
		Qty:         spec.Qty,
		ToSetupKey:  spec.SetupKey,
	}
	ws.buckets[b.ID] = b
	ws.origSeq[b.ID] = appendPos // sorts after every pre-existing bucket on ties
	ws.touched[b.Slot()] = true

	if err := ws.claim(b.Slot(), spec.Seq, b.ID); err != nil {
		return err
	}
	if spec.Seq > 0 {
		ws.pos[b.ID] = float64(spec.Seq) - 0.5
	} else {
		ws.pos[b.ID] = appendPos
	}
	return nil
}

// resequenceTouched renumbers every touched group to unique, contiguous
// 1..n order and returns all buckets sorted for persistence. Placement is
// deterministic: requested position first, then original sequence number,
// then bucket id.
func (ws *workingSet) resequenceTouched() []*model.Bucket {
	groups := make(map[model.SlotKey][]*model.Bucket)
	for _, b := range ws.buckets {
		groups[b.Slot()] = append(groups[b.Slot()], b)
	}

	for slot, group := range groups {
		if !ws.touched[slot] {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			pi, pj := ws.posOf(group[i]), ws.posOf(group[j])
			if pi != pj {
				return pi < pj
			}
			oi, oj := ws.origSeq[group[i].ID], ws.origSeq[group[j].ID]
			if oi != oj {
				return oi < oj
			}
			return group[i].ID < group[j].ID
		})
		for i, b := range group {
			b.Seq = i + 1
		}
	}

	all := make([]*model.Bucket, 0, len(ws.buckets))
	for _, b := range ws.buckets {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
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
	return all
}

func (ws *workingSet) posOf(b *model.Bucket) float64 {
	if p, ok := ws.pos[b.ID]; ok {
		return p
	}
	return float64(b.Seq)
}

// RecomputeGroupSetup rebuilds the setup chain of one slot group in seq
// order. The first bucket starts the shift with no changeover; each later
// bucket transitions from its predecessor's configuration.
func RecomputeGroupSetup(group []*model.Bucket, lookup SetupLookup) {
	sort.Slice(group, func(i, j int) bool { return group[i].Seq < group[j].Seq })

	for i, b := range group {
		if i == 0 {
			b.FromSetupKey = ""
			b.SetupMinutes = 0
			b.SetupCost = 0
			continue
		}
		b.FromSetupKey = group[i-1].ToSetupKey
		if b.FromSetupKey == "" || b.FromSetupKey == b.ToSetupKey {
			b.SetupMinutes = 0
			b.SetupCost = 0
			continue
		}
		minutes, cost, ok := lookup.SetupMinutes(b.ProcessType, b.FromSetupKey, b.ToSetupKey)
		if !ok {
			// Unknown transitions surface as conflicts, not failures.
			b.SetupMinutes = 0
			b.SetupCost = 0
			continue
		}
		b.SetupMinutes = minutes
		b.SetupCost = cost
	}
}
