package adjust

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/me/goaps/pkg/model"
)

// RegenerateConflicts re-derives the full conflict set for a plan's buckets.
// Stale conflicts are never patched in place; the caller replaces the stored
// set wholesale with the returned one.
func RegenerateConflicts(planID string, buckets []*model.Bucket, lookup SetupLookup, capacity map[string]int) []*model.Conflict {
	var conflicts []*model.Conflict
	add := func(severity model.ConflictSeverity, kind, message, bucketID string, detail map[string]any) {
		c := &model.Conflict{
			ID:       "cfl_" + uuid.New().String(),
			PlanID:   planID,
			Type:     kind,
			Severity: severity,
			Message:  message,
			Detail:   detail,
		}
		if bucketID != "" {
			c.RefType = "bucket"
			c.RefID = bucketID
		}
		conflicts = append(conflicts, c)
	}

	slotQty := make(map[model.SlotKey]int)
	orderLines := make(map[string]map[string]bool) // orderID|date -> lines used

	for _, b := range buckets {
		if b.Qty <= 0 {
			add(model.SeverityWarning, "NONPOSITIVE_QTY",
				fmt.Sprintf("bucket for order %s has qty %d", b.OrderID, b.Qty),
				b.ID, map[string]any{"qty": b.Qty})
		}
		slotQty[b.Slot()] += b.Qty

		key := b.OrderID + "|" + b.BizDate
		if orderLines[key] == nil {
			orderLines[key] = make(map[string]bool)
		}
		orderLines[key][b.LineID] = true

		if b.FromSetupKey != "" && b.FromSetupKey != b.ToSetupKey {
			if _, _, ok := lookup.SetupMinutes(b.ProcessType, b.FromSetupKey, b.ToSetupKey); !ok {
				add(model.SeverityWarning, "UNKNOWN_SETUP",
					fmt.Sprintf("no setup entry for %s: %s -> %s, assuming zero changeover", b.ProcessType, b.FromSetupKey, b.ToSetupKey),
					b.ID, map[string]any{"from": b.FromSetupKey, "to": b.ToSetupKey})
			}
		}
	}

	for slot, qty := range slotQty {
		limit, ok := capacity[slot.LineID]
		if ok && qty > limit {
			add(model.SeverityFatal, "OVER_CAPACITY",
				fmt.Sprintf("line %s on %s shift %s holds qty %d over capacity %d", slot.LineID, slot.BizDate, slot.ShiftCode, qty, limit),
				"", map[string]any{"line_id": slot.LineID, "biz_date": slot.BizDate, "shift_code": slot.ShiftCode, "qty": qty, "capacity": limit})
		}
	}

	for key, lines := range orderLines {
		if len(lines) > 1 {
			orderID, date, _ := strings.Cut(key, "|")
			add(model.SeverityInfo, "SPLIT_ORDER",
				fmt.Sprintf("order %s runs on %d lines on %s", orderID, len(lines), date),
				"", map[string]any{"order_id": orderID, "biz_date": date, "lines": len(lines)})
		}
	}

	return conflicts
}

// ComputeStat derives the plan-level statistics row from its buckets. The
// tardiness figure comes from the solver KPI on the owning plan; a manual
// adjustment keeps it as the best available estimate.
func ComputeStat(plan *model.Plan, buckets []*model.Bucket) *model.Stat {
	stat := &model.Stat{
		PlanID:     plan.ID,
		ComputedAt: time.Now().UTC(),
	}

	orders := make(map[string]bool)
	lineDayQty := make(map[string]int)
	for _, b := range buckets {
		orders[b.OrderID] = true
		if b.SetupMinutes > 0 {
			stat.SetupCount++
		}
		lineDayQty[b.LineID+"|"+b.BizDate] += b.Qty
	}

	if len(lineDayQty) > 0 {
		total := 0
		for _, q := range lineDayQty {
			total += q
		}
		stat.AvgLineLoad = float64(total) / float64(len(lineDayQty))
	}

	if plan.KPI.TardinessMinutes <= 0 || len(orders) == 0 {
		stat.OnTimeRate = 1
	} else {
		// One lost shift (480 min) per order drives the rate to zero.
		rate := 1 - float64(plan.KPI.TardinessMinutes)/float64(len(orders)*480)
		if rate < 0 {
			rate = 0
		}
		stat.OnTimeRate = rate
	}
	return stat
}
