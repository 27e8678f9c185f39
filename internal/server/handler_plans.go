package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/me/goaps/pkg/model"
)

// getPlan loads a plan or writes the NOT_FOUND response. Returns nil when
// the response has been written.
func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) *model.Plan {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	plan, err := s.store.GetPlan(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return nil
	}
	if plan == nil {
		respondError(w, reqID, model.NewNotFoundError("plan", id))
		return nil
	}
	return plan
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), plan)
}

func (s *Server) handleListPlanBuckets(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}

	buckets, err := s.store.ListPlanBuckets(r.Context(), plan.ID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, buckets)
}

// ganttRow is one swim lane of the schedule board: a line's buckets for one
// date and shift, in sequence order.
type ganttRow struct {
	LineID    string          `json:"line_id"`
	BizDate   string          `json:"biz_date"`
	ShiftCode string          `json:"shift_code"`
	TotalQty  int             `json:"total_qty"`
	SetupMin  int             `json:"setup_minutes"`
	Buckets   []*model.Bucket `json:"buckets"`
}

func (s *Server) handlePlanGantt(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}

	buckets, err := s.store.ListPlanBuckets(r.Context(), plan.ID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	grouped := make(map[model.SlotKey]*ganttRow)
	for _, b := range buckets {
		slot := b.Slot()
		row := grouped[slot]
		if row == nil {
			row = &ganttRow{LineID: slot.LineID, BizDate: slot.BizDate, ShiftCode: slot.ShiftCode}
			grouped[slot] = row
		}
		row.Buckets = append(row.Buckets, b)
		row.TotalQty += b.Qty
		row.SetupMin += b.SetupMinutes
	}

	rows := make([]*ganttRow, 0, len(grouped))
	for _, row := range grouped {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.LineID != b.LineID {
			return a.LineID < b.LineID
		}
		if a.BizDate != b.BizDate {
			return a.BizDate < b.BizDate
		}
		return a.ShiftCode < b.ShiftCode
	})

	respondOK(w, reqID, map[string]any{
		"plan_id": plan.ID,
		"status":  plan.Status,
		"rows":    rows,
	})
}

func (s *Server) handleListPlanConflicts(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}

	conflicts, err := s.store.ListPlanConflicts(r.Context(), plan.ID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, conflicts)
}

func (s *Server) handleGetPlanStat(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}

	stat, err := s.store.GetPlanStat(r.Context(), plan.ID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	if stat == nil {
		respondError(w, reqID, model.NewNotFoundError("stat for plan", plan.ID))
		return
	}
	respondOK(w, reqID, stat)
}

func (s *Server) handleListAdjustLog(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	plan := s.getPlan(w, r)
	if plan == nil {
		return
	}

	entries, err := s.store.ListAdjustLog(r.Context(), plan.ID)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, entries)
}

func (s *Server) handleAdjustPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Changes []model.BucketChange `json:"changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	res, err := s.adjuster.Apply(r.Context(), ActorFromContext(r.Context()), id, req.Changes)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, res)
}

func (s *Server) handlePublishPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	generateOrders := r.URL.Query().Get("generate_orders") != "false"
	report, err := s.publisher.Publish(r.Context(), id, generateOrders)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, report)
}

func (s *Server) handleDiscardPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.publisher.Discard(r.Context(), id); err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "status": model.PlanStatusDiscarded})
}

func (s *Server) handleCopyPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	dst, err := s.publisher.CopyPlan(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, dst)
}

func (s *Server) handleSetBestPlan(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.publisher.SetBest(r.Context(), id); err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "is_best": true})
}
