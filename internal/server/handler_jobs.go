package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/goaps/pkg/model"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var spec model.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, reqID, model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	job, err := s.jobs.CreateJob(r.Context(), spec)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Status = r.URL.Query().Get("status")
	opts.Clamp()

	jobs, total, err := s.store.ListJobs(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, err)
		return
	}

	respondList(w, reqID, jobs, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, model.NewNotFoundError("job", id))
		return
	}
	respondOK(w, reqID, job)
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.jobs.RunJob(r.Context(), id); err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "status": model.JobStatusRunning})
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.jobs.StopJob(r.Context(), id); err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "status": model.JobStatusFailed})
}

// handleSolveJob runs the synchronous solve path: submit, wait, materialize.
// Meant for short demo jobs; production traffic uses /run.
func (s *Server) handleSolveJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	plan, err := s.jobs.SolveNow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, plan)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := s.jobs.DeleteJob(r.Context(), id); err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleListJobPlans(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	if job == nil {
		respondError(w, reqID, model.NewNotFoundError("job", id))
		return
	}

	plans, err := s.store.ListPlansByJob(r.Context(), id)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, plans)
}
