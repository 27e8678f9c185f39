package server

import (
	"net/http"
	"runtime"
	"strconv"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Engine    string `json:"engine"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	engineStatus := "unknown"
	if s.health != nil {
		if s.health.Healthy() {
			engineStatus = "reachable"
		} else {
			engineStatus = "unreachable"
		}
	} else if s.engine != nil {
		if s.engine.HealthCheck(r.Context()) {
			engineStatus = "reachable"
		} else {
			engineStatus = "unreachable"
		}
	}

	status := "healthy"
	if engineStatus == "unreachable" {
		status = "degraded"
	}

	respondOK(w, reqID, healthResponse{
		Status:    status,
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "sqlite",
		Engine:    engineStatus,
	})
}

func (s *Server) handleListEngineJobs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	jobs, err := s.engine.ListJobs(r.Context(), limit)
	if err != nil {
		respondError(w, reqID, err)
		return
	}
	respondOK(w, reqID, jobs)
}
