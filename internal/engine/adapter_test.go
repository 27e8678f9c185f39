package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// fakeRPC returns canned results or errors per method.
type fakeRPC struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeRPC) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	f.calls = append(f.calls, method)
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("call without deadline")
	}
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	raw, err := json.Marshal(f.results[method])
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func testClient(f *fakeRPC) *Client {
	return NewClient(f, Config{CallTimeout: time.Second, PingTimeout: time.Second}, testLogger())
}

func TestPollStatus_Absent(t *testing.T) {
	f := &fakeRPC{errs: map[string]error{
		"Scheduler.query_job": &RPCError{Name: "NotFound", Code: ErrCodeNotFound, Message: "no such job"},
	}}
	c := testClient(f)

	status, err := c.PollStatus(context.Background(), "eng-unknown")
	if err != nil {
		t.Fatalf("unknown engine job must not be an error, got %v", err)
	}
	if status != nil {
		t.Errorf("status = %+v, want nil (absent)", status)
	}
}

func TestPollStatus_EngineError(t *testing.T) {
	f := &fakeRPC{errs: map[string]error{
		"Scheduler.query_job": &RPCError{Name: "Internal", Code: -32603, Message: "db unavailable"},
	}}
	c := testClient(f)

	_, err := c.PollStatus(context.Background(), "eng-1")
	if err == nil {
		t.Fatal("expected error")
	}
	engErr := AsEngineError(err)
	if engErr == nil {
		t.Fatalf("expected *engine.Error, got %T: %v", err, err)
	}
	if engErr.Code != -32603 || engErr.Message != "db unavailable" {
		t.Errorf("error = %+v, original code/message must be preserved", engErr)
	}
}

func TestPollStatus_Completed(t *testing.T) {
	f := &fakeRPC{results: map[string]any{
		"Scheduler.query_job": JobStatus{
			EngineJobID: "eng-1",
			Status:      StatusCompleted,
			Result: &SolveResult{
				RequestID: "job_1",
				KPI:       KPI{Cost: 10},
				Entries:   []ScheduleEntry{{OrderID: "PO-1", LineID: "L1", BizDate: "2026-02-02", ShiftCode: "A", Seq: 1, Qty: 5}},
			},
		},
	}}
	c := testClient(f)

	status, err := c.PollStatus(context.Background(), "eng-1")
	if err != nil {
		t.Fatalf("PollStatus: %v", err)
	}
	if status == nil || status.Status != StatusCompleted || status.Result == nil {
		t.Fatalf("status = %+v", status)
	}
	if len(status.Result.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(status.Result.Entries))
	}
}

func TestSubmitAsync(t *testing.T) {
	f := &fakeRPC{results: map[string]any{
		"Scheduler.submit_job": submitReply{EngineJobID: "eng-7", Message: "queued"},
	}}
	c := testClient(f)

	id, err := c.SubmitAsync(context.Background(), &SolveRequest{RequestID: "job_1"})
	if err != nil {
		t.Fatalf("SubmitAsync: %v", err)
	}
	if id != "eng-7" {
		t.Errorf("engine job id = %q, want eng-7", id)
	}
}

func TestSubmitAsync_NoJobID(t *testing.T) {
	f := &fakeRPC{results: map[string]any{
		"Scheduler.submit_job": submitReply{Message: "accepted"},
	}}
	c := testClient(f)

	if _, err := c.SubmitAsync(context.Background(), &SolveRequest{}); err == nil {
		t.Fatal("expected error when engine returns no job id")
	}
}

func TestSolveSync(t *testing.T) {
	f := &fakeRPC{results: map[string]any{
		"Scheduler.solve": SolveResult{
			RequestID:     "job_9",
			EngineVersion: "2.4.1",
			KPI:           KPI{Cost: 55, TardinessMinutes: 12},
			Entries:       []ScheduleEntry{{OrderID: "PO-1", Seq: 1}},
			Violations:    []Violation{{Type: "LATE_DELIVERY", Severity: "WARNING", Message: "12 minutes late"}},
		},
	}}
	c := testClient(f)

	result, err := c.SolveSync(context.Background(), &SolveRequest{RequestID: "job_9"})
	if err != nil {
		t.Fatalf("SolveSync: %v", err)
	}
	if result.EngineVersion != "2.4.1" || len(result.Violations) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestHealthCheck(t *testing.T) {
	ok := testClient(&fakeRPC{results: map[string]any{"Scheduler.ping": "pong"}})
	if !ok.HealthCheck(context.Background()) {
		t.Error("healthy engine reported unhealthy")
	}

	down := testClient(&fakeRPC{errs: map[string]error{"Scheduler.ping": errors.New("connection refused")}})
	if down.HealthCheck(context.Background()) {
		t.Error("unreachable engine reported healthy")
	}
}

func TestListJobs(t *testing.T) {
	f := &fakeRPC{results: map[string]any{
		"Scheduler.list_jobs": []JobSummary{{EngineJobID: "eng-1", Status: StatusRunning}},
	}}
	c := testClient(f)

	jobs, err := c.ListJobs(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].EngineJobID != "eng-1" {
		t.Errorf("jobs = %+v", jobs)
	}
}

func TestEveryCallCarriesDeadline(t *testing.T) {
	// fakeRPC rejects calls without deadlines, so exercising each adapter
	// method proves the deadline is applied.
	f := &fakeRPC{results: map[string]any{
		"Scheduler.solve":      SolveResult{},
		"Scheduler.submit_job": submitReply{EngineJobID: "e"},
		"Scheduler.query_job":  JobStatus{Status: StatusQueued},
		"Scheduler.stop_job":   "ok",
		"Scheduler.list_jobs":  []JobSummary{},
		"Scheduler.ping":       "pong",
	}}
	c := testClient(f)
	ctx := context.Background()

	if _, err := c.SolveSync(ctx, &SolveRequest{}); err != nil {
		t.Errorf("SolveSync without deadline: %v", err)
	}
	if _, err := c.SubmitAsync(ctx, &SolveRequest{}); err != nil {
		t.Errorf("SubmitAsync without deadline: %v", err)
	}
	if _, err := c.PollStatus(ctx, "e"); err != nil {
		t.Errorf("PollStatus without deadline: %v", err)
	}
	if err := c.Cancel(ctx, "e"); err != nil {
		t.Errorf("Cancel without deadline: %v", err)
	}
	if _, err := c.ListJobs(ctx, 1); err != nil {
		t.Errorf("ListJobs without deadline: %v", err)
	}
	if !c.HealthCheck(ctx) {
		t.Error("HealthCheck without deadline failed")
	}
}
