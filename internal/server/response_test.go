package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/pkg/model"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()
	var resp model.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "error" || resp.Error == nil {
		t.Fatalf("expected error envelope, got status=%q error=%v", resp.Status, resp.Error)
	}
	return resp.Error
}

func TestRespondError_DeadlineExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, "req_test", fmt.Errorf("solve job_1: %w", context.DeadlineExceeded))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != model.ErrTimeout {
		t.Errorf("code = %s, want TIMEOUT", apiErr.Code)
	}
}

func TestRespondError_EngineDeadlineExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &engine.Error{Op: "solve_sync", Message: "engine call timed out", Err: context.DeadlineExceeded}
	respondError(rec, "req_test", err)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != model.ErrTimeout {
		t.Errorf("code = %s, want TIMEOUT", apiErr.Code)
	}
}

func TestRespondError_EngineError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, "req_test", &engine.Error{Op: "submit", Code: -32000, Message: "boom"})

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != model.ErrEngine {
		t.Errorf("code = %s, want ENGINE_ERROR", apiErr.Code)
	}
}
