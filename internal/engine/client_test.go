package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPRPCCaller_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "goaps-1",
			"result":  map[string]any{"engine_job_id": "eng-1"},
			"version": "1.1",
		})
	}))
	defer srv.Close()

	caller := NewHTTPRPCCaller(ClientConfig{URL: srv.URL}, testLogger())

	result, err := caller.Call(context.Background(), "Scheduler.submit_job", []any{"arg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got submitReply
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got.EngineJobID != "eng-1" {
		t.Errorf("engine_job_id = %q, want eng-1", got.EngineJobID)
	}
}

func TestHTTPRPCCaller_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id": "goaps-1",
			"error": map[string]any{
				"name":    "JSONRPCError",
				"code":    -32000,
				"message": "solver queue full",
			},
			"version": "1.1",
		})
	}))
	defer srv.Close()

	caller := NewHTTPRPCCaller(ClientConfig{URL: srv.URL}, testLogger())

	_, err := caller.Call(context.Background(), "Scheduler.submit_job", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32000 || rpcErr.Message != "solver queue full" {
		t.Errorf("RPCError = %+v", rpcErr)
	}
}

func TestHTTPRPCCaller_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	caller := NewHTTPRPCCaller(ClientConfig{URL: srv.URL}, testLogger())

	_, err := caller.Call(context.Background(), "Scheduler.ping", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestHTTPRPCCaller_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "goaps-1",
			"result": "pong",
		})
	}))
	defer srv.Close()

	caller := NewHTTPRPCCaller(ClientConfig{URL: srv.URL, Token: "engine-token"}, testLogger())

	_, _ = caller.Call(context.Background(), "Scheduler.ping", nil)
	if gotAuth != "engine-token" {
		t.Errorf("Authorization = %q, want engine-token", gotAuth)
	}
}

func TestHTTPRPCCaller_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block until the request context is cancelled.
		<-r.Context().Done()
	}))
	defer srv.Close()

	caller := NewHTTPRPCCaller(ClientConfig{URL: srv.URL}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := caller.Call(ctx, "Scheduler.ping", nil)
	if err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}
