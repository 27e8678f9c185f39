package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Adapter is the stable interface to the external optimization engine.
// Every call carries a bounded deadline; no call blocks indefinitely.
// The adapter performs no retries: solver calls are expensive and not
// idempotent, so retry policy belongs to the caller.
type Adapter interface {
	// SolveSync runs a full synchronous solve. Intended for short test and
	// demo invocations only; production submissions go through SubmitAsync.
	SolveSync(ctx context.Context, req *SolveRequest) (*SolveResult, error)

	// SubmitAsync queues a solve on the engine and returns its job id.
	SubmitAsync(ctx context.Context, req *SolveRequest) (string, error)

	// PollStatus queries an engine job. An unknown or expired id returns
	// (nil, nil): absence, not an error.
	PollStatus(ctx context.Context, engineJobID string) (*JobStatus, error)

	// Cancel asks the engine to stop a job. Best effort: the engine gives
	// no durable cancellation guarantee.
	Cancel(ctx context.Context, engineJobID string) error

	// ListJobs returns up to limit recent engine jobs.
	ListJobs(ctx context.Context, limit int) ([]JobSummary, error)

	// HealthCheck reports engine reachability. It never returns an error;
	// any failure reads as false.
	HealthCheck(ctx context.Context) bool
}

// Config bounds adapter calls.
type Config struct {
	CallTimeout time.Duration // applied to every solver call
	PingTimeout time.Duration // applied to health checks
}

// DefaultConfig returns the production deadlines.
func DefaultConfig() Config {
	return Config{
		CallTimeout: 300 * time.Second,
		PingTimeout: 10 * time.Second,
	}
}

// Client implements Adapter over a JSON-RPC caller.
type Client struct {
	rpc    RPCCaller
	config Config
	logger *slog.Logger
}

// NewClient creates an engine adapter.
func NewClient(rpc RPCCaller, cfg Config, logger *slog.Logger) *Client {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultConfig().CallTimeout
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = DefaultConfig().PingTimeout
	}
	return &Client{
		rpc:    rpc,
		config: cfg,
		logger: logger.With("component", "engine"),
	}
}

// call applies the per-call deadline and translates RPC errors.
func (c *Client) call(ctx context.Context, op, method string, timeout time.Duration, params ...any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := c.rpc.Call(ctx, method, params)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			return nil, fromRPCError(op, rpcErr)
		}
		return nil, wrapError(op, err)
	}
	return raw, nil
}

func (c *Client) SolveSync(ctx context.Context, req *SolveRequest) (*SolveResult, error) {
	raw, err := c.call(ctx, "SolveSync", "Scheduler.solve", c.config.CallTimeout, req)
	if err != nil {
		return nil, err
	}

	var result SolveResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, wrapError("SolveSync", fmt.Errorf("unmarshal result: %w", err))
	}
	c.logger.Debug("solve completed", "request_id", result.RequestID, "entries", len(result.Entries))
	return &result, nil
}

func (c *Client) SubmitAsync(ctx context.Context, req *SolveRequest) (string, error) {
	raw, err := c.call(ctx, "SubmitAsync", "Scheduler.submit_job", c.config.CallTimeout, req)
	if err != nil {
		return "", err
	}

	var reply submitReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", wrapError("SubmitAsync", fmt.Errorf("unmarshal reply: %w", err))
	}
	if reply.EngineJobID == "" {
		return "", &Error{Op: "SubmitAsync", Message: "engine returned no job id"}
	}
	c.logger.Info("job submitted", "engine_job_id", reply.EngineJobID, "request_id", req.RequestID)
	return reply.EngineJobID, nil
}

func (c *Client) PollStatus(ctx context.Context, engineJobID string) (*JobStatus, error) {
	raw, err := c.call(ctx, "PollStatus", "Scheduler.query_job", c.config.CallTimeout, engineJobID)
	if err != nil {
		// Unknown id means absent, not failure: callers treat it as
		// "expired or lost" and leave reclaiming to the timeout sweep.
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var status JobStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, wrapError("PollStatus", fmt.Errorf("unmarshal status: %w", err))
	}
	return &status, nil
}

func (c *Client) Cancel(ctx context.Context, engineJobID string) error {
	_, err := c.call(ctx, "Cancel", "Scheduler.stop_job", c.config.CallTimeout, engineJobID)
	return err
}

func (c *Client) ListJobs(ctx context.Context, limit int) ([]JobSummary, error) {
	raw, err := c.call(ctx, "ListJobs", "Scheduler.list_jobs", c.config.CallTimeout, limit)
	if err != nil {
		return nil, err
	}

	var jobs []JobSummary
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, wrapError("ListJobs", fmt.Errorf("unmarshal summaries: %w", err))
	}
	return jobs, nil
}

func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.call(ctx, "HealthCheck", "Scheduler.ping", c.config.PingTimeout)
	if err != nil {
		c.logger.Debug("engine health check failed", "error", err)
		return false
	}
	return true
}
