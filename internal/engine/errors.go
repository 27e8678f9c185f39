package engine

import (
	"errors"
	"fmt"
)

// Engine error codes (JSON-RPC server error range).
const (
	ErrCodeNotFound   = -32404 // unknown or expired engine job id
	ErrCodeInfeasible = -32460 // model proven infeasible
)

// Error wraps an engine-side failure with the original code and message.
// The adapter never retries; callers decide.
type Error struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s: [%d] %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError wraps a transport or decode failure with operation context.
func wrapError(op string, err error) *Error {
	return &Error{Op: op, Err: err, Message: err.Error()}
}

// fromRPCError converts an RPCError to an Error.
func fromRPCError(op string, rpcErr *RPCError) *Error {
	return &Error{Op: op, Code: rpcErr.Code, Message: rpcErr.Message}
}

// IsNotFound reports whether err is the engine's unknown-job condition.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNotFound
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == ErrCodeNotFound
	}
	return false
}

// IsInfeasible reports whether err is the engine's proven-infeasible
// condition for a synchronous solve.
func IsInfeasible(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeInfeasible
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == ErrCodeInfeasible
	}
	return false
}

// AsEngineError extracts a typed *Error from err, or nil.
func AsEngineError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
