// Package operations implements the external data lookups that query phases
// attach as capabilities.
package operations

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"query-orchestrator/internal/common/errors"
	httpclient "query-orchestrator/internal/common/http"
	"query-orchestrator/internal/common/logger"
)

var (
	ErrUnknownOperation = stdErrors.New("unknown operation")
	ErrMissingParameter = stdErrors.New("missing parameter")
)

// Operation performs one external lookup.
type Operation interface {
	Call(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

// OperationFunc adapts a function to Operation.
type OperationFunc func(ctx context.Context, params map[string]interface{}) (interface{}, error)

func (f OperationFunc) Call(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return f(ctx, params)
}

// TransientError marks a failure that may succeed when retried.
type TransientError struct {
	Operation string
	Err       error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Operation, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var transient *TransientError
	if stdErrors.As(err, &transient) {
		return true
	}
	var status *httpclient.StatusError
	if stdErrors.As(err, &status) {
		return status.Retryable()
	}
	var transport *url.Error
	return stdErrors.As(err, &transport)
}

// Registry dispatches operation IDs to their implementations.
type Registry struct {
	mu     sync.RWMutex
	ops    map[string]Operation
	logger logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{ops: make(map[string]Operation), logger: log}
}

// Register adds or replaces the operation for id.
func (r *Registry) Register(id string, op Operation) {
	r.mu.Lock()
	r.ops[id] = op
	r.mu.Unlock()
}

// IDs returns the registered operation IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.ops))
	for id := range r.ops {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Call runs the operation registered for operationID. Every failure comes
// back as an OPERATION_FAILED or OPERATION_TIMEOUT StandardError; transient
// failures are wrapped in TransientError and marked retryable.
func (r *Registry) Call(ctx context.Context, operationID string, params map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	op, ok := r.ops[operationID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewOperationFailedError(operationID, fmt.Errorf("%w: %s", ErrUnknownOperation, operationID))
	}

	start := time.Now()
	result, err := op.Call(ctx, params)
	if err != nil {
		r.logger.Warn("operation failed", map[string]interface{}{
			"operation":  operationID,
			"error":      err.Error(),
			"durationMs": time.Since(start).Milliseconds(),
		})
		return nil, classify(ctx, operationID, err)
	}

	r.logger.Debug("operation completed", map[string]interface{}{
		"operation":  operationID,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func classify(ctx context.Context, operationID string, err error) error {
	var stdErr *errors.StandardError
	if stdErrors.As(err, &stdErr) {
		return err
	}
	if stdErrors.Is(err, httpclient.ErrTimeout) || stdErrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.NewOperationTimeoutError(operationID)
	}
	if IsTransient(err) {
		var transient *TransientError
		if !stdErrors.As(err, &transient) {
			err = &TransientError{Operation: operationID, Err: err}
		}
		return errors.NewOperationFailedError(operationID, err)
	}
	failed := errors.NewOperationFailedError(operationID, err)
	failed.Retryable = false
	return failed
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}

func requireString(params map[string]interface{}, key string) (string, error) {
	s := stringParam(params, key)
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}
	return s, nil
}

// stringsParam accepts both []string and decoded JSON arrays.
func stringsParam(params map[string]interface{}, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
