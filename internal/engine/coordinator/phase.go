package coordinator

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
	"query-orchestrator/internal/common/metrics"
	"query-orchestrator/internal/models"
)

const dependenciesUnavailable = "all dependencies failed or were skipped"

// runPhase never panics and never returns nil.
func (c *Coordinator) runPhase(
	ctx context.Context,
	phase models.Phase,
	req Request,
	results *models.PhaseResults,
	log logger.Logger,
) (result *models.PhaseResult) {
	start := time.Now()
	log = log.WithFields(map[string]interface{}{"phase": phase.Name, "executor": phase.Executor})
	result = &models.PhaseResult{
		Name:       phase.Name,
		Executor:   phase.Executor,
		Operations: make(map[string]interface{}),
	}

	defer func() {
		if r := recover(); r != nil {
			panicErr := errors.NewPhaseExecutionError(phase.Name, fmt.Errorf("panic: %v", r))
			result.Failed = true
			result.Errors = append(result.Errors, models.PhaseError{
				Phase:   phase.Name,
				Code:    string(panicErr.Code),
				Message: panicErr.Details,
			})
			log.Error("phase panicked", map[string]interface{}{"panic": fmt.Sprintf("%v", r)})
		}
		result.DurationMs = time.Since(start).Milliseconds()
		metrics.PhaseDuration.WithLabelValues(phase.Name).Observe(time.Since(start).Seconds())
		switch {
		case result.Skipped:
			metrics.PhaseFailures.WithLabelValues(phase.Name, "skipped").Inc()
		case result.Failed:
			metrics.PhaseFailures.WithLabelValues(phase.Name, "failed").Inc()
		}
	}()

	deps, ok := dependencyResults(phase, results)
	if !ok {
		result.Skipped = true
		result.Errors = append(result.Errors, models.PhaseError{
			Phase:   phase.Name,
			Code:    string(errors.ErrCodePhaseSkipped),
			Message: dependenciesUnavailable,
		})
		log.Warn("phase skipped", map[string]interface{}{"dependencies": phase.Dependencies})
		return result
	}

	attempted, failed := c.runOperations(ctx, phase, req, result, log)

	if phase.Executor == "" {
		if attempted > 0 && failed == attempted {
			result.Failed = true
		}
		return result
	}

	prompt := BuildPrompt(phase, req.Analysis, deps, result.Operations)
	raw, err := c.reasoning.Invoke(ctx, phase.Executor, prompt)
	if err != nil {
		result.Failed = true
		result.Errors = append(result.Errors, models.PhaseError{
			Phase:   phase.Name,
			Code:    string(reasoningErrorCode(ctx, err)),
			Message: err.Error(),
		})
		log.Error("reasoning step failed", map[string]interface{}{"error": err.Error()})
		return result
	}
	result.Output = models.ParseReasoningOutput(raw)
	if result.Output.Kind == models.OutputParseFailed {
		log.Warn("reasoning output looked like JSON but did not parse", nil)
	}
	log.Debug("phase completed", map[string]interface{}{
		"operations": len(result.Operations),
		"cacheHits":  result.CacheHits,
		"outputKind": string(result.Output.Kind),
	})
	return result
}

// dependencyResults returns the usable results of the phase's dependencies.
// ok is false when the phase has dependencies and none of them is usable.
func dependencyResults(phase models.Phase, results *models.PhaseResults) (map[string]*models.PhaseResult, bool) {
	deps := make(map[string]*models.PhaseResult, len(phase.Dependencies))
	for _, name := range phase.Dependencies {
		if r, ok := results.Get(name); ok && r.Usable() {
			deps[name] = r
		}
	}
	return deps, len(phase.Dependencies) == 0 || len(deps) > 0
}

// runOperations executes every capability of the phase through the cache.
// Failures are recorded on the result and the data left out.
func (c *Coordinator) runOperations(
	ctx context.Context,
	phase models.Phase,
	req Request,
	result *models.PhaseResult,
	log logger.Logger,
) (attempted, failed int) {
	for _, opID := range phase.Capabilities {
		calls := OperationParams(opID, req.Analysis)
		values := make([]interface{}, 0, len(calls))
		for _, params := range calls {
			attempted++
			params := params
			value, hit, err := c.cache.Fetch(ctx, opID, params, req.Cache, func(ctx context.Context) (interface{}, error) {
				return c.operations.Call(ctx, opID, params)
			})
			if err != nil {
				failed++
				result.Errors = append(result.Errors, models.PhaseError{
					Phase:     phase.Name,
					Operation: opID,
					Code:      string(operationErrorCode(ctx, err)),
					Message:   err.Error(),
				})
				log.Warn("operation failed", map[string]interface{}{"operation": opID, "error": err.Error()})
				continue
			}
			if hit {
				result.CacheHits++
			}
			values = append(values, value)
		}
		switch {
		case len(values) == 0:
		case len(calls) == 1:
			result.Operations[opID] = values[0]
		default:
			result.Operations[opID] = values
		}
	}
	return attempted, failed
}

func reasoningErrorCode(ctx context.Context, err error) errors.ErrorCode {
	if code := errors.CodeOf(err); code != errors.ErrCodeInternal {
		return code
	}
	if stdErrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.ErrCodeReasoningTimeout
	}
	return errors.ErrCodeReasoningFailed
}

func operationErrorCode(ctx context.Context, err error) errors.ErrorCode {
	if code := errors.CodeOf(err); code != errors.ErrCodeInternal {
		return code
	}
	if stdErrors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return errors.ErrCodeOperationTimeout
	}
	return errors.ErrCodeOperationFailed
}
