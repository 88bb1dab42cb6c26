// Package errors provides standardized error handling for the query engine and
// its BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Request-fatal: the request cannot be analyzed or planned.
	ErrCodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	ErrCodeClassificationFailed ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodePlanningFailed       ErrorCode = "PLANNING_FAILED"

	// Degrading: recorded against a phase or swallowed.
	ErrCodePhaseExecutionFailed ErrorCode = "PHASE_EXECUTION_FAILED"
	ErrCodePhaseSkipped         ErrorCode = "PHASE_SKIPPED"
	ErrCodeCacheError           ErrorCode = "CACHE_ERROR"

	// Collaborators.
	ErrCodeReasoningTimeout ErrorCode = "REASONING_TIMEOUT"
	ErrCodeReasoningFailed  ErrorCode = "REASONING_FAILED"
	ErrCodeOperationFailed  ErrorCode = "OPERATION_FAILED"
	ErrCodeOperationTimeout ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"

	// Service layer.
	ErrCodePlaceStoreFailed         ErrorCode = "PLACE_STORE_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so errors.Is works with the
// sentinel values below.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrClassification = &StandardError{Code: ErrCodeClassificationFailed}
	ErrPlanning       = &StandardError{Code: ErrCodePlanningFailed}
	ErrInvalidRequest = &StandardError{Code: ErrCodeInvalidRequest}
)

// CodeOf returns the error code of err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid query request", details, false, nil)
}

// NewClassificationError is returned when a query cannot produce an analysis.
func NewClassificationError(details string) *StandardError {
	return newError(ErrCodeClassificationFailed, "Query could not be classified", details, false, nil)
}

// NewPlanningError is returned when no phase template exists for a query type.
func NewPlanningError(queryType string, err error) *StandardError {
	details := fmt.Sprintf("queryType: %s", queryType)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return newError(ErrCodePlanningFailed, "No execution plan for query type", details, false, err)
}

func NewPhaseExecutionError(phase string, err error) *StandardError {
	return newError(ErrCodePhaseExecutionFailed, "Phase execution failed",
		fmt.Sprintf("phase: %s, error: %s", phase, err.Error()), true, err)
}

func NewCacheError(op string, err error) *StandardError {
	return newError(ErrCodeCacheError, "Cache operation failed",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewReasoningTimeoutError(role string) *StandardError {
	return newError(ErrCodeReasoningTimeout, "Reasoning service timeout",
		fmt.Sprintf("role: %s", role), true, nil)
}

func NewReasoningFailedError(role string, err error) *StandardError {
	return newError(ErrCodeReasoningFailed, "Reasoning service error",
		fmt.Sprintf("role: %s, error: %s", role, err.Error()), true, err)
}

func NewOperationFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeOperationFailed, fmt.Sprintf("External operation '%s' failed", operation),
		err.Error(), true, err)
}

func NewOperationTimeoutError(operation string) *StandardError {
	return newError(ErrCodeOperationTimeout, fmt.Sprintf("External operation '%s' timeout", operation),
		"call exceeded its deadline", true, nil)
}

func NewPlaceStoreError(err error) *StandardError {
	return newError(ErrCodePlaceStoreFailed, "Place store write failed", err.Error(), true, err)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

// ==========================
// 4. Retry and Category Policy
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidRequest:           "INVALID_REQUEST",
	ErrCodeClassificationFailed:     "CLASSIFICATION_FAILED",
	ErrCodePlanningFailed:           "PLANNING_FAILED",
	ErrCodePhaseExecutionFailed:     "PHASE_EXECUTION_FAILED",
	ErrCodeReasoningTimeout:         "REASONING_TIMEOUT",
	ErrCodeReasoningFailed:          "REASONING_FAILED",
	ErrCodeOperationFailed:          "OPERATION_FAILED",
	ErrCodeOperationTimeout:         "OPERATION_TIMEOUT",
	ErrCodePlaceStoreFailed:         "PLACE_STORE_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:        "SEARCH_QUERY_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodePlaceStoreFailed,
		ErrCodeReasoningFailed,
		ErrCodeOperationFailed:
		return 3

	case ErrCodeReasoningTimeout,
		ErrCodeOperationTimeout:
		return 2

	case ErrCodePhaseExecutionFailed:
		return 1

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRequestFatal reports whether the error aborts a whole request. Everything
// else degrades the response instead.
func IsRequestFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeClassificationFailed, ErrCodePlanningFailed, ErrCodeInvalidRequest:
		return true
	}
	return false
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "PLANNING"):
		return "ROUTING"
	case strings.Contains(codeStr, "PHASE"):
		return "EXECUTION"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "REASONING"):
		return "AI"
	case strings.Contains(codeStr, "OPERATION") || strings.Contains(codeStr, "SEARCH"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "STORE"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}
