// Package errors provides standardized error handling for BPMN workflow integration.
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
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeDriverNotFound         ErrorCode = "DRIVER_NOT_FOUND"
	ErrCodeDriverLookupFailed     ErrorCode = "DRIVER_LOOKUP_FAILED"
	ErrCodeAdminLookupFailed      ErrorCode = "ADMIN_LOOKUP_FAILED"
	ErrCodeStatusTransitionFailed ErrorCode = "STATUS_TRANSITION_FAILED"

	ErrCodeVerificationPersistFailed ErrorCode = "VERIFICATION_PERSIST_FAILED"

	ErrCodeAuditRecordFailed ErrorCode = "AUDIT_RECORD_FAILED"

	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeCompletionExhausted ErrorCode = "KYC_COMPLETION_EXHAUSTED"

	ErrCodeWorkflowEngineUnavailable ErrorCode = "WORKFLOW_ENGINE_UNAVAILABLE"
	ErrCodeWorkflowEngineRejected    ErrorCode = "WORKFLOW_ENGINE_REJECTED"

	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnexpectedPanic ErrorCode = "UNEXPECTED_PANIC"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandardError unwraps err to a *StandardError if one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewDriverNotFoundError creates a non-retryable error for an unknown driver.
func NewDriverNotFoundError(driverID string) *StandardError {
	return newError(ErrCodeDriverNotFound, "Driver not found", fmt.Sprintf("driverId: %s", driverID), false)
}

func NewDriverLookupFailedError(err error) *StandardError {
	return newError(ErrCodeDriverLookupFailed, "Database error during driver lookup", err.Error(), true)
}

func NewAdminLookupFailedError(err error) *StandardError {
	return newError(ErrCodeAdminLookupFailed, "Database error resolving active administrators", err.Error(), true)
}

func NewStatusTransitionFailedError(driverID string, err error) *StandardError {
	return newError(ErrCodeStatusTransitionFailed, "Verification status transition failed",
		fmt.Sprintf("driverId: %s, error: %s", driverID, err.Error()), true)
}

func NewVerificationPersistFailedError(err error) *StandardError {
	return newError(ErrCodeVerificationPersistFailed, "Verification result could not be stored", err.Error(), true)
}

// NewAuditRecordFailedError creates a retryable Elasticsearch audit error.
func NewAuditRecordFailedError(err error) *StandardError {
	return newError(ErrCodeAuditRecordFailed, "Audit record could not be indexed", err.Error(), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true)
}

// NewCompletionExhaustedError marks a completion unit that ran out of attempts.
func NewCompletionExhaustedError(driverID string, attempts int, cause string) *StandardError {
	e := newError(ErrCodeCompletionExhausted, "KYC completion permanently failed",
		fmt.Sprintf("driverId: %s, attempts: %d, cause: %s", driverID, attempts, cause), false)
	e.Metadata = map[string]interface{}{"driverId": driverID, "attempts": attempts}
	return e
}

// NewWorkflowEngineUnavailableError wraps transient Zeebe gateway failures.
func NewWorkflowEngineUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeWorkflowEngineUnavailable, "Workflow engine unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewWorkflowEngineRejectedError(operation string, err error) *StandardError {
	return newError(ErrCodeWorkflowEngineRejected, "Workflow engine rejected the command",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// NewUnexpectedPanicError wraps a recovered panic as a retryable failure.
func NewUnexpectedPanicError(recovered interface{}) *StandardError {
	return newError(ErrCodeUnexpectedPanic, "Unexpected failure", fmt.Sprintf("panic: %v", recovered), true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:                  "INVALID_INPUT",
	ErrCodeDriverNotFound:                "DRIVER_NOT_FOUND",
	ErrCodeDriverLookupFailed:            "DRIVER_LOOKUP_FAILED",
	ErrCodeAdminLookupFailed:             "ADMIN_LOOKUP_FAILED",
	ErrCodeStatusTransitionFailed:        "STATUS_TRANSITION_FAILED",
	ErrCodeVerificationPersistFailed:     "VERIFICATION_PERSIST_FAILED",
	ErrCodeAuditRecordFailed:             "AUDIT_RECORD_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeCompletionExhausted:           "KYC_COMPLETION_FAILED",
	ErrCodeWorkflowEngineUnavailable:     "WORKFLOW_ENGINE_UNAVAILABLE",
	ErrCodeWorkflowEngineRejected:        "WORKFLOW_ENGINE_REJECTED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDriverLookupFailed,
		ErrCodeAdminLookupFailed,
		ErrCodeStatusTransitionFailed,
		ErrCodeVerificationPersistFailed,
		ErrCodeAuditRecordFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeWorkflowEngineUnavailable,
		ErrCodeUnexpectedPanic:
		return 3

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
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

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsRetryable reports whether err (or a StandardError it wraps) may be retried.
// Unknown errors are treated as retryable infrastructure failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Retryable
	}
	return true
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DRIVER") || strings.Contains(codeStr, "ADMIN") || strings.Contains(codeStr, "STATUS"):
		return "DRIVER"
	case strings.Contains(codeStr, "VERIFICATION") || strings.Contains(codeStr, "KYC"):
		return "VERIFICATION"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "AUDIT"):
		return "SEARCH"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
