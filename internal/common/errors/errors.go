// Package errors provides the structured error type shared by the HTTP API
// and the Camunda worker, plus its mapping to BPMN errors and HTTP statuses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidTargeting ErrorCode = "INVALID_TARGETING"
	ErrCodeInvalidPushToken ErrorCode = "INVALID_PUSH_TOKEN"

	ErrCodeAlertNotFound           ErrorCode = "ALERT_NOT_FOUND"
	ErrCodeUserNotFound            ErrorCode = "USER_NOT_FOUND"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeAlertNotAcknowledgeable ErrorCode = "ALERT_NOT_ACKNOWLEDGEABLE"

	ErrCodeDatabaseQueryFailed  ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
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

// NewValidationFailedError creates a non-retryable input validation error.
func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false)
}

// NewInvalidTargetingError is returned when targeting selects no criteria at all.
func NewInvalidTargetingError(details string) *StandardError {
	return newError(ErrCodeInvalidTargeting, "Targeting must set all, roles or userIds", details, false)
}

func NewInvalidPushTokenError(details string) *StandardError {
	return newError(ErrCodeInvalidPushToken, "Push token is not recognized", details, false)
}

func NewAlertNotFoundError(alertID string) *StandardError {
	return newError(ErrCodeAlertNotFound, "Alert not found", fmt.Sprintf("alertId: %s", alertID), false).
		WithMetadata("alertId", alertID)
}

// NewUserNotFoundError lists every unknown user ID in Details and Metadata.
func NewUserNotFoundError(userIDs ...string) *StandardError {
	return newError(ErrCodeUserNotFound, "User not found", fmt.Sprintf("userIds: %s", strings.Join(userIDs, ",")), false).
		WithMetadata("userIds", userIDs)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Alert status transition not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewAlertNotAcknowledgeableError(alertID, status string) *StandardError {
	return newError(ErrCodeAlertNotAcknowledgeable, "Alert was not dispatched",
		fmt.Sprintf("alertId: %s, status: %s", alertID, status), false)
}

// NewDatabaseQueryFailedError creates a retryable read error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

// NewDatabaseInsertFailedError creates a retryable write error.
func NewDatabaseInsertFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database write failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion
// ==========================

// AsStandardError unwraps err to a *StandardError, wrapping anything else
// as INTERNAL_ERROR. A nil err yields nil.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// HTTPStatus maps an error code to the HTTP status returned by the API.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidTargeting, ErrCodeInvalidPushToken:
		return http.StatusBadRequest
	case ErrCodeAlertNotFound, ErrCodeUserNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidStatusTransition, ErrCodeAlertNotAcknowledgeable:
		return http.StatusConflict
	case ErrCodeDatabaseQueryFailed, ErrCodeDatabaseInsertFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed, ErrCodeDatabaseInsertFailed:
		return 3
	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
// BPMN codes are identical to the internal codes.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "STATUS") || strings.Contains(codeStr, "ACKNOWLEDGEABLE"):
		return "STATE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
