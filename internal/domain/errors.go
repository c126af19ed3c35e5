package domain

import (
	"fmt"
	"time"
)

// Error codes for the distinct failure scenarios of an evaluation.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeRenderFailure    = "RENDER_ERROR"
	ErrCodeStorage          = "STORAGE_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_SERVER_ERROR"
)

// APIError is the standardized error response surfaced to callers.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError reports a metric outside its physiological bounds, naming
// the offending field so the caller never has to re-derive partial state.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ModelError reports that the external prediction capability could not be
// invoked. It is fatal to the evaluation: interpretation and report
// compilation need a prediction to proceed.
type ModelError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("prediction model unavailable (%s): %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying transport or protocol error.
func (e *ModelError) Unwrap() error {
	return e.Err
}

// RenderError reports that the report compiler could not produce a complete
// byte stream. It is distinct from validation and model errors: the patient
// data and risk factors were already validly computed when it occurs.
type RenderError struct {
	Section string
	Err     error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("report rendering failed in section %q: %v", e.Section, e.Err)
	}
	return fmt.Sprintf("report rendering failed: %v", e.Err)
}

// Unwrap exposes the underlying rendering error.
func (e *RenderError) Unwrap() error {
	return e.Err
}
