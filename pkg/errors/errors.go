// Package errors provides a structured error system for SeisGate with error
// codes, categories, and request context. No raw native-layer error ever
// crosses the service boundary; everything is wrapped in a SeisGateError.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for SeisGate operations.
type ErrorCode string

const (
	// Mount / storage errors
	ErrCodeMountUnavailable ErrorCode = "MOUNT_UNAVAILABLE"
	ErrCodeMountSlow        ErrorCode = "MOUNT_SLOW"
	ErrCodeProbeTimeout     ErrorCode = "PROBE_TIMEOUT"

	// Metadata index errors
	ErrCodeIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE"
	ErrCodeIndexQuery       ErrorCode = "INDEX_QUERY"

	// Survey / request errors
	ErrCodeSurveyNotFound         ErrorCode = "SURVEY_NOT_FOUND"
	ErrCodeInvalidCoordinateRange ErrorCode = "INVALID_COORDINATE_RANGE"
	ErrCodeInvalidAxis            ErrorCode = "INVALID_AXIS"
	ErrCodePayloadTooLarge        ErrorCode = "PAYLOAD_TOO_LARGE"

	// Native volumetric runtime errors
	ErrCodeNativeExtractionFailure ErrorCode = "NATIVE_EXTRACTION_FAILURE"
	ErrCodeNativeOpenFailure       ErrorCode = "NATIVE_OPEN_FAILURE"

	// Resource / state errors
	ErrCodeWorkerBusy         ErrorCode = "WORKER_BUSY"
	ErrCodeOperationTimeout   ErrorCode = "OPERATION_TIMEOUT"
	ErrCodeOperationCanceled  ErrorCode = "OPERATION_CANCELED"
	ErrCodeShutdownInProgress ErrorCode = "SHUTDOWN_IN_PROGRESS"
	ErrCodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryMount    ErrorCategory = "mount"
	CategoryIndex    ErrorCategory = "index"
	CategoryRequest  ErrorCategory = "request"
	CategoryNative   ErrorCategory = "native"
	CategoryResource ErrorCategory = "resource"
	CategoryInternal ErrorCategory = "internal"
)

// SeisGateError represents a structured error with context and metadata.
type SeisGateError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Transient errors trigger exactly one fallback attempt per request;
	// terminal errors return immediately to the caller.
	Transient  bool `json:"transient"`
	UserFacing bool `json:"user_facing"`
}

// Error implements the error interface.
func (e *SeisGateError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *SeisGateError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target SeisGateError by code.
func (e *SeisGateError) Is(target error) bool {
	if sgErr, ok := target.(*SeisGateError); ok {
		return e.Code == sgErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *SeisGateError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.RequestID != "" {
		parts = append(parts, fmt.Sprintf("RequestID=%s", e.RequestID))
	}
	if e.Transient {
		parts = append(parts, "Transient=true")
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("SeisGateError{%s}", strings.Join(parts, ", "))
}

// New creates a new SeisGate error with defaults derived from the code.
func New(code ErrorCode, message string) *SeisGateError {
	return &SeisGateError{
		Code:       code,
		Category:   GetCategory(code),
		Message:    message,
		Timestamp:  time.Now(),
		Transient:  IsTransientByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
	}
}

// Newf creates a new SeisGate error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *SeisGateError {
	return New(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeMountUnavailable, ErrCodeMountSlow, ErrCodeProbeTimeout:
		return CategoryMount
	case ErrCodeIndexUnavailable, ErrCodeIndexQuery:
		return CategoryIndex
	case ErrCodeSurveyNotFound, ErrCodeInvalidCoordinateRange, ErrCodeInvalidAxis, ErrCodePayloadTooLarge:
		return CategoryRequest
	case ErrCodeNativeExtractionFailure, ErrCodeNativeOpenFailure:
		return CategoryNative
	case ErrCodeWorkerBusy, ErrCodeOperationTimeout, ErrCodeOperationCanceled, ErrCodeShutdownInProgress:
		return CategoryResource
	default:
		return CategoryInternal
	}
}

// IsTransientByDefault determines if an error is transient by default.
// Transient failures trigger the fallback path; they are never retried
// indefinitely.
func IsTransientByDefault(code ErrorCode) bool {
	transientCodes := map[ErrorCode]bool{
		ErrCodeMountUnavailable: true,
		ErrCodeProbeTimeout:     true,
		ErrCodeIndexUnavailable: true,
		ErrCodeWorkerBusy:       true,
		ErrCodeOperationTimeout: true,
	}
	return transientCodes[code]
}

// IsUserFacingByDefault determines if an error should be shown to users.
func IsUserFacingByDefault(code ErrorCode) bool {
	userFacingCodes := map[ErrorCode]bool{
		ErrCodeSurveyNotFound:         true,
		ErrCodeInvalidCoordinateRange: true,
		ErrCodeInvalidAxis:            true,
		ErrCodePayloadTooLarge:        true,
		ErrCodeMountUnavailable:       true,
		ErrCodeIndexUnavailable:       true,
		ErrCodeInvalidConfig:          true,
	}
	return userFacingCodes[code]
}

// As is a passthrough to the standard library so callers need only one
// errors import.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is is a passthrough to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// IsTransient reports whether err is (or wraps) a transient SeisGate error.
func IsTransient(err error) bool {
	var sgErr *SeisGateError
	if stderrors.As(err, &sgErr) {
		return sgErr.Transient
	}
	return false
}

// CodeOf returns the error code of err, unwrapping as needed, or
// ErrCodeInternalError if err is not a SeisGateError.
func CodeOf(err error) ErrorCode {
	var sgErr *SeisGateError
	if stderrors.As(err, &sgErr) {
		return sgErr.Code
	}
	return ErrCodeInternalError
}

// WithContext adds contextual information to an error.
func (e *SeisGateError) WithContext(key, value string) *SeisGateError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error.
func (e *SeisGateError) WithDetail(key string, value interface{}) *SeisGateError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error.
func (e *SeisGateError) WithComponent(component string) *SeisGateError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error.
func (e *SeisGateError) WithOperation(operation string) *SeisGateError {
	e.Operation = operation
	return e
}

// WithRequestID sets the request id for an error.
func (e *SeisGateError) WithRequestID(id string) *SeisGateError {
	e.RequestID = id
	return e
}

// WithCause sets the underlying cause.
func (e *SeisGateError) WithCause(cause error) *SeisGateError {
	e.Cause = cause
	return e
}

// UserFacingMessage returns a simplified message suitable for end users.
func (e *SeisGateError) UserFacingMessage() string {
	if !e.UserFacing {
		return "An internal error occurred. Please contact support if this persists."
	}

	messages := map[ErrorCode]string{
		ErrCodeMountUnavailable:       "Backing storage is currently unavailable",
		ErrCodeIndexUnavailable:       "Metadata index is currently unavailable; results may be partial",
		ErrCodeSurveyNotFound:         "Survey not found",
		ErrCodeInvalidCoordinateRange: "Requested coordinates are outside the survey bounds",
		ErrCodeInvalidAxis:            "Unknown axis selector",
		ErrCodePayloadTooLarge:        "Requested slice exceeds the response size limit",
		ErrCodeInvalidConfig:          "Invalid configuration",
	}

	if msg, exists := messages[e.Code]; exists {
		return msg
	}
	return e.Message
}
