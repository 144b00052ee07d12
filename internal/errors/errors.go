// Package errors provides the error taxonomy shared by the repository, the
// document store and every outer surface (CLI, HTTP).
//
// Errors carry a stable ErrorCode so callers can branch on the kind of
// failure without string matching. Absence on lookups is not an error:
// Repository.Get and Update return a nil prompt and Delete returns false.
// NotFound codes are used by the store load, ToggleFavorite, and the CLI and
// HTTP lookups that turn a nil prompt into a failure.
//
// USAGE PATTERNS:
// - Create errors: use constructors like NotFoundError(), CorruptDataError()
// - Wrap errors: use Wrap() to attach a code to an underlying failure
// - Check codes: use IsCode() which walks wrapped chains via errors.As
// - Handle errors: use the CLI or HTTP handler in handlers.go
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Lookup and load
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeCorruptData ErrorCode = "CORRUPT_DATA"

	// Import and export
	ErrCodeInvalidImportData ErrorCode = "INVALID_IMPORT_DATA"
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Storage
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// Lifecycle
	ErrCodeNotReady ErrorCode = "NOT_READY"

	// Input and internal
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityInfo     ErrorSeverity = "info"
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryRepository ErrorCategory = "repository"
	CategoryStorage    ErrorCategory = "storage"
	CategorySystem     ErrorCategory = "system"
)

// AppError represents a standardized application error
type AppError struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Severity  ErrorSeverity  `json:"severity"`
	Category  ErrorCategory  `json:"category"`
	Cause     error          `json:"-"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Retryable bool           `json:"retryable"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	category, severity := categorizeError(code)
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  severity,
		Category:  category,
		Timestamp: time.Now(),
		Retryable: isRetryable(code),
	}
}

// Wrap wraps an existing error with application error context
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := NewAppError(code, message)
	appErr.Cause = err
	return appErr
}

func categorizeError(code ErrorCode) (ErrorCategory, ErrorSeverity) {
	switch code {
	case ErrCodeValidation, ErrCodeInvalidImportData, ErrCodeUnsupportedFormat:
		return CategoryValidation, SeverityWarning
	case ErrCodeNotFound:
		return CategoryRepository, SeverityInfo
	case ErrCodeNotReady:
		return CategoryRepository, SeverityError
	case ErrCodeCorruptData:
		return CategoryStorage, SeverityWarning
	case ErrCodePersistenceFailure:
		return CategoryStorage, SeverityError
	case ErrCodeInternalError:
		return CategorySystem, SeverityCritical
	default:
		return CategorySystem, SeverityError
	}
}

// isRetryable determines if an error is retryable based on its code
func isRetryable(code ErrorCode) bool {
	return code == ErrCodePersistenceFailure
}

// IsAppError checks if err or anything it wraps is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error, or converts it to one
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternalError, "Internal error occurred")
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func CorruptDataError(source string, err error) *AppError {
	return Wrap(err, ErrCodeCorruptData, fmt.Sprintf("%s is not a valid prompt library document", source))
}

func InvalidImportDataError(err error) *AppError {
	return Wrap(err, ErrCodeInvalidImportData, "Import data could not be parsed")
}

func UnsupportedFormatError(format string) *AppError {
	return NewAppError(ErrCodeUnsupportedFormat, fmt.Sprintf("Unsupported export format: %s", format))
}

func PersistenceError(operation string, err error) *AppError {
	return Wrap(err, ErrCodePersistenceFailure, fmt.Sprintf("Persistence failed: %s", operation))
}

func NotReadyError(state string) *AppError {
	return NewAppError(ErrCodeNotReady, fmt.Sprintf("Repository is not ready (state: %s)", state))
}

func ValidationError(message string) *AppError {
	return NewAppError(ErrCodeValidation, message)
}

func InternalError(message string) *AppError {
	return NewAppError(ErrCodeInternalError, message)
}
