package errors

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrorHandler provides interface-specific error handling
type ErrorHandler interface {
	HandleError(err error) error
	FormatError(err error) string
}

// CLIErrorHandler handles errors for CLI interface
type CLIErrorHandler struct {
	Verbose bool
	Logger  *slog.Logger
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler(verbose bool, logger *slog.Logger) *CLIErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorHandler{
		Verbose: verbose,
		Logger:  logger,
	}
}

// HandleError logs err when verbose and returns it formatted for the
// terminal.
func (h *CLIErrorHandler) HandleError(err error) error {
	if err == nil {
		return nil
	}
	appErr := GetAppError(err)

	if h.Verbose {
		attrs := []any{"code", appErr.Code, "severity", appErr.Severity}
		if appErr.Cause != nil {
			attrs = append(attrs, "cause", appErr.Cause)
		}
		h.Logger.Debug(appErr.Message, attrs...)
	}

	return fmt.Errorf("%s", h.FormatError(appErr))
}

// FormatError formats an error for CLI display
func (h *CLIErrorHandler) FormatError(err error) string {
	appErr := GetAppError(err)

	message := appErr.Message
	if appErr.Details != "" {
		message = fmt.Sprintf("%s (%s)", message, appErr.Details)
	}
	if h.Verbose && appErr.Cause != nil {
		message = fmt.Sprintf("%s: %v", message, appErr.Cause)
	}

	switch appErr.Severity {
	case SeverityCritical:
		return "CRITICAL: " + message
	case SeverityError:
		return "ERROR: " + message
	case SeverityWarning:
		return "WARNING: " + message
	case SeverityInfo:
		return "INFO: " + message
	default:
		return message
	}
}

// HTTPErrorHandler handles errors for HTTP interface
type HTTPErrorHandler struct {
	IncludeDetails bool
	Logger         *slog.Logger
}

// NewHTTPErrorHandler creates a new HTTP error handler
func NewHTTPErrorHandler(includeDetails bool, logger *slog.Logger) *HTTPErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorHandler{
		IncludeDetails: includeDetails,
		Logger:         logger,
	}
}

// HandleError logs the error at a level matching its severity.
func (h *HTTPErrorHandler) HandleError(err error) error {
	appErr := GetAppError(err)

	attrs := []any{"code", appErr.Code}
	if appErr.Cause != nil {
		attrs = append(attrs, "cause", appErr.Cause)
	}
	switch appErr.Severity {
	case SeverityInfo:
		h.Logger.Debug(appErr.Message, attrs...)
	case SeverityWarning:
		h.Logger.Warn(appErr.Message, attrs...)
	default:
		h.Logger.Error(appErr.Message, attrs...)
	}

	return appErr
}

// ErrorBody is the error member of the API response envelope.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Details   string         `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Retryable bool           `json:"retryable"`
}

// Body converts err into the envelope error member.
func (h *HTTPErrorHandler) Body(err error) ErrorBody {
	appErr := GetAppError(err)
	body := ErrorBody{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
	}
	if h.IncludeDetails {
		body.Details = appErr.Details
		body.Context = appErr.Context
	}
	return body
}

// FormatError formats an error for HTTP response
func (h *HTTPErrorHandler) FormatError(err error) string {
	data, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   h.Body(err),
	})
	return string(data)
}

// WriteHTTPError logs err and writes it as an envelope with a mapped status.
func (h *HTTPErrorHandler) WriteHTTPError(w http.ResponseWriter, err error) {
	appErr := GetAppError(err)
	h.HandleError(appErr)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(appErr))
	_, _ = w.Write([]byte(h.FormatError(appErr)))
}

// HTTPStatus maps error codes to HTTP status codes
func HTTPStatus(err error) int {
	switch GetAppError(err).Code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidation, ErrCodeInvalidImportData, ErrCodeUnsupportedFormat:
		return http.StatusBadRequest
	case ErrCodeNotReady:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
