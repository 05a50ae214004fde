package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/drblury/serveflow/internal/runtime/schema"
)

// HTTPError carries an explicit wire status through the request lifecycle.
// Returning one from a handler or hook short-circuits error classification:
// the reply uses the declared status, code and message instead of the
// generic 500 envelope.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
	Cause      error
}

// NewHTTPError creates an HTTPError with the given status and message.
// The code defaults to the upper-snake form of the standard status text
// and can be overwritten before the error is returned.
//
// Example:
//
//	return nil, runtime.NewHTTPError(http.StatusForbidden, "admin only")
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: status,
		Code:       statusCode(status),
		Message:    message,
	}
}

// WrapHTTPError creates an HTTPError that records the underlying cause.
// The cause is reachable through errors.Is and errors.As but never leaves
// the process in the wire envelope.
func WrapHTTPError(status int, message string, cause error) *HTTPError {
	err := NewHTTPError(status, message)
	err.Cause = cause
	return err
}

func newStatusError(status int) *HTTPError {
	return NewHTTPError(status, http.StatusText(status))
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("serveflow: http %d: %s: %v", e.StatusCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("serveflow: http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

func statusCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return ""
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// errorOutcome describes how a failed request is reported on the wire.
type errorOutcome int

const (
	// outcomeValidation renders the structured 400 envelope with one
	// entry per violation.
	outcomeValidation errorOutcome = iota

	// outcomeHTTP uses the status, code and message the error declares.
	outcomeHTTP

	// outcomeTimeout runs the timeout hooks and falls back to 408.
	outcomeTimeout

	// outcomeCanceled aborts without writing; the client is gone.
	outcomeCanceled

	// outcomeInternal is the 500 fallback for everything unclassified.
	outcomeInternal
)

// classifyError decides the wire outcome for a lifecycle error.
func classifyError(err error) errorOutcome {
	if err == nil {
		return outcomeInternal
	}

	var validation *schema.ValidationError
	if errors.As(err, &validation) {
		return outcomeValidation
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return outcomeHTTP
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return outcomeTimeout
	}

	if errors.Is(err, context.Canceled) {
		return outcomeCanceled
	}

	return outcomeInternal
}

// ErrorEnvelope is the wire form of a failed request.
type ErrorEnvelope struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

// errorEnvelope maps a lifecycle error onto its wire status and envelope.
// Unclassified errors expose their message only in development; production
// replies carry the bare status text.
func errorEnvelope(err error, development bool) (int, ErrorEnvelope) {
	switch classifyError(err) {
	case outcomeValidation:
		var validation *schema.ValidationError
		errors.As(err, &validation)
		return http.StatusBadRequest, ErrorEnvelope{
			Error:      "Validation failed",
			Code:       "VALIDATION_ERROR",
			StatusCode: http.StatusBadRequest,
			Details:    validation.Violations,
		}

	case outcomeHTTP:
		var httpErr *HTTPError
		errors.As(err, &httpErr)
		status := httpErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := httpErr.Message
		if message == "" {
			message = http.StatusText(status)
		}
		return status, ErrorEnvelope{
			Error:      message,
			Code:       httpErr.Code,
			StatusCode: status,
			Details:    httpErr.Details,
		}

	case outcomeTimeout:
		return http.StatusRequestTimeout, ErrorEnvelope{
			Error:      http.StatusText(http.StatusRequestTimeout),
			Code:       statusCode(http.StatusRequestTimeout),
			StatusCode: http.StatusRequestTimeout,
		}

	default:
		message := http.StatusText(http.StatusInternalServerError)
		if development && err != nil {
			message = err.Error()
		}
		return http.StatusInternalServerError, ErrorEnvelope{
			Error:      message,
			StatusCode: http.StatusInternalServerError,
		}
	}
}
