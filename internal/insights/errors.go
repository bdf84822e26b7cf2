package insights

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// APIError represents a non-2xx response from the Insights API.
// Callers should prefer the predicate functions (IsNotFound, IsUnauthorized, etc.)
// to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	code       string
	message    string
	body       []byte
}

func (e *APIError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, code, message string, body []byte) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		code:       code,
		message:    message,
		body:       body,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code returns the API error code (e.g. "ReportNotFound"), if the body carried one.
func (e *APIError) Code() string { return e.code }

// Message returns the human-readable error message.
func (e *APIError) Message() string { return e.message }

// Body returns the raw response body, unmodified.
func (e *APIError) Body() []byte { return e.body }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// TransportError is returned when the request never produced an HTTP response
// (DNS, connection refused, TLS, reading the body).
type TransportError struct {
	Operation string
	URL       string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidResponseError is returned for a 2xx response whose body does not have
// the shape the operation expects.
type InvalidResponseError struct {
	Operation string
	Reason    string
	Body      []byte
	Err       error
}

func (e *InvalidResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: invalid response: %s: %v", e.Operation, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: invalid response: %s", e.Operation, e.Reason)
}

func (e *InvalidResponseError) Unwrap() error { return e.Err }

// PaginationError is returned when a list query exceeds the page limit or a
// next link points back to a page that was already fetched.
type PaginationError struct {
	Operation string
	Pages     int
	URL       string
	Reason    string
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("%s: pagination stopped after %d pages at %s: %s", e.Operation, e.Pages, e.URL, e.Reason)
}

// TimeoutError is returned by the Poller when the deadline passes while the
// job is still in a non-terminal state.
type TimeoutError struct {
	JobID     string
	Timeout   time.Duration
	Elapsed   time.Duration
	LastState ExtractionState
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extraction %s: timed out after %s (timeout %s), last state %s",
		e.JobID, e.Elapsed.Round(time.Millisecond), e.Timeout, e.LastState)
}

// PollError is returned by the Poller when a status request fails. The job
// state is unknown, not necessarily failed.
type PollError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("extraction %s: poll %d failed, status unknown: %v", e.JobID, e.Attempt, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// HasErrorCode reports whether err is an API error whose error code matches.
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.code == code
}

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsInvalidResponse reports whether err is a response-shape mismatch.
func IsInvalidResponse(err error) bool {
	var iErr *InvalidResponseError
	return errors.As(err, &iErr)
}

// IsTimeout reports whether err is a Poller deadline error.
func IsTimeout(err error) bool {
	var tErr *TimeoutError
	return errors.As(err, &tErr)
}
