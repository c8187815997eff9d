// Package domainerrors defines the coded error type used across service
// boundaries. Services wrap infrastructure failures with a code and a
// caller-facing message; the HTTP layer translates codes into status codes
// and keeps internal details out of responses.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for transport mapping and audit.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"

	// Tracker-specific outcome codes. These are recoverable, local-decision
	// outcomes returned to devices and the dashboard, never process-fatal.
	CodeStaleEvent        Code = "stale_event"
	CodeUnknownPassenger  Code = "unknown_passenger"
	CodeLowConfidence     Code = "low_confidence_match"
	CodeTicketExpired     Code = "ticket_expired"
	CodeTicketIneligible  Code = "ticket_ineligible_route"
	CodeNoTicket          Code = "no_ticket"
	CodeNoActiveTrip      Code = "no_active_trip"
	CodeTripAlreadyActive Code = "trip_already_active"
	CodeTripEnded         Code = "trip_ended"
	CodeLookupFailed      Code = "lookup_failed"
)

// Error carries a classification code, a message safe to show callers, and an
// optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal if err is not a domain
// error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// MessageOf extracts the caller-facing message from err, empty if err is not
// a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should
// return. Outcome codes map to 200-family statuses on the ingest path and are
// not routed through here; this covers error responses only.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound, CodeNoActiveTrip:
		return http.StatusNotFound
	case CodeConflict, CodeTripAlreadyActive, CodeTripEnded:
		return http.StatusConflict
	case CodeStaleEvent, CodeUnknownPassenger, CodeLowConfidence,
		CodeTicketExpired, CodeTicketIneligible, CodeNoTicket:
		return http.StatusUnprocessableEntity
	case CodeUnavailable, CodeLookupFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
