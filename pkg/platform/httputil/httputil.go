// Package httputil centralizes JSON encoding and domain error translation so
// handlers stay thin and response envelopes stay consistent.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "github.com/sanjeevantech/bustrack/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the standard error envelope.
// Internal errors omit the description so infrastructure details never reach
// callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && message != "" {
		body["error_description"] = message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// Decode parses the request body into T, returning a bad_request domain error
// on malformed JSON. Unknown fields are rejected to catch device firmware
// drift early.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JSON body")
	}
	return v, nil
}

// Validatable lets request types run their own validation and parsing after
// decode.
type Validatable interface {
	Validate() error
}

// DecodeAndPrepare parses the body, runs Validate when the request type
// implements Validatable, and writes the error response itself on failure,
// logging it with the request ID. Returns ok=false when the handler should
// stop.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string) (*T, bool) {
	v, err := Decode[T](r)
	if err == nil {
		if val, ok := any(&v).(Validatable); ok {
			err = val.Validate()
		}
	}
	if err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "request rejected",
				"request_id", requestID,
				"path", r.URL.Path,
				"error", err,
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return &v, true
}
