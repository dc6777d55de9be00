package halcyon

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/halcyonai/halcyon/internal/httpx"
)

// ErrEmptyResponse reports a successful HTTP response whose body was empty
// where a JSON document was required. It is surfaced once per call and never
// retried.
var ErrEmptyResponse = httpx.ErrEmptyBody

// APIError is the structured error object returned by the API, either as a
// non-2xx response body or framed as a payload on a streaming response.
type APIError struct {
	Message string  `json:"message"`
	Type    string  `json:"type,omitempty"`
	Param   *string `json:"param,omitempty"`
	Code    any     `json:"code,omitempty"`

	// StatusCode is the HTTP status the error arrived with, or zero when the
	// error was framed as a stream payload on a 200 response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "api error: " + e.Message
}

// apiErrorEnvelope is the wire framing for API errors: {"error": {...}}.
type apiErrorEnvelope struct {
	Error *APIError `json:"error,omitempty"`
}

// wrapAPIError upgrades a non-2xx transport error into a *APIError when the
// response body carries the API's error envelope. Errors of any other shape
// pass through unchanged.
func wrapAPIError(err error) error {
	var statusErr *httpx.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}

	var envelope apiErrorEnvelope
	if json.Unmarshal(statusErr.Body, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		envelope.Error.StatusCode = statusErr.StatusCode
		return envelope.Error
	}
	return err
}
