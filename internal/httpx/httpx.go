// Package httpx contains the HTTP plumbing shared by every non-streaming
// endpoint: JSON POST/GET/DELETE helpers with typed decoding, multipart
// uploads, a binary POST for endpoints returning raw bytes, and the status
// and empty-body error values the client's error taxonomy is built on.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/halcyonai/halcyon/observability"
)

// maxResponseBodySize is the maximum response body size (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue responses.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// ErrEmptyBody reports a 2xx response whose body was empty where a JSON
// document was required. Surfaced once per call; never retried.
var ErrEmptyBody = errors.New("empty response body")

// StatusError is returned for non-2xx responses. Body holds the raw response
// bytes so callers can decode the API's structured error envelope.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status %d: %s", e.StatusCode, string(e.Body))
}

// HeaderOption is a header applied to an outgoing request, overriding any
// default header with the same key.
type HeaderOption struct {
	Key   string
	Value string
}

// CloseWithLog closes the closer, logging a warning on failure rather than
// returning it, for use in defers where the primary error takes precedence.
func CloseWithLog(closer io.Closer) {
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// DoPostSync performs a synchronous HTTP POST with a JSON body and decodes
// the response into OutputStruct.
//
// Error handling strategy:
//   - Context errors (timeout, cancellation) propagate immediately
//   - Connection failures return the wrapped transport error
//   - Non-2xx responses return a *StatusError carrying the raw body
//   - An empty 2xx body returns ErrEmptyBody
//   - JSON decode failures include a response preview for debugging
func DoPostSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	response, respBody, err := send(ctx, client, req, apiKey, len(jsonBody), headers)
	if err != nil {
		return response, nil, err
	}

	result, err := decodeBody[OutputStruct](response, respBody)
	return response, result, err
}

// DoGetSync performs a synchronous HTTP GET and decodes the response into
// OutputStruct. Same error handling strategy as [DoPostSync].
func DoGetSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	response, respBody, err := send(ctx, client, req, apiKey, 0, headers)
	if err != nil {
		return response, nil, err
	}

	result, err := decodeBody[OutputStruct](response, respBody)
	return response, result, err
}

// DoDeleteSync performs a synchronous HTTP DELETE and decodes the response
// into OutputStruct. Same error handling strategy as [DoPostSync].
func DoDeleteSync[OutputStruct any](ctx context.Context, client *http.Client, url string, apiKey string, headers ...HeaderOption) (*http.Response, *OutputStruct, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating request: %w", err)
	}

	response, respBody, err := send(ctx, client, req, apiKey, 0, headers)
	if err != nil {
		return response, nil, err
	}

	result, err := decodeBody[OutputStruct](response, respBody)
	return response, result, err
}

// DoPostBinary performs a synchronous HTTP POST with a JSON body and returns
// the raw response bytes, for endpoints that answer with binary content
// (e.g. synthesized audio).
func DoPostBinary(ctx context.Context, client *http.Client, url string, apiKey string, body any, headers ...HeaderOption) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, respBody, err := send(ctx, client, req, apiKey, len(jsonBody), headers)
	if err != nil {
		return nil, err
	}
	return respBody, nil
}

// send executes the request with shared auth, observability, status checking,
// and body handling. The response body is fully read and closed.
func send(ctx context.Context, client *http.Client, req *http.Request, apiKey string, requestBodySize int, headers []HeaderOption) (*http.Response, []byte, error) {
	span := observability.SpanFromContext(ctx)

	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for _, header := range headers {
		req.Header.Set(header.Key, header.Value)
	}

	if span != nil {
		span.AddEvent(observability.EventRequestPrepared,
			observability.String(observability.AttrHTTPMethod, req.Method),
			observability.String(observability.AttrHTTPURL, req.URL.String()),
			observability.Int(observability.AttrHTTPRequestBodySize, requestBodySize),
		)
	}

	requestStart := time.Now()
	response, err := httpClient.Do(req)
	requestDuration := time.Since(requestStart)

	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventResponseReceived,
				observability.Error(err),
				observability.Duration(observability.AttrDuration, requestDuration),
			)
		}
		return response, nil, fmt.Errorf("error sending request: %w", err)
	}
	defer CloseWithLog(response.Body)

	// Cap body reads to prevent unbounded memory allocation.
	respBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return response, nil, fmt.Errorf("error reading response body: %w", err)
	}

	if span != nil {
		span.AddEvent(observability.EventResponseReceived,
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(respBody)),
			observability.Duration(observability.AttrDuration, requestDuration),
		)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return response, nil, &StatusError{StatusCode: response.StatusCode, Body: respBody}
	}

	return response, respBody, nil
}

// decodeBody unmarshals a complete response body, mapping an empty body to
// ErrEmptyBody and including a preview of undecodable payloads.
func decodeBody[OutputStruct any](response *http.Response, respBody []byte) (*OutputStruct, error) {
	if len(respBody) == 0 {
		return nil, ErrEmptyBody
	}

	var result OutputStruct
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body (status %d): %w\nResponse preview: %s",
			response.StatusCode, err, observability.TruncateString(string(respBody), 500))
	}
	return &result, nil
}
