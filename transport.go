package halcyon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/halcyonai/halcyon/internal/httpx"
)

// StreamRequest is the immutable outbound descriptor for one streaming call:
// method, URL, headers (bearer token and optional organization), body bytes,
// and timeout. It is built once by the client and never mutated afterwards.
type StreamRequest struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// StreamTransport opens a streaming connection and hands back the response
// byte stream. The returned reader delivers bytes in arrival order; closing
// it releases the connection. Implementations must honor ctx cancellation
// both while connecting and while the body is being read.
//
// The default implementation uses net/http. Replace it per client with
// [Client.WithStreamTransport] to fake streams in tests.
type StreamTransport interface {
	Open(ctx context.Context, request StreamRequest) (io.ReadCloser, error)
}

// httpStreamTransport is the production StreamTransport backed by net/http.
type httpStreamTransport struct {
	client *http.Client
}

// Open issues the request and returns the response body open for incremental
// reading. Non-2xx responses are fully read, closed, and returned as an
// error (decoded into *APIError when the body carries the error envelope).
// Request.Timeout, when set, bounds the connection phase up to response
// headers; it does not limit how long the stream itself may run.
func (t *httpStreamTransport) Open(ctx context.Context, request StreamRequest) (io.ReadCloser, error) {
	httpClient := t.client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, request.Method, request.URL, bytes.NewReader(request.Body))
	if err != nil {
		return nil, fmt.Errorf("error creating stream request: %w", err)
	}
	for key, values := range request.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	if request.Timeout > 0 {
		// The timer only covers the connection phase: it is stopped as soon
		// as response headers arrive, and the derived context stays alive for
		// the body (it dies with ctx when the session completes).
		connectCtx, cancel := context.WithCancel(ctx)
		timer := time.AfterFunc(request.Timeout, cancel)
		req = req.WithContext(connectCtx)
		defer timer.Stop()
	}

	response, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error opening stream: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer httpx.CloseWithLog(response.Body)
		errorBody, readErr := io.ReadAll(io.LimitReader(response.Body, 1<<20))
		if readErr != nil {
			return nil, fmt.Errorf("non-2xx status %d (failed to read body: %v)", response.StatusCode, readErr)
		}
		return nil, wrapAPIError(&httpx.StatusError{StatusCode: response.StatusCode, Body: errorBody})
	}

	return response.Body, nil
}

// newStreamRequest builds the outbound descriptor for a streaming POST to
// the named API path.
func (c *Client) newStreamRequest(path string, body []byte) StreamRequest {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.organization != "" {
		header.Set(organizationHeader, c.organization)
	}

	return StreamRequest{
		Method:  http.MethodPost,
		URL:     c.endpointURL(path),
		Header:  header,
		Body:    body,
		Timeout: c.timeout,
	}
}

// marshalStreamBody serializes a streaming request payload.
func marshalStreamBody(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling stream request body: %w", err)
	}
	return body, nil
}
