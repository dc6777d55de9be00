package observability

// Semantic conventions for observability attributes. These constants define
// standard attribute names so every component emits consistent telemetry.

// --- API Call Attributes ---

const (
	// AttrAPIEndpoint is the named API path being called (e.g., "chat/completions")
	AttrAPIEndpoint = "api.endpoint"

	// AttrAPIModel is the model identifier in the request (e.g., "gpt-4o")
	AttrAPIModel = "api.model"

	// AttrAPIOrganization is the organization identifier sent with the request
	AttrAPIOrganization = "api.organization"
)

// --- Stream Attributes ---

const (
	// AttrStreamSessionID is the opaque identifier of a streaming session
	AttrStreamSessionID = "stream.session.id"

	// AttrStreamPayloads is the number of event payloads delivered on a stream
	AttrStreamPayloads = "stream.payloads"

	// AttrStreamDecodeFailures is the number of payloads that failed to decode
	AttrStreamDecodeFailures = "stream.decode_failures"

	// AttrStreamActiveSessions is the number of sessions currently registered
	AttrStreamActiveSessions = "stream.active_sessions"
)

// --- HTTP Attributes ---

const (
	// AttrHTTPMethod is the HTTP method (GET, POST, etc.)
	AttrHTTPMethod = "http.method"

	// AttrHTTPStatusCode is the HTTP response status code
	AttrHTTPStatusCode = "http.status_code"

	// AttrHTTPURL is the full request URL
	AttrHTTPURL = "http.url"

	// AttrHTTPRequestBodySize is the request body size in bytes
	AttrHTTPRequestBodySize = "http.request.body.size"

	// AttrHTTPResponseBodySize is the response body size in bytes
	AttrHTTPResponseBodySize = "http.response.body.size"
)

// --- General Attributes ---

const (
	// AttrError is the error message
	AttrError = "error"

	// AttrDuration is the operation duration
	AttrDuration = "duration"
)

// --- Span Names ---

const (
	// SpanAPIRequest is the span name for synchronous API requests
	SpanAPIRequest = "api.request"

	// SpanStreamSession is the span name covering one streaming session
	SpanStreamSession = "stream.session"
)

// --- Event Names ---

const (
	// EventRequestPrepared marks an outbound request body being built
	EventRequestPrepared = "http.request.prepared"

	// EventResponseReceived marks a complete response body being received
	EventResponseReceived = "http.response.received"

	// EventStreamStarted marks the streaming response beginning to arrive
	EventStreamStarted = "stream.started"

	// EventStreamCompleted marks a streaming session reaching its terminal state
	EventStreamCompleted = "stream.completed"
)
