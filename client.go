package halcyon

import (
	"context"
	"net/http"
	"time"

	"github.com/halcyonai/halcyon/observability"
)

const defaultBaseURL = "https://api.openai.com/v1"

// organizationHeader identifies the billing organization on every request
// when one is configured.
const organizationHeader = "OpenAI-Organization"

// Client is a typed client for an OpenAI-compatible API. It is safe for
// concurrent use: any number of streaming and non-streaming calls may run
// simultaneously on one client, each on its own connection. The zero value is
// not usable; construct with [NewClient] or [NewClientFromEnv].
type Client struct {
	apiKey       string
	organization string
	baseURL      string
	timeout      time.Duration
	httpClient   *http.Client
	transport    StreamTransport
	registry     *streamRegistry
	observer     observability.Observer
}

// NewClient creates a client authenticating with the given API key.
func NewClient(apiKey string) *Client {
	client := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		registry:   newStreamRegistry(),
	}
	client.transport = &httpStreamTransport{client: client.httpClient}
	return client
}

// WithAPIKey sets the API key used for authenticating requests.
func (c *Client) WithAPIKey(apiKey string) *Client {
	c.apiKey = apiKey
	return c
}

// WithOrganization sets the optional organization identifier sent with every
// request.
func (c *Client) WithOrganization(organization string) *Client {
	c.organization = organization
	return c
}

// WithBaseURL overrides the default base URL for API requests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// WithTimeout bounds each non-streaming call. Streaming calls are unaffected:
// an active stream runs until its terminator, transport close, or
// cancellation, with no idle timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	return c
}

// WithHTTPClient sets the HTTP client used for outbound requests.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	c.transport = &httpStreamTransport{client: httpClient}
	return c
}

// WithStreamTransport replaces the byte-stream transport used by streaming
// calls. Intended for tests and custom connection handling.
func (c *Client) WithStreamTransport(transport StreamTransport) *Client {
	c.transport = transport
	return c
}

// WithObserver attaches an observer that receives telemetry from every call
// on this client. An observer already carried by a call's context takes
// precedence.
func (c *Client) WithObserver(observer observability.Observer) *Client {
	c.observer = observer
	return c
}

// ActiveStreams reports the number of streaming sessions currently running
// on this client.
func (c *Client) ActiveStreams() int {
	return c.registry.size()
}

// CancelStreams aborts every active streaming session. Each aborted session
// still delivers its single completion callback, carrying the cancellation
// error.
func (c *Client) CancelStreams() {
	c.registry.cancelAll()
}

// callContext returns ctx carrying the client's observer, unless the caller
// already attached one.
func (c *Client) callContext(ctx context.Context) context.Context {
	if c.observer == nil || observability.ObserverFromContext(ctx) != nil {
		return ctx
	}
	return observability.ContextWithObserver(ctx, c.observer)
}

// endpointURL maps a named API path to a full URL on the configured host.
func (c *Client) endpointURL(path string) string {
	return c.baseURL + path
}

// syncClient returns the HTTP client for non-streaming calls, applying the
// configured per-call timeout.
func (c *Client) syncClient() *http.Client {
	if c.timeout <= 0 {
		return c.httpClient
	}
	clone := *c.httpClient
	clone.Timeout = c.timeout
	return &clone
}
