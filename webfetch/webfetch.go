// Package webfetch retrieves a web page and converts its HTML to Markdown,
// producing text suitable for inclusion in model prompts. HTML is noisy input
// for language models; Markdown keeps the structure and drops the markup.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const (
	// DefaultTimeout bounds the whole fetch when the request does not set one.
	DefaultTimeout = 30 * time.Second
	// MaxBodySize caps the response body (10MB).
	MaxBodySize = 10 * 1024 * 1024

	defaultUserAgent = "halcyon-webfetch/1.0"
	maxRedirects     = 10
)

// Request configures one page fetch. URL is required; partial URLs like
// "example.com" are normalized by prepending https://.
type Request struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Page is the fetched result. URL is the final location after redirects.
type Page struct {
	URL      string
	Markdown string
}

// Fetch retrieves the page and returns its content as Markdown.
func Fetch(ctx context.Context, request Request) (*Page, error) {
	url := strings.TrimSpace(request.URL)
	if url == "" {
		return nil, fmt.Errorf("webfetch: URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	timeout := request.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("webfetch: error creating request: %w", err)
	}
	userAgent := request.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (>%d)", maxRedirects)
			}
			return nil
		},
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webfetch: error fetching %s: %w", url, err)
	}
	defer httpx.CloseWithLog(response.Body)

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webfetch: unexpected status %d fetching %s", response.StatusCode, url)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(response.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("webfetch: error reading body: %w", err)
	}
	if len(htmlBytes) == MaxBodySize {
		return nil, fmt.Errorf("webfetch: body exceeds %d bytes", MaxBodySize)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("webfetch: error converting HTML to Markdown: %w", err)
	}

	return &Page{
		URL:      response.Request.URL.String(),
		Markdown: markdown,
	}, nil
}
