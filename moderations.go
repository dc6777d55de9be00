package halcyon

import (
	"context"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const moderationsPath = "/moderations"

// ModerationRequest classifies text against the content policy.
type ModerationRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

// ModerationResult is the classification for one input.
type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

// ModerationResponse is the moderations endpoint response.
type ModerationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []ModerationResult `json:"results"`
}

// CreateModeration classifies the input text against the content policy.
func (c *Client) CreateModeration(ctx context.Context, request ModerationRequest) (*ModerationResponse, error) {
	_, response, err := httpx.DoPostSync[ModerationResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(moderationsPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}
