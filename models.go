package halcyon

import (
	"context"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const modelsPath = "/models"

// Model describes one model available to the caller.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelsList is the model listing response.
type ModelsList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ModelDeleteResponse confirms deletion of a fine-tuned model.
type ModelDeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// ListModels lists the models available to the caller.
func (c *Client) ListModels(ctx context.Context) (*ModelsList, error) {
	_, response, err := httpx.DoGetSync[ModelsList](
		c.callContext(ctx), c.syncClient(), c.endpointURL(modelsPath), c.apiKey, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// GetModel retrieves one model by identifier.
func (c *Client) GetModel(ctx context.Context, modelID string) (*Model, error) {
	_, response, err := httpx.DoGetSync[Model](
		c.callContext(ctx), c.syncClient(), c.endpointURL(modelsPath+"/"+modelID), c.apiKey, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// DeleteModel deletes a fine-tuned model the caller owns.
func (c *Client) DeleteModel(ctx context.Context, modelID string) (*ModelDeleteResponse, error) {
	_, response, err := httpx.DoDeleteSync[ModelDeleteResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(modelsPath+"/"+modelID), c.apiKey, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}
