package halcyon

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const embeddingsPath = "/embeddings"

// defaultEmbeddingBatchSize is how many inputs go into one request when
// batching. The API accepts large input arrays; splitting keeps individual
// request bodies small and lets batches run in parallel.
const defaultEmbeddingBatchSize = 128

// maxParallelEmbeddingBatches bounds concurrent batch requests.
const maxParallelEmbeddingBatches = 4

// EmbeddingRequest is the request body for the embeddings endpoint.
type EmbeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
	User       string   `json:"user,omitempty"`
}

// Embedding is one vector in a response, with its position in the input.
type Embedding struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingResponse is the embeddings endpoint response.
type EmbeddingResponse struct {
	Object string      `json:"object"`
	Model  string      `json:"model"`
	Data   []Embedding `json:"data"`
	Usage  *Usage      `json:"usage,omitempty"`
}

// CreateEmbeddings requests vectors for every input string in one call.
func (c *Client) CreateEmbeddings(ctx context.Context, request EmbeddingRequest) (*EmbeddingResponse, error) {
	_, response, err := httpx.DoPostSync[EmbeddingResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(embeddingsPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// CreateEmbeddingsBatched splits a large input across several parallel
// requests (batchSize inputs each; zero means the default) and merges the
// results back in input order, with indexes rewritten to span the full input
// and usage summed. Any failing batch fails the whole call.
func (c *Client) CreateEmbeddingsBatched(ctx context.Context, request EmbeddingRequest, batchSize int) (*EmbeddingResponse, error) {
	if batchSize <= 0 {
		batchSize = defaultEmbeddingBatchSize
	}
	if len(request.Input) <= batchSize {
		return c.CreateEmbeddings(ctx, request)
	}

	batchCount := (len(request.Input) + batchSize - 1) / batchSize
	responses := make([]*EmbeddingResponse, batchCount)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelEmbeddingBatches)

	for batch := 0; batch < batchCount; batch++ {
		start := batch * batchSize
		end := min(start+batchSize, len(request.Input))

		group.Go(func() error {
			batchRequest := request
			batchRequest.Input = request.Input[start:end]
			response, err := c.CreateEmbeddings(groupCtx, batchRequest)
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}
			responses[batch] = response
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	merged := &EmbeddingResponse{Object: "list"}
	totalUsage := Usage{}
	for batch, response := range responses {
		merged.Model = response.Model
		offset := batch * batchSize
		for _, embedding := range response.Data {
			embedding.Index += offset
			merged.Data = append(merged.Data, embedding)
		}
		if response.Usage != nil {
			totalUsage.PromptTokens += response.Usage.PromptTokens
			totalUsage.TotalTokens += response.Usage.TotalTokens
		}
	}
	merged.Usage = &totalUsage
	return merged, nil
}
