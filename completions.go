package halcyon

import (
	"context"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const completionsPath = "/completions"

// CompletionRequest is the request body for the legacy text completions
// endpoint.
type CompletionRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	Suffix           string   `json:"suffix,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	N                int      `json:"n,omitempty"`
	Logprobs         *int     `json:"logprobs,omitempty"`
	Echo             bool     `json:"echo,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	BestOf           int      `json:"best_of,omitempty"`
	User             string   `json:"user,omitempty"`

	Stream *bool `json:"stream,omitempty"`
}

// CompletionChoice is one generated alternative. The same shape serves both
// complete responses and streaming chunks: streamed choices carry text
// fragments instead of whole completions.
type CompletionChoice struct {
	Text         string  `json:"text"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
}

// CompletionResponse is the complete (non-streaming) response.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   *Usage             `json:"usage,omitempty"`
}

// CompletionChunk is one decoded event payload from the streaming
// completions endpoint.
type CompletionChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// CreateCompletion sends a text completion request and returns the completed
// response.
func (c *Client) CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	request.Stream = nil

	_, response, err := httpx.DoPostSync[CompletionResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(completionsPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// StreamCompletion starts a streaming text completion, delivering decoded
// chunks through handlers. Semantics match [Client.StreamChatCompletion].
func (c *Client) StreamCompletion(ctx context.Context, request CompletionRequest, handlers StreamHandlers[CompletionChunk]) (*StreamHandle, error) {
	streamEnabled := true
	request.Stream = &streamEnabled
	return startStream(ctx, c, completionsPath, request, handlers)
}

// CompletionStream is the iterator form of a streaming text completion.
type CompletionStream struct {
	*Stream[CompletionChunk]
}

// NewCompletionStream starts a streaming text completion and returns a pull
// iterator over its chunks.
func (c *Client) NewCompletionStream(ctx context.Context, request CompletionRequest) (*CompletionStream, error) {
	streamEnabled := true
	request.Stream = &streamEnabled
	stream, err := newStream[CompletionChunk](ctx, c, completionsPath, request)
	if err != nil {
		return nil, err
	}
	return &CompletionStream{Stream: stream}, nil
}

// Collect consumes the entire stream and concatenates the text fragments of
// choice zero into a complete response. Any error stops collection and
// returns the partial response with that error.
func (s *CompletionStream) Collect() (*CompletionResponse, error) {
	accumulated := &CompletionResponse{}
	var text []byte
	var finishReason *string

	for chunk, err := range s.Iter() {
		if err != nil {
			accumulated.Choices = []CompletionChoice{{Text: string(text), FinishReason: finishReason}}
			return accumulated, err
		}

		if chunk.ID != "" {
			accumulated.ID = chunk.ID
			accumulated.Created = chunk.Created
			accumulated.Model = chunk.Model
		}
		for _, choice := range chunk.Choices {
			if choice.Index != 0 {
				continue
			}
			text = append(text, choice.Text...)
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
		}
	}

	accumulated.Choices = []CompletionChoice{{Text: string(text), FinishReason: finishReason}}
	return accumulated, nil
}
