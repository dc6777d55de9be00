package halcyon

import (
	"context"
	"sort"
	"strings"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const chatCompletionsPath = "/chat/completions"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one message in a chat conversation.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a completed tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the function name and its JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a function the model may call.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function: name, description, and a JSON
// Schema for its parameters.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ResponseFormat constrains the output format (e.g. {"type":"json_object"}).
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest is the request body for the chat completions
// endpoint. The Stream fields are managed by the client; callers use the
// streaming methods instead of setting them.
type ChatCompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []ChatMessage   `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	N                int             `json:"n,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	User             string          `json:"user,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       any             `json:"tool_choice,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`

	Stream        *bool          `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

// streamOptions configures streaming behavior in the request body.
type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChoice is one generated alternative in a response.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionResponse is the complete (non-streaming) response.
type ChatCompletionResponse struct {
	ID                string                 `json:"id"`
	Object            string                 `json:"object"`
	Created           int64                  `json:"created"`
	Model             string                 `json:"model"`
	SystemFingerprint string                 `json:"system_fingerprint,omitempty"`
	Choices           []ChatCompletionChoice `json:"choices"`
	Usage             *Usage                 `json:"usage,omitempty"`
}

// ChatDelta carries the incremental content of one streaming chunk. All
// fields are optional — a chunk may carry only content, only tool calls,
// only a role.
type ChatDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"` // nullable to distinguish empty from absent
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental update to a tool call being streamed. The
// first chunk for a given index carries the ID and function name; later
// chunks carry only argument fragments.
type ToolCallDelta struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// ChatChunkChoice is one choice inside a streaming chunk. Unlike the
// non-streaming choice it carries a Delta instead of a Message.
type ChatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"` // nil until the final chunk for this choice
}

// ChatCompletionChunk is one decoded event payload from the streaming chat
// completions endpoint.
type ChatCompletionChunk struct {
	ID      string            `json:"id"`
	Object  string            `json:"object"` // "chat.completion.chunk"
	Created int64             `json:"created"`
	Model   string            `json:"model"`
	Choices []ChatChunkChoice `json:"choices"`
	Usage   *Usage            `json:"usage,omitempty"` // final chunk only, with include_usage
}

// CreateChatCompletion sends a chat request and returns the completed
// response.
func (c *Client) CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (*ChatCompletionResponse, error) {
	request.Stream = nil
	request.StreamOptions = nil

	_, response, err := httpx.DoPostSync[ChatCompletionResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(chatCompletionsPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}

// StreamChatCompletion starts a streaming chat completion, delivering each
// decoded chunk through handlers.OnResult in arrival order and exactly one
// handlers.OnComplete when the stream terminates. It returns immediately;
// connection failures arrive through OnComplete. The returned handle cancels
// the stream early.
func (c *Client) StreamChatCompletion(ctx context.Context, request ChatCompletionRequest, handlers StreamHandlers[ChatCompletionChunk]) (*StreamHandle, error) {
	enableStreaming(&request)
	return startStream(ctx, c, chatCompletionsPath, request, handlers)
}

// ChatCompletionStream is the iterator form of a streaming chat completion.
type ChatCompletionStream struct {
	*Stream[ChatCompletionChunk]
}

// NewChatCompletionStream starts a streaming chat completion and returns a
// pull iterator over its chunks. See [Stream] for consumption requirements.
func (c *Client) NewChatCompletionStream(ctx context.Context, request ChatCompletionRequest) (*ChatCompletionStream, error) {
	enableStreaming(&request)
	stream, err := newStream[ChatCompletionChunk](ctx, c, chatCompletionsPath, request)
	if err != nil {
		return nil, err
	}
	return &ChatCompletionStream{Stream: stream}, nil
}

// enableStreaming flips the request into streaming mode with usage reporting
// on the final chunk.
func enableStreaming(request *ChatCompletionRequest) {
	streamEnabled := true
	request.Stream = &streamEnabled
	request.StreamOptions = &streamOptions{IncludeUsage: true}
}

// Collect consumes the entire stream and accumulates the deltas into a
// complete ChatCompletionResponse: content concatenated per choice, tool
// call fragments assembled, usage and finish reasons taken from the final
// chunks. Any error — payload decode failure or terminal transport error —
// stops collection and returns the partial response with that error.
func (s *ChatCompletionStream) Collect() (*ChatCompletionResponse, error) {
	accumulated := &ChatCompletionResponse{}
	builders := make(map[int]*chatChoiceBuilder)

	for chunk, err := range s.Iter() {
		if err != nil {
			finalizeChoices(accumulated, builders)
			return accumulated, err
		}

		if chunk.ID != "" {
			accumulated.ID = chunk.ID
			accumulated.Created = chunk.Created
			accumulated.Model = chunk.Model
		}
		if chunk.Usage != nil {
			accumulated.Usage = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			builder := builders[choice.Index]
			if builder == nil {
				builder = &chatChoiceBuilder{index: choice.Index}
				builders[choice.Index] = builder
			}
			builder.apply(choice)
		}
	}

	finalizeChoices(accumulated, builders)
	return accumulated, nil
}

// chatChoiceBuilder accumulates streamed deltas for one choice index.
type chatChoiceBuilder struct {
	index        int
	role         string
	content      strings.Builder
	finishReason string
	toolCalls    []toolCallBuilder
}

// toolCallBuilder accumulates incremental tool call fragments into a
// complete ToolCall.
type toolCallBuilder struct {
	id        string
	name      string
	arguments strings.Builder
}

func (b *chatChoiceBuilder) apply(choice ChatChunkChoice) {
	if choice.Delta.Role != "" {
		b.role = choice.Delta.Role
	}
	if choice.Delta.Content != nil {
		b.content.WriteString(*choice.Delta.Content)
	}
	if choice.FinishReason != nil && *choice.FinishReason != "" {
		b.finishReason = *choice.FinishReason
	}

	for _, delta := range choice.Delta.ToolCalls {
		for len(b.toolCalls) <= delta.Index {
			b.toolCalls = append(b.toolCalls, toolCallBuilder{})
		}
		builder := &b.toolCalls[delta.Index]
		if delta.ID != "" {
			builder.id = delta.ID
		}
		if delta.Function.Name != "" {
			builder.name = delta.Function.Name
		}
		if delta.Function.Arguments != "" {
			builder.arguments.WriteString(delta.Function.Arguments)
		}
	}
}

// finalizeChoices converts the per-index builders into ordered response
// choices.
func finalizeChoices(response *ChatCompletionResponse, builders map[int]*chatChoiceBuilder) {
	indexes := make([]int, 0, len(builders))
	for index := range builders {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	for _, index := range indexes {
		builder := builders[index]
		message := ChatMessage{
			Role:    builder.role,
			Content: builder.content.String(),
		}
		if message.Role == "" {
			message.Role = RoleAssistant
		}
		for _, toolCall := range builder.toolCalls {
			message.ToolCalls = append(message.ToolCalls, ToolCall{
				ID:   toolCall.id,
				Type: "function",
				Function: ToolCallFunction{
					Name:      toolCall.name,
					Arguments: toolCall.arguments.String(),
				},
			})
		}
		response.Choices = append(response.Choices, ChatCompletionChoice{
			Index:        builder.index,
			Message:      message,
			FinishReason: builder.finishReason,
		})
	}
}
