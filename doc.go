// Package halcyon is a typed Go client for OpenAI-compatible generative-AI
// HTTP APIs: completions, chat, embeddings, images, audio, moderations, and
// models.
//
// The heart of the package is the streaming pipeline. Streaming endpoints
// deliver server-sent events over a long-lived connection; the client decodes
// them incrementally into typed chunks and hands them to the caller in
// arrival order, either through per-call callbacks ([StreamHandlers]) or a
// range-over-func iterator ([ChatCompletionStream], [CompletionStream]).
// Every active stream is tracked in a per-client registry, so streams keep
// running (and are cleaned up exactly once) even if the caller drops its
// references, and can be aborted individually via [StreamHandle.Cancel] or
// collectively via [Client.CancelStreams].
//
// Construct a [Client] with [NewClient] or [NewClientFromEnv] and configure
// it with the chainable With* methods:
//
//	client := halcyon.NewClient("sk-...").
//	    WithOrganization("org-123").
//	    WithTimeout(30 * time.Second)
//
//	resp, err := client.CreateChatCompletion(ctx, halcyon.ChatCompletionRequest{
//	    Model:    "gpt-4o",
//	    Messages: []halcyon.ChatMessage{{Role: "user", Content: "hello"}},
//	})
//
// Errors returned by the API decode into [*APIError]; transport failures are
// wrapped standard errors. No call is ever retried by the client.
package halcyon
