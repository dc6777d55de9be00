// Package observability defines the tracing and structured-logging interfaces
// the client emits telemetry through, plus the context plumbing to carry an
// [Observer] and [Span] across API call boundaries.
//
// The client itself never constructs an observer; callers attach one with
// [ContextWithObserver] (and optionally [ContextWithSpan]) and every HTTP
// request and streaming session enriches it. A ready-made slog-backed
// implementation lives in the slogobs subpackage.
package observability
