package halcyon

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/halcyonai/halcyon/internal/httpx"
	"github.com/halcyonai/halcyon/internal/sse"
	"github.com/halcyonai/halcyon/observability"
)

// streamReadBufferSize is the chunk size for reads off the transport. Event
// boundaries carry no relation to read boundaries; the frame decoder
// reassembles payloads split across reads.
const streamReadBufferSize = 4096

// streamSession owns one in-flight stream: the pending byte buffer (inside
// the frame decoder), the caller's callbacks, and the completed flag. All
// deliveries for one session happen on its single pump goroutine, so
// OnResult/OnComplete invocations are strictly ordered and never overlap.
//
// Lifecycle: created and registered at call time, receives zero or more byte
// deliveries, emits zero or more results, then terminates through exactly one
// OnComplete call and unregisters itself. The registry is the only long-lived
// holder; the caller may drop every reference and the stream still runs to
// completion.
type streamSession[T any] struct {
	id        string
	transport StreamTransport
	request   StreamRequest
	handlers  StreamHandlers[T]
	registry  *streamRegistry
	decoder   sse.Decoder
	completed atomic.Bool
	cancel    context.CancelFunc

	delivered int
	failures  int
}

// startStream builds the outbound descriptor, registers a new session, and
// kicks off its pump. It returns immediately; a returned error only ever
// means the request payload could not be serialized. Everything after that —
// including connection failures — arrives through OnComplete.
func startStream[T any](ctx context.Context, client *Client, path string, payload any, handlers StreamHandlers[T]) (*StreamHandle, error) {
	body, err := marshalStreamBody(payload)
	if err != nil {
		return nil, err
	}

	session := &streamSession[T]{
		id:        ulid.Make().String(),
		transport: client.transport,
		request:   client.newStreamRequest(path, body),
		handlers:  handlers,
		registry:  client.registry,
	}
	return session.perform(client.callContext(ctx)), nil
}

// perform registers the session and starts the pump goroutine. The returned
// handle exposes the session identifier and cancellation.
func (s *streamSession[T]) perform(ctx context.Context) *StreamHandle {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.registry.add(s.id, s)
	go s.pump(ctx)
	return &StreamHandle{id: s.id, cancel: cancel}
}

// abort implements sessionAborter for registry-driven teardown.
func (s *streamSession[T]) abort() {
	s.cancel()
}

// pump opens the transport and drives bytes through the frame decoder until
// the stream terminates. It is the only goroutine that touches the decoder
// or invokes the session's callbacks.
func (s *streamSession[T]) pump(ctx context.Context) {
	observer := observability.ObserverFromContext(ctx)
	span := observability.SpanFromContext(ctx)

	if observer != nil {
		observer.Trace(ctx, "opening stream",
			observability.String(observability.AttrStreamSessionID, s.id),
			observability.String(observability.AttrHTTPURL, s.request.URL),
		)
	}

	body, err := s.transport.Open(ctx, s.request)
	if err != nil {
		s.complete(ctx, err)
		return
	}
	defer httpx.CloseWithLog(body)

	if span != nil {
		span.AddEvent(observability.EventStreamStarted,
			observability.String(observability.AttrStreamSessionID, s.id),
		)
	}

	buf := make([]byte, streamReadBufferSize)
	for {
		n, readErr := body.Read(buf)

		if n > 0 {
			payloads, decodeErr := s.decoder.Feed(buf[:n])
			s.deliver(payloads)
			if decodeErr != nil {
				s.complete(ctx, fmt.Errorf("stream framing error: %w", decodeErr))
				return
			}
			if s.decoder.Terminated() {
				// Graceful terminator: the connection may still be open, but
				// the logical stream is over.
				s.complete(ctx, nil)
				return
			}
		}

		if readErr == io.EOF {
			// End-of-data without a terminator is still a graceful close.
			// Flush the trailing payload, if any.
			s.deliver(s.decoder.Finish())
			s.complete(ctx, nil)
			return
		}
		if readErr != nil {
			// Transport failure is terminal: buffered partial payloads are
			// discarded, not delivered.
			if ctx.Err() != nil {
				s.complete(ctx, ctx.Err())
			} else {
				s.complete(ctx, fmt.Errorf("stream transport error: %w", readErr))
			}
			return
		}
	}
}

// deliver decodes each payload and invokes OnResult in arrival order.
// Delivery stops as soon as the session completes, so results never trail
// the completion callback.
func (s *streamSession[T]) deliver(payloads [][]byte) {
	for _, payload := range payloads {
		if s.completed.Load() {
			return
		}
		result := decodeStreamEvent[T](payload)
		s.delivered++
		if result.Err != nil {
			s.failures++
		}
		if s.handlers.OnResult != nil {
			s.handlers.OnResult(result)
		}
	}
}

// complete moves the session to its terminal state. The completed flag flips
// first, so duplicate completion signals (racing transport callbacks,
// teardown racing natural completion) are no-ops and OnComplete fires at
// most once.
func (s *streamSession[T]) complete(ctx context.Context, err error) {
	if !s.completed.CompareAndSwap(false, true) {
		return
	}

	s.registry.remove(s.id)
	s.cancel()

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventStreamCompleted,
			observability.String(observability.AttrStreamSessionID, s.id),
			observability.Int(observability.AttrStreamPayloads, s.delivered),
			observability.Int(observability.AttrStreamDecodeFailures, s.failures),
			observability.Error(err),
		)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Debug(ctx, "stream completed",
			observability.String(observability.AttrStreamSessionID, s.id),
			observability.Int(observability.AttrStreamPayloads, s.delivered),
			observability.Error(err),
		)
	}

	if s.handlers.OnComplete != nil {
		s.handlers.OnComplete(err)
	}
}
