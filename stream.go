package halcyon

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
)

// StreamResult is the tagged per-payload unit delivered on a stream: either
// one successfully decoded chunk or the error that payload produced. Payload
// errors are non-terminal — the stream keeps delivering afterwards.
type StreamResult[T any] struct {
	Value T
	Err   error
}

// StreamHandlers carries the per-call callbacks for a streaming operation.
// OnResult is invoked once per event payload, in strict arrival order, never
// concurrently with itself. OnComplete fires exactly once, after the last
// OnResult, carrying the terminal transport error or nil on graceful close.
// Either callback may be nil.
type StreamHandlers[T any] struct {
	OnResult   func(StreamResult[T])
	OnComplete func(error)
}

// StreamHandle identifies one in-flight stream and allows aborting it early.
type StreamHandle struct {
	id     string
	cancel context.CancelFunc
}

// ID returns the opaque session identifier.
func (h *StreamHandle) ID() string {
	return h.id
}

// Cancel aborts the stream. The session still delivers its single OnComplete
// call, carrying the cancellation error. Cancelling a finished stream is a
// no-op.
func (h *StreamHandle) Cancel() {
	h.cancel()
}

// decodeStreamEvent maps one event payload to a StreamResult. Decoding is
// all-or-nothing per payload: the payload is first probed for the API error
// envelope (Go's lenient unmarshaling would otherwise accept an error
// payload as a zero-valued chunk), then decoded into T; if that fails the
// result carries the decode error.
func decodeStreamEvent[T any](payload []byte) StreamResult[T] {
	var result StreamResult[T]

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		result.Err = envelope.Error
		return result
	}

	if err := json.Unmarshal(payload, &result.Value); err != nil {
		var zero T
		result.Value = zero
		result.Err = fmt.Errorf("error decoding stream payload: %w", err)
	}
	return result
}

// Stream adapts a callback-driven session to a pull iterator for
// range-over-func consumption. Per-payload decode failures are yielded as
// (zero value, error) pairs and the stream continues; a terminal transport
// error is yielded last. Breaking out of the loop cancels the session.
//
// Callers must consume the stream — iterate Iter() to completion, break out
// of the loop, or call Cancel — otherwise the underlying connection stays
// open until the client's registry is torn down.
type Stream[T any] struct {
	handle   *StreamHandle
	abandon  func()
	iterator iter.Seq2[T, error]
}

// ID returns the opaque session identifier.
func (s *Stream[T]) ID() string {
	return s.handle.ID()
}

// Cancel aborts the stream early. It also releases the delivery channel, so
// cancelling is sufficient to tear the session down even when Iter was never
// consumed.
func (s *Stream[T]) Cancel() {
	s.abandon()
	s.handle.Cancel()
}

// Iter returns the iterator for use with range-over-func loops. The iterator
// may be consumed once.
func (s *Stream[T]) Iter() iter.Seq2[T, error] {
	return s.iterator
}

// newStream starts a streaming call and bridges its callbacks into a pull
// iterator over a channel.
func newStream[T any](ctx context.Context, client *Client, path string, payload any) (*Stream[T], error) {
	type streamItem struct {
		result   StreamResult[T]
		terminal bool
		err      error
	}

	items := make(chan streamItem)
	abandoned := make(chan struct{})
	var abandonOnce sync.Once
	abandon := func() {
		abandonOnce.Do(func() { close(abandoned) })
	}

	// Sends race against the consumer walking away; the abandoned channel
	// unblocks the pump goroutine in that case.
	handlers := StreamHandlers[T]{
		OnResult: func(result StreamResult[T]) {
			select {
			case items <- streamItem{result: result}:
			case <-abandoned:
			}
		},
		OnComplete: func(err error) {
			select {
			case items <- streamItem{terminal: true, err: err}:
			case <-abandoned:
			}
			close(items)
		},
	}

	handle, err := startStream(ctx, client, path, payload, handlers)
	if err != nil {
		return nil, err
	}

	iterator := func(yield func(T, error) bool) {
		defer func() {
			abandon()
			handle.Cancel()
		}()

		for item := range items {
			if item.terminal {
				if item.err != nil {
					var zero T
					yield(zero, item.err)
				}
				return
			}
			if item.result.Err != nil {
				var zero T
				if !yield(zero, item.result.Err) {
					return
				}
				continue
			}
			if !yield(item.result.Value, nil) {
				return
			}
		}
	}

	return &Stream[T]{handle: handle, abandon: abandon, iterator: iterator}, nil
}
