package halcyon

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// idChunk is a minimal typed result for pipeline tests.
type idChunk struct {
	ID string `json:"id"`
}

// fakeTransport scripts a stream: chunks delivered one per read, then EOF or
// finalErr. With block set, reads past the chunks hang until the session
// context is cancelled, the way a quiet HTTP body would.
type fakeTransport struct {
	chunks   [][]byte
	finalErr error
	openErr  error
	block    bool

	bodyCloses atomic.Int32
}

func (t *fakeTransport) Open(ctx context.Context, request StreamRequest) (io.ReadCloser, error) {
	if t.openErr != nil {
		return nil, t.openErr
	}
	return &fakeBody{transport: t, ctx: ctx, chunks: t.chunks, finalErr: t.finalErr, block: t.block}, nil
}

type fakeBody struct {
	transport *fakeTransport
	ctx       context.Context
	chunks    [][]byte
	pos       int
	finalErr  error
	block     bool
}

func (b *fakeBody) Read(p []byte) (int, error) {
	if b.pos < len(b.chunks) {
		n := copy(p, b.chunks[b.pos])
		b.pos++
		return n, nil
	}
	if b.block {
		<-b.ctx.Done()
		return 0, b.ctx.Err()
	}
	if b.finalErr != nil {
		return 0, b.finalErr
	}
	return 0, io.EOF
}

func (b *fakeBody) Close() error {
	b.transport.bodyCloses.Add(1)
	return nil
}

// streamRecorder collects every callback invocation for assertions.
type streamRecorder[T any] struct {
	mu          sync.Mutex
	results     []StreamResult[T]
	completions []error
	done        chan struct{}
}

func newStreamRecorder[T any]() *streamRecorder[T] {
	return &streamRecorder[T]{done: make(chan struct{}, 4)}
}

func (r *streamRecorder[T]) handlers() StreamHandlers[T] {
	return StreamHandlers[T]{
		OnResult: func(result StreamResult[T]) {
			r.mu.Lock()
			r.results = append(r.results, result)
			r.mu.Unlock()
		},
		OnComplete: func(err error) {
			r.mu.Lock()
			r.completions = append(r.completions, err)
			r.mu.Unlock()
			r.done <- struct{}{}
		},
	}
}

// wait blocks until OnComplete fires (or fails the test after two seconds)
// and returns the terminal error.
func (r *streamRecorder[T]) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream completion")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.completions) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(r.completions))
	}
	return r.completions[0]
}

func (r *streamRecorder[T]) snapshot() ([]StreamResult[T], int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]StreamResult[T], len(r.results))
	copy(results, r.results)
	return results, len(r.completions)
}

func newFakeClient(transport StreamTransport) *Client {
	return NewClient("test-key").WithStreamTransport(transport)
}

// TestStreamSession_WellFramedEvents_DeliveredInOrder verifies the reference
// scenario: two events and a terminator produce two ordered successes and
// one nil completion.
func TestStreamSession_WellFramedEvents_DeliveredInOrder(t *testing.T) {
	transport := &fakeTransport{chunks: [][]byte{
		[]byte("data: {\"id\":\"1\"}\n\ndata: {\"id\":\"2\"}\n\ndata: [DONE]\n"),
	}}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}

	if completionErr := recorder.wait(t); completionErr != nil {
		t.Errorf("expected nil completion error, got %v", completionErr)
	}

	results, _ := recorder.snapshot()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for i, expected := range []string{"1", "2"} {
		if results[i].Err != nil {
			t.Errorf("result %d: unexpected error %v", i, results[i].Err)
		}
		if results[i].Value.ID != expected {
			t.Errorf("result %d: expected id %q, got %q", i, expected, results[i].Value.ID)
		}
	}
}

// TestStreamSession_ArbitraryChunkSplits_SameDelivery verifies delivery is
// invariant to how the byte stream is split across transport reads.
func TestStreamSession_ArbitraryChunkSplits_SameDelivery(t *testing.T) {
	wire := "data: {\"id\":\"1\"}\n\ndata: {\"id\":\"2\"}\n\ndata: {\"id\":\"3\"}\n\ndata: [DONE]\n"
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 10; trial++ {
		var chunks [][]byte
		remaining := []byte(wire)
		for len(remaining) > 0 {
			size := 1 + rng.Intn(9)
			if size > len(remaining) {
				size = len(remaining)
			}
			chunks = append(chunks, remaining[:size])
			remaining = remaining[size:]
		}

		recorder := newStreamRecorder[idChunk]()
		_, err := startStream[idChunk](context.Background(), newFakeClient(&fakeTransport{chunks: chunks}), "/events", nil, recorder.handlers())
		if err != nil {
			t.Fatalf("trial %d: startStream failed: %v", trial, err)
		}
		if completionErr := recorder.wait(t); completionErr != nil {
			t.Fatalf("trial %d: unexpected completion error: %v", trial, completionErr)
		}

		results, _ := recorder.snapshot()
		if len(results) != 3 {
			t.Fatalf("trial %d: expected 3 results, got %d", trial, len(results))
		}
		for i, expected := range []string{"1", "2", "3"} {
			if results[i].Value.ID != expected {
				t.Errorf("trial %d result %d: expected id %q, got %q", trial, i, expected, results[i].Value.ID)
			}
		}
	}
}

// TestStreamSession_MalformedPayload_IsNonTerminal verifies a single
// malformed payload among valid ones yields one failure in position, not a
// short stream.
func TestStreamSession_MalformedPayload_IsNonTerminal(t *testing.T) {
	transport := &fakeTransport{chunks: [][]byte{
		[]byte("data: {\"id\":\"1\"}\n\ndata: {broken\n\ndata: {\"id\":\"3\"}\n\ndata: [DONE]\n"),
	}}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	if completionErr := recorder.wait(t); completionErr != nil {
		t.Errorf("expected nil completion error, got %v", completionErr)
	}

	results, _ := recorder.snapshot()
	if len(results) != 3 {
		t.Fatalf("expected 3 results (1 failure, 2 successes), got %d", len(results))
	}
	if results[0].Err != nil || results[0].Value.ID != "1" {
		t.Errorf("result 0: expected success id 1, got %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("result 1: expected decode error for malformed payload")
	}
	if results[2].Err != nil || results[2].Value.ID != "3" {
		t.Errorf("result 2: expected success id 3, got %+v", results[2])
	}
}

// TestStreamSession_APIErrorPayload_ReportedAsAPIError verifies an error
// envelope framed as a stream payload decodes into *APIError.
func TestStreamSession_APIErrorPayload_ReportedAsAPIError(t *testing.T) {
	transport := &fakeTransport{chunks: [][]byte{
		[]byte("data: {\"error\":{\"message\":\"model overloaded\",\"type\":\"server_error\"}}\n\ndata: [DONE]\n"),
	}}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	recorder.wait(t)

	results, _ := recorder.snapshot()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	var apiErr *APIError
	if !errors.As(results[0].Err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", results[0].Err)
	}
	if apiErr.Message != "model overloaded" {
		t.Errorf("expected message %q, got %q", "model overloaded", apiErr.Message)
	}
}

// TestStreamSession_PayloadsAfterTerminator_Suppressed verifies data lines
// after [DONE] never reach OnResult.
func TestStreamSession_PayloadsAfterTerminator_Suppressed(t *testing.T) {
	transport := &fakeTransport{chunks: [][]byte{
		[]byte("data: {\"id\":\"1\"}\n\ndata: [DONE]\n\ndata: {\"id\":\"late\"}\n\n"),
	}}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	recorder.wait(t)

	results, completions := recorder.snapshot()
	if len(results) != 1 || results[0].Value.ID != "1" {
		t.Errorf("expected only the pre-terminator result, got %+v", results)
	}
	if completions != 1 {
		t.Errorf("expected exactly one completion, got %d", completions)
	}
}

// TestStreamSession_TransportEOFWithoutTerminator_CompletesGracefully
// verifies end-of-data with no [DONE] is still a graceful close and flushes
// the trailing payload.
func TestStreamSession_TransportEOFWithoutTerminator_CompletesGracefully(t *testing.T) {
	transport := &fakeTransport{chunks: [][]byte{
		[]byte("data: {\"id\":\"1\"}\n\ndata: {\"id\":\"2\"}"),
	}}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	if completionErr := recorder.wait(t); completionErr != nil {
		t.Errorf("expected graceful completion, got %v", completionErr)
	}

	results, _ := recorder.snapshot()
	if len(results) != 2 {
		t.Fatalf("expected trailing payload to be flushed, got %d results", len(results))
	}
	if results[1].Value.ID != "2" {
		t.Errorf("expected flushed id 2, got %q", results[1].Value.ID)
	}
}

// TestStreamSession_TransportErrorBeforeBytes_OneCompletionNoResults
// verifies a connection failure delivers zero results and exactly one
// completion carrying the error.
func TestStreamSession_TransportErrorBeforeBytes_OneCompletionNoResults(t *testing.T) {
	openErr := errors.New("connection refused")
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(&fakeTransport{openErr: openErr}), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}

	completionErr := recorder.wait(t)
	if !errors.Is(completionErr, openErr) {
		t.Errorf("expected completion to carry the open error, got %v", completionErr)
	}
	results, _ := recorder.snapshot()
	if len(results) != 0 {
		t.Errorf("expected zero results, got %d", len(results))
	}
}

// TestStreamSession_TransportErrorMidStream_TerminalAndDiscardsPartial
// verifies a mid-stream network failure delivers prior results, discards the
// buffered partial payload, and completes once with the error.
func TestStreamSession_TransportErrorMidStream_TerminalAndDiscardsPartial(t *testing.T) {
	networkErr := errors.New("connection reset by peer")
	transport := &fakeTransport{
		chunks:   [][]byte{[]byte("data: {\"id\":\"1\"}\n\ndata: {\"id\":\"par")},
		finalErr: networkErr,
	}
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), newFakeClient(transport), "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}

	completionErr := recorder.wait(t)
	if !errors.Is(completionErr, networkErr) {
		t.Errorf("expected completion to carry the network error, got %v", completionErr)
	}

	results, _ := recorder.snapshot()
	if len(results) != 1 || results[0].Value.ID != "1" {
		t.Errorf("expected one delivered result and the partial discarded, got %+v", results)
	}
}

// TestStreamSession_DuplicateCompletionSignal_IsNoOp verifies the completed
// flag makes a second completion signal a no-op.
func TestStreamSession_DuplicateCompletionSignal_IsNoOp(t *testing.T) {
	recorder := newStreamRecorder[idChunk]()
	session := &streamSession[idChunk]{
		id:       "dup-test",
		handlers: recorder.handlers(),
		registry: newStreamRegistry(),
		cancel:   func() {},
	}
	session.registry.add(session.id, session)

	session.complete(context.Background(), nil)
	session.complete(context.Background(), errors.New("duplicate signal"))

	if completionErr := recorder.wait(t); completionErr != nil {
		t.Errorf("expected first (nil) completion to win, got %v", completionErr)
	}
	if _, completions := recorder.snapshot(); completions != 1 {
		t.Errorf("expected exactly one completion, got %d", completions)
	}
	if session.registry.size() != 0 {
		t.Errorf("expected session unregistered, registry has %d", session.registry.size())
	}
}

// TestStreamSession_Cancel_CompletesWithCancellationError verifies
// StreamHandle.Cancel aborts a blocked stream and still delivers the single
// completion.
func TestStreamSession_Cancel_CompletesWithCancellationError(t *testing.T) {
	transport := &fakeTransport{
		chunks: [][]byte{[]byte("data: {\"id\":\"1\"}\n\n")},
		block:  true,
	}
	client := newFakeClient(transport)
	recorder := newStreamRecorder[idChunk]()

	handle, err := startStream[idChunk](context.Background(), client, "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	if handle.ID() == "" {
		t.Error("expected a non-empty session identifier")
	}

	// Give the pump a moment to deliver the first result, then abort.
	waitForCondition(t, func() bool {
		results, _ := recorder.snapshot()
		return len(results) == 1
	})
	handle.Cancel()

	completionErr := recorder.wait(t)
	if !errors.Is(completionErr, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", completionErr)
	}
	if client.ActiveStreams() != 0 {
		t.Errorf("expected registry drained after cancel, got %d", client.ActiveStreams())
	}
}

// TestStreamSession_PerformDoesNotBlockCaller verifies the streaming call
// returns while the transport is still open and delivering.
func TestStreamSession_PerformDoesNotBlockCaller(t *testing.T) {
	transport := &fakeTransport{block: true}
	client := newFakeClient(transport)
	recorder := newStreamRecorder[idChunk]()

	start := time.Now()
	handle, err := startStream[idChunk](context.Background(), client, "/events", nil, recorder.handlers())
	if err != nil {
		t.Fatalf("startStream failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("startStream blocked for %v", elapsed)
	}

	waitForCondition(t, func() bool { return client.ActiveStreams() == 1 })
	handle.Cancel()
	recorder.wait(t)
}

// TestClient_CancelStreams_AbortsAllActiveSessions verifies client-level
// teardown completes every blocked session and empties the registry.
func TestClient_CancelStreams_AbortsAllActiveSessions(t *testing.T) {
	client := newFakeClient(&fakeTransport{block: true})

	const sessionCount = 5
	recorders := make([]*streamRecorder[idChunk], sessionCount)
	for i := range recorders {
		recorders[i] = newStreamRecorder[idChunk]()
		if _, err := startStream[idChunk](context.Background(), client, "/events", nil, recorders[i].handlers()); err != nil {
			t.Fatalf("startStream %d failed: %v", i, err)
		}
	}

	waitForCondition(t, func() bool { return client.ActiveStreams() == sessionCount })
	client.CancelStreams()

	for i, recorder := range recorders {
		if completionErr := recorder.wait(t); !errors.Is(completionErr, context.Canceled) {
			t.Errorf("session %d: expected context.Canceled, got %v", i, completionErr)
		}
	}
	if client.ActiveStreams() != 0 {
		t.Errorf("expected empty registry, got %d", client.ActiveStreams())
	}
}

// TestStreamSession_MarshalFailure_ReturnsImmediately verifies an
// unserializable payload is the one error reported synchronously.
func TestStreamSession_MarshalFailure_ReturnsImmediately(t *testing.T) {
	client := newFakeClient(&fakeTransport{})
	recorder := newStreamRecorder[idChunk]()

	_, err := startStream[idChunk](context.Background(), client, "/events", func() {}, recorder.handlers())
	if err == nil {
		t.Fatal("expected marshal error for func payload, got nil")
	}
	if !strings.Contains(err.Error(), "marshaling") {
		t.Errorf("expected marshal error, got %v", err)
	}
	if client.ActiveStreams() != 0 {
		t.Errorf("expected no session registered, got %d", client.ActiveStreams())
	}
}

// waitForCondition polls until the condition holds or the test times out.
func waitForCondition(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
