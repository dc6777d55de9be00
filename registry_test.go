package halcyon

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// recordingAborter counts abort invocations and unregisters itself, the way a
// real session's completion path does.
type recordingAborter struct {
	id       string
	registry *streamRegistry
	aborts   atomic.Int32
}

func (a *recordingAborter) abort() {
	a.aborts.Add(1)
	a.registry.remove(a.id)
}

// TestStreamRegistry_AddRemove_TracksSize verifies basic registration
// bookkeeping.
func TestStreamRegistry_AddRemove_TracksSize(t *testing.T) {
	registry := newStreamRegistry()
	if registry.size() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.size())
	}

	registry.add("a", &recordingAborter{})
	registry.add("b", &recordingAborter{})
	if registry.size() != 2 {
		t.Errorf("expected 2 sessions, got %d", registry.size())
	}

	registry.remove("a")
	if registry.size() != 1 {
		t.Errorf("expected 1 session after remove, got %d", registry.size())
	}
}

// TestStreamRegistry_RemoveTwice_IsIdempotent verifies double removal (the
// completion/teardown race) is harmless.
func TestStreamRegistry_RemoveTwice_IsIdempotent(t *testing.T) {
	registry := newStreamRegistry()
	registry.add("a", &recordingAborter{})

	registry.remove("a")
	registry.remove("a")
	registry.remove("never-added")

	if registry.size() != 0 {
		t.Errorf("expected empty registry, got %d", registry.size())
	}
}

// TestStreamRegistry_CancelAll_AbortsEverySessionOnce verifies teardown
// reaches each session exactly once and drains the registry.
func TestStreamRegistry_CancelAll_AbortsEverySessionOnce(t *testing.T) {
	registry := newStreamRegistry()
	aborters := make([]*recordingAborter, 10)
	for i := range aborters {
		id := fmt.Sprintf("session-%d", i)
		aborters[i] = &recordingAborter{id: id, registry: registry}
		registry.add(id, aborters[i])
	}

	registry.cancelAll()

	if registry.size() != 0 {
		t.Errorf("expected drained registry, got %d", registry.size())
	}
	for i, aborter := range aborters {
		if count := aborter.aborts.Load(); count != 1 {
			t.Errorf("session %d: expected 1 abort, got %d", i, count)
		}
	}
}

// TestStreamRegistry_ConcurrentLifecycles_EndEmpty runs many goroutines
// through add/size/remove concurrently and verifies the registry ends empty
// with no lost or phantom entries.
func TestStreamRegistry_ConcurrentLifecycles_EndEmpty(t *testing.T) {
	registry := newStreamRegistry()
	const sessions = 100

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", n)
			registry.add(id, &recordingAborter{id: id, registry: registry})
			registry.size()
			registry.remove(id)
			registry.remove(id) // racing duplicate removal must stay safe
		}(i)
	}
	wg.Wait()

	if registry.size() != 0 {
		t.Errorf("expected empty registry after concurrent lifecycles, got %d", registry.size())
	}
}
