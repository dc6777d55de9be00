package halcyon

import "sync"

// sessionAborter is the registry's view of a streaming session: enough to
// abort it during client teardown, nothing more.
type sessionAborter interface {
	abort()
}

// streamRegistry tracks every active streaming session on one client, keyed
// by the opaque session identifier assigned at creation. The registry is the
// only long-lived holder of sessions, so a stream keeps running even if the
// caller drops its references, and is released exactly once on completion.
//
// The mutex guards only the map. Per-session decode work happens outside it,
// so unrelated streams never serialize on each other.
type streamRegistry struct {
	mu       sync.Mutex
	sessions map[string]sessionAborter
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{sessions: make(map[string]sessionAborter)}
}

// add registers a session under its identifier.
func (r *streamRegistry) add(id string, session sessionAborter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = session
}

// remove unregisters a session. Removing an already-removed or never-added
// session is a no-op: completion callbacks may race with teardown.
func (r *streamRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// size reports the number of active sessions.
func (r *streamRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// cancelAll aborts every active session. Abort is invoked outside the lock:
// each abort eventually triggers the session's completion path, which calls
// back into remove.
func (r *streamRegistry) cancelAll() {
	r.mu.Lock()
	snapshot := make([]sessionAborter, 0, len(r.sessions))
	for _, session := range r.sessions {
		snapshot = append(snapshot, session)
	}
	r.mu.Unlock()

	for _, session := range snapshot {
		session.abort()
	}
}
