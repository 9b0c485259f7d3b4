package web

import (
	"encoding/json"
	"sync"

	"turntable/internal/debug"
	"turntable/internal/logic/state"
)

// Listener receives serialized status payloads. Send must not block
// indefinitely; a failed Send drops the listener from the registry.
type Listener interface {
	Send(payload []byte) error
}

// SnapshotFunc copies the current status under the state lock.
type SnapshotFunc func() state.Status

// Broadcaster mirrors the operation state to every registered remote
// listener. Delivery is best-effort: a failing listener is removed
// without affecting the others.
type Broadcaster struct {
	snapshot SnapshotFunc

	mu      sync.Mutex
	clients map[Listener]struct{}
}

// NewBroadcaster creates an empty broadcaster over the given snapshot
// source.
func NewBroadcaster(snapshot SnapshotFunc) *Broadcaster {
	return &Broadcaster{
		snapshot: snapshot,
		clients:  make(map[Listener]struct{}),
	}
}

// Register adds a listener.
func (b *Broadcaster) Register(l Listener) {
	b.mu.Lock()
	b.clients[l] = struct{}{}
	b.mu.Unlock()
}

// Unregister removes a listener.
func (b *Broadcaster) Unregister(l Listener) {
	b.mu.Lock()
	delete(b.clients, l)
	b.mu.Unlock()
}

// ClientCount returns the number of registered listeners.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast snapshots the state, serializes it, and pushes it to every
// listener. The registry is copied first so a concurrent disconnect
// cannot invalidate the iteration; serialization and sending happen
// with no state lock held.
func (b *Broadcaster) Broadcast() {
	payload, err := json.Marshal(b.snapshot())
	if err != nil {
		debug.Error(err)
		return
	}

	b.mu.Lock()
	targets := make([]Listener, 0, len(b.clients))
	for l := range b.clients {
		targets = append(targets, l)
	}
	b.mu.Unlock()

	for _, l := range targets {
		if err := l.Send(payload); err != nil {
			debug.Verbose("Dropping listener: %v", err)
			b.Unregister(l)
		}
	}
	debug.Live("Broadcast to %d client(s): %s", len(targets), payload)
}
