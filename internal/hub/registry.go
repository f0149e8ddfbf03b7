package hub

import (
	"fmt"
	"sync"
)

// Registry is the single source of truth for which connections are live and
// what channels they subscribe to. It is explicitly constructed and passed to
// collaborators; all methods are safe for concurrent use.
//
// The registry never touches connection transport. Subscription sets live on
// the Connection but are mutated only here, under the registry lock.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]*Connection)}
}

// Register inserts a new connection. A duplicate id is a programming error
// (ids are generated uuids); the caller is expected to treat it as fatal for
// that connection.
func (r *Registry) Register(conn *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID()]; exists {
		return fmt.Errorf("connection id %s already registered", conn.ID())
	}
	r.connections[conn.ID()] = conn
	return nil
}

// Unregister removes a connection. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, id)
}

// Get looks up a connection by id.
func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// Subscribe adds a channel to the connection's subscription set. Subscribing
// an unknown id or an already-present channel is a no-op.
func (r *Registry) Subscribe(id, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return
	}
	conn.subscriptions[channel] = struct{}{}
}

// Unsubscribe removes a channel from the connection's subscription set.
// Unknown ids and absent channels are no-ops.
func (r *Registry) Unsubscribe(id, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[id]
	if !ok {
		return
	}
	delete(conn.subscriptions, channel)
}

// Subscriptions returns a copy of the connection's subscription set.
// Returns nil for unknown ids.
func (r *Registry) Subscriptions(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[id]
	if !ok {
		return nil
	}
	channels := make([]string, 0, len(conn.subscriptions))
	for channel := range conn.subscriptions {
		channels = append(channels, channel)
	}
	return channels
}

// All returns a snapshot of the registered connections. The slice is safe to
// iterate while other goroutines register and unregister.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

// Count returns the number of registered connections. It never blocks on
// connection I/O, so it is safe to call from the status surface.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
