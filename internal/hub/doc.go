// Package hub implements the real-time connection hub: the registry of live
// connections, the message router, and the broadcast fan-out.
//
// The Registry is the only shared mutable state, guarded by a RWMutex. Each
// connection's socket is written to by exactly one writer goroutine; reads
// happen on the handler goroutine that owns the connection. Broadcast is
// best-effort, at-most-once: slow or dead peers are evicted, never waited on.
package hub
