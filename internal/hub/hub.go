package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsehub/internal/correlation"
	"github.com/pscheid92/pulsehub/internal/metrics"
	"github.com/pscheid92/pulsehub/internal/protocol"
)

const defaultDrainTimeout = 10 * time.Second

// Publisher forwards locally-originated broadcasts to other hub instances.
// Implemented by the Redis bridge; nil when running standalone.
type Publisher interface {
	Publish(ctx context.Context, payload json.RawMessage) error
}

// Options tune hub behavior. Zero values fall back to sane defaults.
type Options struct {
	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize int
	// DrainTimeout bounds how long Stop waits for connections to close.
	DrainTimeout time.Duration
	// Publisher, when set, receives every locally-originated broadcast.
	Publisher Publisher
}

// Hub ties the registry, router, and broadcaster together and owns the
// connection lifecycle from accept to drain.
type Hub struct {
	registry     *Registry
	broadcaster  *Broadcaster
	router       *Router
	clock        clockwork.Clock
	sendBuffer   int
	drainTimeout time.Duration

	stopped  atomic.Bool
	stopOnce sync.Once
}

// New creates a hub around the given registry.
func New(registry *Registry, clock clockwork.Clock, opts Options) *Hub {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 16
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}

	broadcaster := NewBroadcaster(registry, clock)
	return &Hub{
		registry:     registry,
		broadcaster:  broadcaster,
		router:       NewRouter(registry, broadcaster, opts.Publisher, clock),
		clock:        clock,
		sendBuffer:   opts.SendBufferSize,
		drainTimeout: opts.DrainTimeout,
	}
}

// Registry exposes the hub's connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// ConnectionCount reports the number of registered connections without
// touching any connection's I/O.
func (h *Hub) ConnectionCount() int { return h.registry.Count() }

// HandleConnection owns an upgraded websocket for its whole life: it assigns
// an identity, registers the connection, sends the welcome envelope, and runs
// the read loop until the peer disconnects or the hub shuts down. It blocks
// until the connection is gone and always leaves the registry clean.
func (h *Hub) HandleConnection(ctx context.Context, ws *websocket.Conn) {
	if h.stopped.Load() {
		_ = ws.Close()
		return
	}

	id := uuid.NewString()
	conn := newConnection(id, ws, h.clock, h.sendBuffer)
	ctx = correlation.WithConnectionID(ctx, id)

	if err := h.registry.Register(conn); err != nil {
		// Ids are freshly generated uuids, so this cannot happen short of a
		// programming error.
		slog.ErrorContext(ctx, "Failed to register connection", "error", err)
		conn.Close()
		return
	}

	metrics.ConnectionsAcceptedTotal.Inc()
	metrics.ActiveConnections.Set(float64(h.registry.Count()))
	slog.InfoContext(ctx, "Connection registered", "remote_addr", conn.RemoteAddr())

	defer func() {
		h.registry.Unregister(id)
		conn.Close()
		metrics.ActiveConnections.Set(float64(h.registry.Count()))
		slog.InfoContext(ctx, "Connection unregistered")
	}()

	welcome, err := protocol.Welcome(id, h.clock.Now()).Encode()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode welcome", "error", err)
		return
	}
	if err := conn.TrySend(welcome); err != nil {
		slog.WarnContext(ctx, "Failed to send welcome", "error", err)
		return
	}

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "Connection read failed", "error", err)
			}
			return
		}
		h.router.Dispatch(ctx, conn, frame)
	}
}

// DeliverRemote fans out a broadcast that originated on another instance.
// There is no local sender, so nobody is excluded.
func (h *Hub) DeliverRemote(payload json.RawMessage) {
	h.broadcaster.Broadcast(payload, "")
}

// Stop drains the hub: every registered connection gets a close frame and is
// unregistered, bounded by the drain timeout. Idempotent; later
// HandleConnection calls are rejected.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.stopped.Store(true)

		conns := h.registry.All()
		slog.Info("Hub draining connections", "count", len(conns))

		var wg sync.WaitGroup
		for _, conn := range conns {
			wg.Add(1)
			go func(c *Connection) {
				defer wg.Done()
				c.CloseGraceful("server shutting down")
				h.registry.Unregister(c.ID())
			}(conn)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		timer := h.clock.NewTimer(h.drainTimeout)
		defer timer.Stop()

		select {
		case <-done:
			slog.Info("Hub drained")
		case <-timer.Chan():
			slog.Warn("Drain timeout exceeded, forcing unregistration",
				"timeout", h.drainTimeout,
				"remaining", h.registry.Count(),
			)
			for _, conn := range h.registry.All() {
				h.registry.Unregister(conn.ID())
			}
		}

		metrics.ActiveConnections.Set(0)
	})
}
