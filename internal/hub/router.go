package hub

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsehub/internal/metrics"
	"github.com/pscheid92/pulsehub/internal/protocol"
)

// Router decodes inbound frames and dispatches them. It is the only
// component that interprets envelope types. Protocol-level problems
// (malformed frames, unknown types, missing fields) are logged and dropped;
// they never close the sending connection and never surface to the read loop.
type Router struct {
	registry    *Registry
	broadcaster *Broadcaster
	publisher   Publisher
	clock       clockwork.Clock
}

// NewRouter creates a router. publisher may be nil when no bridge is
// configured.
func NewRouter(registry *Registry, broadcaster *Broadcaster, publisher Publisher, clock clockwork.Clock) *Router {
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		publisher:   publisher,
		clock:       clock,
	}
}

// Dispatch handles one inbound frame from the given connection. Frames from
// the same connection arrive here sequentially (the read loop calls Dispatch
// inline); frames from different connections run concurrently.
func (r *Router) Dispatch(ctx context.Context, conn *Connection, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		metrics.MalformedFramesTotal.Inc()
		slog.WarnContext(ctx, "Dropping malformed frame", "error", err)
		return
	}

	metrics.FramesDispatchedTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case protocol.TypePing:
		r.handlePing(ctx, conn)
	case protocol.TypeBroadcast:
		r.handleBroadcast(ctx, conn, env)
	case protocol.TypeSubscribe:
		r.handleSubscription(ctx, conn, env, true)
	case protocol.TypeUnsubscribe:
		r.handleSubscription(ctx, conn, env, false)
	default:
		metrics.UnknownTypesTotal.Inc()
		slog.WarnContext(ctx, "Unrecognized message type", "type", env.Type)
	}
}

func (r *Router) handlePing(ctx context.Context, conn *Connection) {
	data, err := protocol.Pong(r.clock.Now()).Encode()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode pong", "error", err)
		return
	}
	if err := conn.TrySend(data); err != nil {
		slog.WarnContext(ctx, "Failed to send pong", "error", err)
		go conn.Close()
	}
}

func (r *Router) handleBroadcast(ctx context.Context, conn *Connection, env protocol.Envelope) {
	r.broadcaster.Broadcast(env.Payload, conn.ID())

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, env.Payload); err != nil {
			// Bridge trouble never affects local delivery.
			slog.WarnContext(ctx, "Failed to publish broadcast to bridge", "error", err)
		}
	}
}

func (r *Router) handleSubscription(ctx context.Context, conn *Connection, env protocol.Envelope, subscribe bool) {
	if env.Channel == "" {
		slog.WarnContext(ctx, "Dropping subscription frame without channel", "type", env.Type)
		return
	}

	if subscribe {
		r.registry.Subscribe(conn.ID(), env.Channel)
		metrics.SubscriptionsTotal.WithLabelValues("subscribe").Inc()
		slog.DebugContext(ctx, "Subscribed", "channel", env.Channel)
	} else {
		r.registry.Unsubscribe(conn.ID(), env.Channel)
		metrics.SubscriptionsTotal.WithLabelValues("unsubscribe").Inc()
		slog.DebugContext(ctx, "Unsubscribed", "channel", env.Channel)
	}
}
