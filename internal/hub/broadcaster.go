package hub

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/pulsehub/internal/metrics"
	"github.com/pscheid92/pulsehub/internal/protocol"
)

// Broadcaster fans a message out to every registered connection.
//
// Delivery is at-most-once and best-effort: there is no acknowledgment,
// retry, or queue. A recipient whose send buffer is full is logged, counted,
// and closed asynchronously so its own read-loop error path unregisters it;
// one broken peer never stalls or aborts delivery to the rest.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{registry: registry, clock: clock}
}

// Broadcast wraps payload in a fresh server-stamped broadcast envelope and
// delivers it to every registered connection except excludeID. Pass an empty
// excludeID to reach everyone (bridge-originated messages have no local
// sender).
//
// Subscriptions are tracked per connection but do not filter delivery.
func (b *Broadcaster) Broadcast(payload json.RawMessage, excludeID string) {
	data, err := protocol.Rebroadcast(payload, b.clock.Now()).Encode()
	if err != nil {
		slog.Error("Failed to encode broadcast envelope", "error", err)
		return
	}

	metrics.BroadcastsTotal.Inc()

	for _, conn := range b.registry.All() {
		if conn.ID() == excludeID {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			metrics.BroadcastFailuresTotal.Inc()
			if errors.Is(err, ErrSendBufferFull) {
				metrics.SlowClientsEvictedTotal.Inc()
			}
			slog.Warn("Dropping broadcast recipient",
				"connection_id", conn.ID(),
				"error", err,
			)
			// Closing the socket makes the recipient's read loop fail,
			// which unregisters it outside this fan-out loop.
			go conn.Close()
			continue
		}
		metrics.BroadcastDeliveriesTotal.Inc()
	}
}
