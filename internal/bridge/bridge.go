package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/pulsehub/internal/metrics"
)

const (
	broadcastChannel = "pulsehub:broadcast"
	publishTimeout   = 2 * time.Second
)

// message is the wire format on the Redis channel. The instance id lets each
// subscriber skip broadcasts it published itself.
type message struct {
	Instance string          `json:"instance"`
	Payload  json.RawMessage `json:"payload"`
}

// Bridge relays broadcast payloads between hub instances over Redis Pub/Sub.
// It is strictly best-effort: a publish failure is reported to the caller and
// counted, but local fan-out has already happened by then.
type Bridge struct {
	rdb      *goredis.Client
	instance string
	cb       circuitbreaker.CircuitBreaker[any]
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a bridge from a Redis URL (e.g. "redis://localhost:6379") and
// verifies the connection. instance must be unique per process.
func New(ctx context.Context, redisURL, instance string) (*Bridge, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Bridge{
		rdb:      rdb,
		instance: instance,
		cb:       newPublishBreaker(),
		done:     make(chan struct{}),
	}, nil
}

// Publish sends a locally-originated broadcast payload to peer instances.
func (b *Bridge) Publish(ctx context.Context, payload json.RawMessage) error {
	data, err := json.Marshal(message{Instance: b.instance, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal bridge message: %w", err)
	}

	if !b.cb.TryAcquirePermit() {
		metrics.BridgePublishesTotal.WithLabelValues("circuit_open").Inc()
		return fmt.Errorf("bridge publish rejected: %w", circuitbreaker.ErrOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.rdb.Publish(ctx, broadcastChannel, data).Err(); err != nil {
		b.cb.RecordError(err)
		metrics.BridgePublishesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish bridge message: %w", err)
	}

	b.cb.RecordSuccess()
	metrics.BridgePublishesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Start subscribes to the broadcast channel and invokes deliver for every
// payload published by another instance. It returns immediately; the
// subscription runs until Close.
func (b *Bridge) Start(deliver func(payload json.RawMessage)) {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	sub := b.rdb.Subscribe(ctx, broadcastChannel)

	go func() {
		defer close(b.done)
		defer func() { _ = sub.Close() }()

		msgCh := sub.Channel()
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				var m message
				if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
					slog.Warn("Dropping malformed bridge message", "error", err)
					continue
				}
				if m.Instance == b.instance {
					continue
				}
				metrics.BridgeReceivedTotal.Inc()
				deliver(m.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the subscription and releases the Redis client. Safe to call
// when Start was never invoked.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	_ = b.rdb.Close()
}
