package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection lifecycle metrics
var (
	// ActiveConnections tracks the number of currently registered connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_connections",
			Help: "Number of currently registered hub connections",
		},
	)

	// ConnectionsAcceptedTotal tracks accepted connections over the process lifetime
	ConnectionsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_connections_accepted_total",
			Help: "Total connections accepted and registered",
		},
	)

	// ConnectionsRejectedTotal tracks upgrades rejected before registration, by reason
	ConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_connections_rejected_total",
			Help: "Total connection attempts rejected by admission limits",
		},
		[]string{"reason"},
	)

	// SlowClientsEvictedTotal tracks connections closed because their send buffer was full
	SlowClientsEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_clients_evicted_total",
			Help: "Total connections evicted because their send buffer was full",
		},
	)
)

// Router metrics
var (
	// FramesDispatchedTotal tracks successfully decoded frames by message type
	FramesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_frames_dispatched_total",
			Help: "Total inbound frames dispatched by message type",
		},
		[]string{"type"},
	)

	// MalformedFramesTotal tracks inbound frames dropped because they failed to decode
	MalformedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_malformed_frames_total",
			Help: "Total inbound frames dropped as malformed",
		},
	)

	// UnknownTypesTotal tracks decoded frames with an unrecognized message type
	UnknownTypesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_unknown_message_types_total",
			Help: "Total decoded frames with an unrecognized message type",
		},
	)
)

// Broadcast metrics
var (
	// BroadcastsTotal tracks fan-outs initiated (local and bridge-originated)
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total broadcast fan-outs initiated",
		},
	)

	// BroadcastDeliveriesTotal tracks individual recipient sends during fan-out
	BroadcastDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcast_deliveries_total",
			Help: "Total per-recipient deliveries during fan-out",
		},
	)

	// BroadcastFailuresTotal tracks per-recipient send failures during fan-out
	BroadcastFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_broadcast_failures_total",
			Help: "Total per-recipient send failures during fan-out",
		},
	)

	// MessageSendDuration tracks WebSocket write latency in seconds
	MessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_message_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Subscription metrics
var (
	// SubscriptionsTotal tracks subscribe/unsubscribe operations by action
	SubscriptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_subscription_operations_total",
			Help: "Total subscribe and unsubscribe operations by action",
		},
		[]string{"action"},
	)
)

// Keepalive metrics
var (
	// KeepalivePingFailures tracks failed WebSocket-level keepalive pings
	KeepalivePingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_keepalive_ping_failures_total",
			Help: "Total failed WebSocket-level keepalive pings",
		},
	)
)

// Bridge metrics
var (
	// BridgePublishesTotal tracks bridge publishes by status
	BridgePublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_bridge_publishes_total",
			Help: "Total broadcast envelopes published to the bridge by status",
		},
		[]string{"status"},
	)

	// BridgeReceivedTotal tracks broadcast envelopes received from other instances
	BridgeReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_bridge_received_total",
			Help: "Total broadcast envelopes received from other instances",
		},
	)

	// BridgeCircuitState tracks the bridge circuit breaker state (0=closed, 1=half-open, 2=open)
	BridgeCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_bridge_circuit_state",
			Help: "Bridge circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
