package metrics

import (
	"securemeet/relaygate/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// SignalingMetrics tracks the signaling server.
//
// Metrics:
//   - relaygate_signaling_connections_active: live WebSocket connections
//   - relaygate_signaling_rooms_active: rooms with at least one member
//   - relaygate_signaling_room_joins_total: join attempts by result
//   - relaygate_signaling_relayed_messages_total: relayed messages by type and result
//   - relaygate_signaling_outbox_timeouts_total: connections dropped for backpressure
type SignalingMetrics struct {
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	roomJoinsTotal    *prometheus.CounterVec
	relayedTotal      *prometheus.CounterVec
	outboxTimeouts    prometheus.Counter
}

// NewSignalingMetrics creates and registers signaling metrics with the provided registry.
func NewSignalingMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SignalingMetrics {
	sm := &SignalingMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "signaling",
			Name:      "connections_active",
			Help:      "Number of live signaling connections",
		}),
		roomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "signaling",
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one member",
		}),
		roomJoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "signaling",
				Name:      "room_joins_total",
				Help:      "Total room join attempts by result",
			},
			[]string{"result"},
		),
		relayedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "signaling",
				Name:      "relayed_messages_total",
				Help:      "Total signaling messages relayed between peers",
			},
			[]string{"type", "result"},
		),
		outboxTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "signaling",
			Name:      "outbox_timeouts_total",
			Help:      "Connections disconnected because their outbound queue stayed full",
		}),
	}

	registry.MustRegister(
		sm.connectionsActive,
		sm.roomsActive,
		sm.roomJoinsTotal,
		sm.relayedTotal,
		sm.outboxTimeouts,
	)

	return sm
}
