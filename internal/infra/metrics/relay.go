package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		relayMessagesTotal,
		broadcastDeliveriesTotal,
		broadcastDuration,
	)
}

var (
	relayMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Relay forwards by direction (to_operator/to_user), content kind and result.",
		},
		[]string{"direction", "kind", "result"},
	)

	broadcastDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_deliveries_total",
			Help: "Per-recipient broadcast deliveries by result.",
		},
		[]string{"result"},
	)

	broadcastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Wall time of a full broadcast fan-out.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

func IncRelay(direction, kind, result string) {
	relayMessagesTotal.WithLabelValues(norm(direction), norm(kind), norm(result)).Inc()
}

func IncBroadcastDelivery(result string) {
	broadcastDeliveriesTotal.WithLabelValues(norm(result)).Inc()
}

func ObserveBroadcast(seconds float64) {
	broadcastDuration.Observe(seconds)
}
