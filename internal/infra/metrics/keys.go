package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		authKeysTotal,
		authKeysExpired,
	)
}

var (
	authKeysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_keys_total",
			Help: "Authorization key lifecycle events (issued/activated/revoked).",
		},
		[]string{"event"},
	)

	authKeysExpired = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auth_keys_expired",
			Help: "Activated, non-revoked keys whose computed expiry has passed.",
		},
	)
)

func IncAuthKey(event string) {
	authKeysTotal.WithLabelValues(norm(event)).Inc()
}

func SetExpiredKeys(n int) {
	authKeysExpired.Set(float64(n))
}
