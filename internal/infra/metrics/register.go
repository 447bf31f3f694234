package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register queues collectors from each file's init; nothing is exported to
// Prometheus until MustRegister runs.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister publishes every relay collector on the default registry,
// which is what /metrics serves. Repeated calls are no-ops.
func MustRegister() {
	MustRegisterWith(prometheus.DefaultRegisterer)
}

func MustRegisterWith(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(pending...)
	})
}
