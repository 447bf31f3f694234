package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminCommandTotal) }

// adminCommandTotal covers both surfaces: bot commands/callbacks and the
// admin REST API go through the same operator guard.
var adminCommandTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_command_total",
		Help: "Operator actions by outcome.",
	},
	[]string{"command", "status"}, // status: success, error, denied
)

func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(norm(command), norm(status)).Inc()
}
