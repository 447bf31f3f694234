package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentRequestsTotal,
		paymentRevenueTotal,
	)
}

var (
	paymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_requests_total",
			Help: "Payment requests by outcome (submitted/approved/rejected/duplicate).",
		},
		[]string{"status"},
	)

	paymentRevenueTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_revenue_total",
			Help: "Sum of plan prices over approved payment requests.",
		},
	)
)

func IncPayment(status string) {
	paymentRequestsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(amount float64) {
	if amount > 0 {
		paymentRevenueTotal.Add(amount)
	}
}
