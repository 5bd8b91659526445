package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts accepted order submissions.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders accepted",
	})

	// StatusTransitions counts applied lifecycle transitions.
	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Applied order status transitions",
	}, []string{"from", "to", "role"})

	// RejectedTransitions counts transition requests refused by the machine.
	RejectedTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Rejected order transition requests",
	}, []string{"reason"})

	// HTTPRequests counts handled requests by path and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests",
	}, []string{"path", "method", "code"})
)
