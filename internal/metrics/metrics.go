package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Ledger outcomes
	PostingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Total ledger rows written",
		},
		[]string{"type"}, // NORMAL|RESERVATION|RESERVATION_COMMIT|RESERVATION_CANCEL|REJECTED_TRANSACTION
	)

	// Fulfillment pipeline
	FulfillmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillments_total",
			Help: "Total fulfillment messages consumed",
		},
		[]string{"topic", "status"}, // status: SUCCESS|MALFORMED_MESSAGE|INTERNAL_ERROR
	)
	DeadLettersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dead_letters_total",
			Help: "Total messages routed to the dead-letter topic",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(PostingsTotal)
	prometheus.MustRegister(FulfillmentsTotal)
	prometheus.MustRegister(DeadLettersTotal)
}
