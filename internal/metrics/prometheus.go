package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EntitlementDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lubricentro_entitlement_decisions_total",
			Help: "Entitlement checks by action and outcome",
		},
		[]string{"action", "allowed", "reason"},
	)

	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lubricentro_audit_events_total",
			Help: "Audit events recorded by type",
		},
		[]string{"type"},
	)

	AuditWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lubricentro_audit_write_failures_total",
			Help: "Audit events that could not be written, by sink",
		},
		[]string{"sink"},
	)

	OilChangesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lubricentro_oil_changes_created_total",
			Help: "Oil change records created per tenant",
		},
		[]string{"lubricentro"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lubricentro_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lubricentro_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var once sync.Once

// Init registers metrics with Prometheus
func Init() {
	once.Do(func() {
		prometheus.MustRegister(EntitlementDecisions)
		prometheus.MustRegister(AuditEvents)
		prometheus.MustRegister(AuditWriteFailures)
		prometheus.MustRegister(OilChangesCreated)
		prometheus.MustRegister(HTTPRequests)
		prometheus.MustRegister(HTTPDuration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
