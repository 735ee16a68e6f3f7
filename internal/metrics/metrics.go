package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fulfillment outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeNotFound  = "not_found"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fulfillments        *prometheus.CounterVec
	providerDuration    prometheus.Histogram
	reportsRequested    prometheus.Counter
	exportsGenerated    *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with registerer
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_fulfillments_total",
			Help: "Report requested messages processed by outcome.",
		}, []string{"outcome"}), // completed | failed | not_found | skipped | error
		providerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meter_provider_request_duration_seconds",
			Help:    "Duration of meter data provider calls.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		reportsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reports_requested_total",
			Help: "Reports created and queued for fulfillment.",
		}),
		exportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_exports_total",
			Help: "Report exports generated by format.",
		}, []string{"format"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	registerer.MustRegister(
		m.fulfillments,
		m.providerDuration,
		m.reportsRequested,
		m.exportsGenerated,
		m.httpRequests,
		m.httpRequestDuration,
	)

	return m
}

func (m *Metrics) IncFulfillment(outcome string) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveProviderCall(d time.Duration) {
	if m == nil {
		return
	}
	m.providerDuration.Observe(d.Seconds())
}

func (m *Metrics) IncReportsRequested() {
	if m == nil {
		return
	}
	m.reportsRequested.Inc()
}

func (m *Metrics) IncExport(format string) {
	if m == nil {
		return
	}
	m.exportsGenerated.WithLabelValues(format).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
