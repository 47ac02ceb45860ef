package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Ingest metrics
	IngestRunsTotal     *prometheus.CounterVec
	IngestRunDuration   prometheus.Histogram
	IngestRowsProcessed *prometheus.CounterVec
	RecordsWritten      prometheus.Counter

	// Store metrics
	StoreCalls     *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	StoreFailures  *prometheus.CounterVec
	StorePagesRead prometheus.Counter

	// External API metrics
	ExternalAPICalls    *prometheus.CounterVec
	ExternalAPIDuration *prometheus.HistogramVec
	ExternalAPIFailures *prometheus.CounterVec

	// View metrics
	ViewsComputed *prometheus.CounterVec
}

// New registers collectors on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors on reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		IngestRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total number of ingest runs by outcome",
			},
			[]string{"status"},
		),

		IngestRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Ingest run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),

		IngestRowsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_rows_total",
				Help: "Rows seen by the normalizer by outcome",
			},
			[]string{"outcome"},
		),

		RecordsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "records_written_total",
				Help: "Records inserted or updated in the record store",
			},
		),

		StoreCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_calls_total",
				Help: "Total number of record store calls",
			},
			[]string{"operation", "status"},
		),

		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_call_duration_seconds",
				Help:    "Record store call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		StoreFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_failures_total",
				Help: "Total number of record store failures",
			},
			[]string{"operation"},
		),

		StorePagesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "store_pages_read_total",
				Help: "Pages fetched while reading record ranges",
			},
		),

		ExternalAPICalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api", "status"},
		),

		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_api_duration_seconds",
				Help:    "External API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),

		ExternalAPIFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "external_api_failures_total",
				Help: "Total number of external API failures",
			},
			[]string{"api", "error_type"},
		),

		ViewsComputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "views_computed_total",
				Help: "Total number of roll-up views computed",
			},
			[]string{"level"},
		),
	}
}

// HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// Ingest run metrics
func (m *Metrics) RecordIngestRun(status string, duration time.Duration) {
	m.IngestRunsTotal.WithLabelValues(status).Inc()
	m.IngestRunDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordIngestRows(outcome string, count int) {
	m.IngestRowsProcessed.WithLabelValues(outcome).Add(float64(count))
}

func (m *Metrics) RecordWritten(count int) {
	m.RecordsWritten.Add(float64(count))
}

// Store call metrics
func (m *Metrics) RecordStoreCall(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
		m.StoreFailures.WithLabelValues(operation).Inc()
	}
	m.StoreCalls.WithLabelValues(operation, status).Inc()
	m.StoreDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordPageRead() {
	m.StorePagesRead.Inc()
}

// External API call metrics
func (m *Metrics) RecordExternalAPICall(api, status string, duration time.Duration) {
	m.ExternalAPICalls.WithLabelValues(api, status).Inc()
	m.ExternalAPIDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// External API failure metrics
func (m *Metrics) RecordExternalAPIFailure(api, errorType string) {
	m.ExternalAPIFailures.WithLabelValues(api, errorType).Inc()
}

func (m *Metrics) RecordView(level string) {
	m.ViewsComputed.WithLabelValues(level).Inc()
}

// HTTP requests in flight counter
func (m *Metrics) IncHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// HTTP requests in flight counter
func (m *Metrics) DecHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}
