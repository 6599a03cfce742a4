package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coolguard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_readings_total",
			Help: "Total number of readings submitted",
		},
		[]string{"status"}, // status: accepted, rejected, persist_failed
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_classifications_total",
			Help: "Total number of threshold classifications by outcome",
		},
		[]string{"reason"},
	)

	ValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_validation_errors_total",
			Help: "Total number of validation errors",
		},
		[]string{"error_type"},
	)

	// Persistence metrics
	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coolguard_store_write_duration_seconds",
			Help:    "Time taken to append a record to the store",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"table"}, // readings, analyses
	)

	StoreWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_store_write_failures_total",
			Help: "Total number of failed store writes",
		},
		[]string{"table"},
	)

	// Diagnostic oracle metrics
	OracleCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_oracle_calls_total",
			Help: "Total number of diagnostic oracle invocations",
		},
		[]string{"status"}, // status: success, unavailable
	)

	OracleCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coolguard_oracle_call_duration_seconds",
			Help:    "Diagnostic oracle round-trip time",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_notifications_total",
			Help: "Total number of notification attempts per channel",
		},
		[]string{"channel", "status"}, // status: sent, failed
	)

	// Export metrics
	ExportQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coolguard_export_queue_size",
			Help: "Current size of the export queue",
		},
	)

	ExportQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coolguard_export_queue_capacity",
			Help: "Capacity of the export queue",
		},
	)

	ExportPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coolguard_export_published_total",
			Help: "Total number of reading envelopes published to Kafka",
		},
	)

	ExportFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coolguard_export_failed_total",
			Help: "Total number of reading envelopes that failed to publish",
		},
	)

	ExportBatchPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coolguard_export_batch_publish_duration_seconds",
			Help:    "Time taken to publish an export batch to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coolguard_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
