// Package metrics defines the Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event source metrics
	EventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_events_received_total",
			Help: "Total number of telemetry events produced by the source",
		},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_events_dropped_total",
			Help: "Total number of events produced with no listener registered",
		},
	)

	// Pipeline metrics
	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_extraction_failures_total",
			Help: "Total number of events dropped during feature extraction",
		},
		[]string{"reason"},
	)

	EventProcessingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "driftwatch_event_processing_seconds",
			Help:    "Duration of full pipeline processing per event in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Detection metrics
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_anomalies_detected_total",
			Help: "Total number of anomalies flagged by the detector",
		},
		[]string{"category", "severity"},
	)

	GlobalSensitivity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driftwatch_global_sensitivity",
			Help: "Current process-wide detection sensitivity",
		},
	)

	// Alert lifecycle metrics
	AlertsRaised = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_alerts_raised_total",
			Help: "Total number of alerts raised",
		},
	)

	AlertsAutoConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_alerts_autoconfirmed_total",
			Help: "Total number of alerts confirmed by the auto-confirm timer",
		},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "driftwatch_alert_status_transitions_total",
			Help: "Total number of alert status transitions applied",
		},
		[]string{"status"},
	)

	// Collaborator metrics
	ArchiveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_archive_failures_total",
			Help: "Total number of anomalies that failed to index into OpenSearch",
		},
	)

	NotifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "driftwatch_notify_failures_total",
			Help: "Total number of failed NATS publishes",
		},
	)
)
