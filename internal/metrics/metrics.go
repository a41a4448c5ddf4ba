// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion Metrics
	FixesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_fixes_ingested_total",
			Help: "Total number of location fixes persisted",
		},
		[]string{"endpoint"}, // "single", "batch"
	)

	IngestValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_ingest_validation_failures_total",
			Help: "Total number of ingestion requests rejected by validation",
		},
		[]string{"endpoint"},
	)

	IngestRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldtrack_ingest_rate_limited_total",
			Help: "Total number of ingestion requests rejected by the per-user limiter",
		},
	)

	// Live Broadcast Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldtrack_websocket_connections",
			Help: "Current number of connected live viewers",
		},
	)

	BroadcastDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldtrack_broadcast_delivered_total",
			Help: "Total number of location updates queued to viewers",
		},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_broadcast_dropped_total",
			Help: "Total number of location updates dropped because a buffer was full",
		},
		[]string{"stage"}, // "hub", "client"
	)

	// Maintenance Metrics
	MaintenanceJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_maintenance_jobs_total",
			Help: "Total number of finished maintenance jobs",
		},
		[]string{"kind", "status"},
	)

	MaintenanceRowsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_maintenance_rows_deleted_total",
			Help: "Total number of location rows removed by maintenance",
		},
		[]string{"kind"},
	)

	MaintenanceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldtrack_maintenance_duration_seconds",
			Help:    "Duration of maintenance jobs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind"},
	)

	// Event Bus Metrics
	EventBusPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldtrack_eventbus_published_total",
			Help: "Total number of location events published to NATS",
		},
	)

	EventBusPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_eventbus_publish_failures_total",
			Help: "Total number of location events that could not be published",
		},
		[]string{"reason"}, // "queue_full", "circuit_open", "error"
	)

	EventBusReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fieldtrack_eventbus_received_total",
			Help: "Total number of location events received from NATS",
		},
	)

	EventBusQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldtrack_eventbus_queue_depth",
			Help: "Current number of events waiting to be published",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldtrack_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fieldtrack_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fieldtrack_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fieldtrack_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest counts persisted fixes for an ingestion endpoint.
func RecordIngest(endpoint string, count int) {
	FixesIngested.WithLabelValues(endpoint).Add(float64(count))
}

// RecordIngestValidationFailure counts a rejected ingestion request.
func RecordIngestValidationFailure(endpoint string) {
	IngestValidationFailures.WithLabelValues(endpoint).Inc()
}

// RecordMaintenanceJob records a finished maintenance job.
func RecordMaintenanceJob(kind, status string, affected int64, duration time.Duration) {
	MaintenanceJobs.WithLabelValues(kind, status).Inc()
	MaintenanceDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if affected > 0 {
		MaintenanceRowsDeleted.WithLabelValues(kind).Add(float64(affected))
	}
}

// SetCircuitBreakerState exports a breaker state as 0, 1 or 2.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
