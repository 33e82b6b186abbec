// AttendSync - Biometric Attendance Device Synchronization for HRMS
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/attendsync

// Package metrics exposes Prometheus instrumentation for sync cycles, device
// I/O, the user directory cache, the sync ledger, notifications, DuckDB queries,
// the HTTP API and WebSocket clients. All collectors register on the default
// registry and are served at /metrics.
package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Sync Cycle Metrics
	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_cycles_total",
			Help: "Total number of completed sync cycles",
		},
		[]string{"trigger", "result"}, // result: "success", "failure"
	)

	SyncCyclesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_cycles_skipped_total",
			Help: "Sync cycles not started because another cycle was in progress",
		},
		[]string{"trigger"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attendance_sync_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_records_total",
			Help: "Punch records handled by the upsert engine",
		},
		[]string{"outcome"}, // "added", "updated", "skipped"
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_sync_errors_total",
			Help: "Total number of sync cycle failures by stage",
		},
		[]string{"stage"}, // "users", "punches", "upsert"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync cycle",
		},
	)

	SyncAutoEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "attendance_sync_auto_enabled",
			Help: "1 when the periodic sync scheduler is running",
		},
	)

	// Device Metrics
	DeviceConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_connect_attempts_total",
			Help: "Connection attempts to the attendance terminal",
		},
		[]string{"result"}, // "success", "failure"
	)

	DeviceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "device_operation_duration_seconds",
			Help:    "Duration of device operations including connect retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "result"},
	)

	DeviceReachable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "device_reachable",
			Help: "Result of the latest ICMP probe (1 reachable, 0 unreachable)",
		},
	)

	// User Directory Cache Metrics
	DirectoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "device_user_cache_hits_total",
			Help: "User directory lookups served from cache",
		},
	)

	DirectoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "device_user_cache_misses_total",
			Help: "User directory lookups that required a device fetch",
		},
	)

	DirectoryCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "device_user_cache_entries",
			Help: "Number of device users currently cached",
		},
	)

	// Ledger Metrics
	LedgerWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ledger_write_failures_total",
			Help: "Sync status records that could not be written to the database",
		},
	)

	LedgerSpooled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ledger_spooled_total",
			Help: "Sync status records written to the local spool",
		},
	)

	LedgerReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_ledger_replayed_total",
			Help: "Spooled sync status records replayed into the database",
		},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_notifications_total",
			Help: "Notifications created for recipients",
		},
		[]string{"result"}, // "sent", "failed"
	)

	// Event Publishing Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_published_total",
			Help: "Sync events published to the message broker",
		},
		[]string{"type", "result"}, // result: "success", "failure"
	)

	// Backup Metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_backups_total",
			Help: "Database backups attempted",
		},
		[]string{"trigger", "result"},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_backup_last_success_timestamp_seconds",
			Help: "Unix time of the last successful database backup",
		},
	)

	BackupsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "database_backups_pruned_total",
			Help: "Backups removed by the retention policy",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Messages broadcast to WebSocket clients",
		},
		[]string{"type"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, classifyDBError(err)).Inc()
	}
}

// classifyDBError maps an error to a bounded label value.
func classifyDBError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case strings.Contains(msg, "constraint"):
		return "constraint"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "closed"):
		return "connection"
	case strings.Contains(msg, "conversion"), strings.Contains(msg, "invalid input"):
		return "conversion"
	default:
		return "other"
	}
}

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

// RecordSyncCycle records the outcome of one completed sync cycle.
func RecordSyncCycle(trigger string, duration time.Duration, added, updated, skipped int, failedStage string) {
	SyncDuration.Observe(duration.Seconds())
	if failedStage != "" {
		SyncCyclesTotal.WithLabelValues(trigger, "failure").Inc()
		SyncErrors.WithLabelValues(failedStage).Inc()
		return
	}
	SyncCyclesTotal.WithLabelValues(trigger, "success").Inc()
	SyncRecords.WithLabelValues("added").Add(float64(added))
	SyncRecords.WithLabelValues("updated").Add(float64(updated))
	SyncRecords.WithLabelValues("skipped").Add(float64(skipped))
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordSyncSkipped records a cycle dropped because another was running.
func RecordSyncSkipped(trigger string) {
	SyncCyclesSkipped.WithLabelValues(trigger).Inc()
}

// SetAutoSync reports whether the scheduler is running.
func SetAutoSync(running bool) {
	SyncAutoEnabled.Set(boolToFloat(running))
}

// RecordDeviceConnect records a single connect attempt.
func RecordDeviceConnect(err error) {
	if err != nil {
		DeviceConnectAttempts.WithLabelValues("failure").Inc()
		return
	}
	DeviceConnectAttempts.WithLabelValues("success").Inc()
}

// RecordDeviceOperation records the end-to-end duration of a device operation.
func RecordDeviceOperation(operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	DeviceOperationDuration.WithLabelValues(operation, result).Observe(duration.Seconds())
}

// SetDeviceReachable records the latest probe result.
func SetDeviceReachable(reachable bool) {
	DeviceReachable.Set(boolToFloat(reachable))
}

// RecordNotification records one notification create attempt.
func RecordNotification(err error) {
	if err != nil {
		NotificationsTotal.WithLabelValues("failed").Inc()
		return
	}
	NotificationsTotal.WithLabelValues("sent").Inc()
}

// RecordEventPublish records one broker publish attempt.
func RecordEventPublish(eventType string, err error) {
	if err != nil {
		EventsPublished.WithLabelValues(eventType, "failure").Inc()
		return
	}
	EventsPublished.WithLabelValues(eventType, "success").Inc()
}

// RecordBackup records one backup attempt.
func RecordBackup(trigger string, err error) {
	if err != nil {
		BackupsTotal.WithLabelValues(trigger, "failure").Inc()
		return
	}
	BackupsTotal.WithLabelValues(trigger, "success").Inc()
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
