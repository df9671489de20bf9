// Package metrics provides Prometheus metrics for the DigiData server.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digidata_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digidata_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Drive core metrics
	driveOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digidata_drive_operations_total",
			Help: "Total drive core operations by result",
		},
		[]string{"op", "result"},
	)

	driveOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digidata_drive_operation_duration_seconds",
			Help:    "Drive core operation duration including lock wait",
			Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
		},
		[]string{"op"},
	)

	nodeCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digidata_nodes",
			Help: "Number of nodes in the metadata store (live and trashed)",
		},
	)

	// Blob backend metrics
	blobOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digidata_blob_operations_total",
			Help: "Total blob backend operations",
		},
		[]string{"backend", "op", "success"},
	)

	blobOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digidata_blob_operation_duration_seconds",
			Help:    "Blob backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digidata_content_bytes_uploaded_total",
			Help: "Total bytes accepted by the upload endpoint",
		},
	)

	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digidata_content_bytes_downloaded_total",
			Help: "Total bytes served by the download endpoint",
		},
	)

	// Persistence metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digidata_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digidata_db_connections_open",
			Help: "Open database connections",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digidata_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		},
		[]string{"success"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "digidata_sse_connections_active",
			Help: "Active SSE subscriber connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digidata_sse_events_total",
			Help: "SSE events published by type",
		},
		[]string{"type"},
	)
)

// RecordHTTPRequest records an HTTP request outcome.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDriveOp records a drive core operation. The result label is
// "ok" for success, otherwise the failure kind.
func RecordDriveOp(op string, duration time.Duration, err error) {
	driveOpsTotal.WithLabelValues(op, resultLabel(err)).Inc()
	driveOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// resultLabel maps an error chain to its sentinel's message so label
// cardinality stays bounded; unrecognized failures are lumped.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	switch msg := err.Error(); msg {
	case "not found", "invalid parent", "name conflict", "cycle detected",
		"quota exceeded", "not trashed", "cannot share with owner",
		"corrupt hierarchy", "store busy":
		return msg
	default:
		return "error"
	}
}

// SetNodeCount updates the metadata store size gauge.
func SetNodeCount(n int64) {
	nodeCount.Set(float64(n))
}

// RecordBlobOp records a blob backend operation.
func RecordBlobOp(backend, op string, duration time.Duration, success bool) {
	blobOpsTotal.WithLabelValues(backend, op, strconv.FormatBool(success)).Inc()
	blobOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordContentUpload adds to the uploaded byte counter.
func RecordContentUpload(bytes int64) {
	contentBytesUploaded.Add(float64(bytes))
}

// RecordContentDownload adds to the downloaded byte counter.
func RecordContentDownload(bytes int64) {
	contentBytesDownloaded.Add(float64(bytes))
}

// RecordDBQuery records a persistence query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen updates the open-connections gauge.
func SetDBConnectionsOpen(n int) {
	dbConnectionsOpen.Set(float64(n))
}

// RecordAuthAttempt records an authentication attempt outcome.
func RecordAuthAttempt(success bool) {
	authAttemptsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// SetSSEConnectionsActive updates the SSE subscriber gauge.
func SetSSEConnectionsActive(n int64) {
	sseConnectionsActive.Set(float64(n))
}

// RecordSSEEvent records a published SSE event.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
