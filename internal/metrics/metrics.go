// Package metrics provides Prometheus metrics for uploadsfs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics for the DAV listener
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsfs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploadsfs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Remote files API
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsfs_api_requests_total",
			Help: "Total remote files API requests by operation and response code",
		},
		[]string{"operation", "code"},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploadsfs_api_request_duration_seconds",
			Help:    "Remote files API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	apiUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uploadsfs_api_upload_bytes_total",
			Help: "Total bytes sent to the remote files API",
		},
	)

	// Routing
	transportCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsfs_transport_calls_total",
			Help: "Filesystem calls routed to each transport",
		},
		[]string{"transport", "operation"},
	)

	fatalErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsfs_fatal_errors_total",
			Help: "Unroutable paths and unsupported operations",
		},
		[]string{"code"},
	)

	// S3 metrics
	s3OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uploadsfs_s3_operation_duration_seconds",
			Help:    "S3 operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	s3OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsfs_s3_operations_total",
			Help: "Total S3 operations",
		},
		[]string{"operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAPIRequest records a remote API call. code is the HTTP status, or 0
// when the request never produced a response.
func RecordAPIRequest(operation string, code int, duration time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	apiRequestsTotal.WithLabelValues(operation, label).Inc()
	apiRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUploadBytes adds to the uploaded byte counter.
func RecordUploadBytes(n int64) {
	apiUploadBytes.Add(float64(n))
}

// RecordTransportCall counts a facade call routed to transport.
func RecordTransportCall(transport, operation string) {
	transportCallsTotal.WithLabelValues(transport, operation).Inc()
}

// RecordFatalError counts a fatal-tier error by code.
func RecordFatalError(code string) {
	fatalErrorsTotal.WithLabelValues(code).Inc()
}

// RecordS3Operation records an S3 operation.
func RecordS3Operation(operation string, duration time.Duration, success bool) {
	s3OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	s3OperationsTotal.WithLabelValues(operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code the
// client saw. Later WriteHeader calls are ignored by net/http and here.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, rw.statusCode, time.Since(start))
	})
}
