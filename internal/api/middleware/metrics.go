// Package middleware provides HTTP middleware for the translation API server.
// This file contains the Prometheus metrics middleware.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translator_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "translator_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpResponseSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "translator_http_response_size_bytes",
			Help:    "Size of HTTP response bodies in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		},
		[]string{"method", "path"},
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "translator_active_connections",
			Help: "Number of currently active HTTP connections",
		},
	)
	activeConnectionsCount int64

	translationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translator_translation_outcomes_total",
			Help: "Translations served over HTTP by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	metricsRegistered atomic.Bool
	metricsEnabled    atomic.Bool
)

// Translation outcome labels.
const (
	OutcomeTranslated = "translated"
	OutcomeCacheHit   = "cache_hit"
	OutcomeFallback   = "fallback"
)

// SetMetricsEnabled toggles Prometheus metrics collection.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

// IsMetricsEnabled reports whether metrics are enabled.
func IsMetricsEnabled() bool {
	return metricsEnabled.Load()
}

// RegisterMetrics registers the HTTP metrics with the default registry once.
func RegisterMetrics() {
	if !metricsRegistered.CompareAndSwap(false, true) {
		return
	}
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpResponseSizeBytes,
		activeConnections,
		translationOutcomes,
		translationCollector,
	)
}

// PrometheusMiddleware collects request count, duration and response size.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsMetricsEnabled() || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		RegisterMetrics()

		atomic.AddInt64(&activeConnectionsCount, 1)
		activeConnections.Inc()
		defer func() {
			atomic.AddInt64(&activeConnectionsCount, -1)
			activeConnections.Dec()
		}()

		path := c.FullPath()
		if path == "" {
			path = normalizePath(c.Request.URL.Path)
		}
		method := c.Request.Method
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			httpResponseSizeBytes.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// normalizePath bounds label cardinality for unmatched routes.
func normalizePath(path string) string {
	switch {
	case path == "/" || path == "/healthz" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/v1/"):
		return "/v1/*"
	default:
		return "unmatched"
	}
}

// MetricsHandler serves the Prometheus exposition.
func MetricsHandler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		if !IsMetricsEnabled() {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		RegisterMetrics()
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// GetActiveConnections returns the current number of active connections.
func GetActiveConnections() int64 {
	return atomic.LoadInt64(&activeConnectionsCount)
}

// RecordTranslation counts one translation served over HTTP.
func RecordTranslation(strategy string, cacheHit, fallback bool) {
	if !IsMetricsEnabled() {
		return
	}
	outcome := OutcomeTranslated
	switch {
	case fallback:
		outcome = OutcomeFallback
	case cacheHit:
		outcome = OutcomeCacheHit
	}
	translationOutcomes.WithLabelValues(strategy, outcome).Inc()
}
