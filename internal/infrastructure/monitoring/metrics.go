// Package monitoring exposes Prometheus metrics for the execution backend
// plus a mutex-guarded snapshot consumed by the JSON metrics API and the
// websocket stream.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration prometheus.Histogram
	ActiveExecutions  prometheus.Gauge

	// Cache metrics
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheEntries prometheus.Gauge

	// Queue metrics
	QueueDepth prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - tracks current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API and ws stream.
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	TotalExecutions int64   `json:"total_executions"`
	CacheHits       int64   `json:"cache_hits"`
	TotalDuration   float64 `json:"total_duration_seconds"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ExecutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_executions_total",
				Help: "Total number of code executions by status",
			},
			[]string{"status"},
		),
		ExecutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backend_execution_duration_seconds",
				Help:    "Code execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		ActiveExecutions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_active_executions",
				Help: "Number of executions currently running",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_cache_hits_total",
				Help: "Total number of result cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backend_cache_misses_total",
				Help: "Total number of result cache misses",
			},
		),
		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_cache_entries",
				Help: "Number of entries in the result cache",
			},
		),

		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_queue_depth",
				Help: "Number of executions waiting in the queue",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordExecution records a finished execution
func (m *Metrics) RecordExecution(status string, duration time.Duration, fromCache bool) {
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	m.ExecutionDuration.Observe(duration.Seconds())
	if fromCache {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}

	m.mu.Lock()
	m.snapshot.TotalExecutions++
	m.snapshot.TotalDuration += duration.Seconds()
	if fromCache {
		m.snapshot.CacheHits++
	}
	m.mu.Unlock()
}

// SetActiveExecutions sets the number of currently running executions
func (m *Metrics) SetActiveExecutions(count int) {
	m.ActiveExecutions.Set(float64(count))
}

// SetQueueDepth sets the number of backlogged executions
func (m *Metrics) SetQueueDepth(count int) {
	m.QueueDepth.Set(float64(count))
}

// SetCacheEntries sets the current cache entry count
func (m *Metrics) SetCacheEntries(count int) {
	m.CacheEntries.Set(float64(count))
}

// GetSnapshot returns a copy of the current snapshot values
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
