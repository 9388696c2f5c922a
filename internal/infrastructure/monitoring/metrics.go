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

	// Install metrics
	InstallsTotal   *prometheus.CounterVec
	InstallDuration *prometheus.HistogramVec
	UninstallsTotal *prometheus.CounterVec

	// Parse metrics
	ParsesTotal   *prometheus.CounterVec
	ParseDuration *prometheus.HistogramVec

	// Store metrics
	StoreRewrites        *prometheus.CounterVec
	StoreRewriteDuration *prometheus.HistogramVec

	// Installd metrics
	InstalldOps    *prometheus.CounterVec
	InstalldErrors *prometheus.CounterVec

	// Aggregate metrics
	BundlesInstalled prometheus.Gauge

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests    int64
	TotalErrors      int64
	InstalledBundles int64
	TotalDuration    float64 // sum of all request durations
	RequestCount     int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Install metrics
		InstallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_installs_total",
				Help: "Total number of bundle install operations",
			},
			[]string{"kind", "status"},
		),
		InstallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_install_duration_seconds",
				Help:    "Bundle install duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		UninstallsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_uninstalls_total",
				Help: "Total number of bundle uninstall operations",
			},
			[]string{"status"},
		),

		// Parse metrics
		ParsesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_profile_parses_total",
				Help: "Total number of manifest parses",
			},
			[]string{"schema", "status"},
		),
		ParseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_profile_parse_duration_seconds",
				Help:    "Manifest parse duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"schema"},
		),

		// Store metrics
		StoreRewrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_store_rewrites_total",
				Help: "Total number of whole-file store rewrites",
			},
			[]string{"store", "status"},
		),
		StoreRewriteDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_store_rewrite_duration_seconds",
				Help:    "Store rewrite duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"store"},
		),

		// Installd metrics
		InstalldOps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_installd_operations_total",
				Help: "Total number of privileged installer operations",
			},
			[]string{"operation", "status"},
		),
		InstalldErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_installd_errors_total",
				Help: "Total number of privileged installer failures",
			},
			[]string{"operation", "code"},
		),

		// Aggregate metrics
		BundlesInstalled: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bms_bundles_installed",
				Help: "Number of bundles currently installed",
			},
		),

		// Service metrics
		ServiceCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bms_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	// Start uptime updater
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
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordInstall records an install operation outcome. Kind is "new",
// "update", or "preinstall".
func (m *Metrics) RecordInstall(kind, status string, duration time.Duration) {
	m.InstallsTotal.WithLabelValues(kind, status).Inc()
	m.InstallDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordUninstall records an uninstall operation outcome.
func (m *Metrics) RecordUninstall(status string) {
	m.UninstallsTotal.WithLabelValues(status).Inc()
}

// RecordParse records a manifest parse. Schema is "legacy" or "current".
func (m *Metrics) RecordParse(schema, status string, duration time.Duration) {
	m.ParsesTotal.WithLabelValues(schema, status).Inc()
	m.ParseDuration.WithLabelValues(schema).Observe(duration.Seconds())
}

// RecordStoreRewrite records one whole-file store rewrite.
func (m *Metrics) RecordStoreRewrite(store, status string, duration time.Duration) {
	m.StoreRewrites.WithLabelValues(store, status).Inc()
	m.StoreRewriteDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordInstalldOp records a privileged installer operation.
func (m *Metrics) RecordInstalldOp(operation, status string) {
	m.InstalldOps.WithLabelValues(operation, status).Inc()
}

// RecordInstalldError records a privileged installer failure by code.
func (m *Metrics) RecordInstalldError(operation, code string) {
	m.InstalldErrors.WithLabelValues(operation, code).Inc()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// SetBundlesInstalled sets the number of installed bundles
func (m *Metrics) SetBundlesInstalled(count int) {
	m.BundlesInstalled.Set(float64(count))
	m.mu.Lock()
	m.snapshot.InstalledBundles = int64(count)
	m.mu.Unlock()
}

// UptimeSeconds returns how long the collector has been running.
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}

// Snapshot returns the current snapshot values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
