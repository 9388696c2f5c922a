package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
)

// MetricsHandlers serves the JSON view of the service metrics. The raw
// Prometheus exposition lives on /metrics via promhttp.
type MetricsHandlers struct {
	metrics *monitoring.Metrics
}

// NewMetricsHandlers creates the metrics handler set.
func NewMetricsHandlers(metrics *monitoring.Metrics) *MetricsHandlers {
	return &MetricsHandlers{metrics: metrics}
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	Timestamp        time.Time `json:"timestamp"`
	TotalRequests    int64     `json:"total_requests"`
	TotalErrors      int64     `json:"total_errors"`
	AverageLatencyMs float64   `json:"average_latency_ms"`
	ErrorRate        float64   `json:"error_rate"`
	InstalledBundles int64     `json:"installed_bundles"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
}

// GetMetricsSummary returns the aggregated metrics as JSON.
func (mh *MetricsHandlers) GetMetricsSummary(c *gin.Context) {
	snapshot := mh.metrics.Snapshot()

	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}
	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	c.JSON(http.StatusOK, MetricsSummary{
		Timestamp:        time.Now(),
		TotalRequests:    snapshot.TotalRequests,
		TotalErrors:      snapshot.TotalErrors,
		AverageLatencyMs: avgLatency,
		ErrorRate:        errorRate,
		InstalledBundles: snapshot.InstalledBundles,
		UptimeSeconds:    mh.metrics.UptimeSeconds(),
	})
}
