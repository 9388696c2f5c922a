package http

import (
	"time"

	"github.com/GriffinCanCode/BundleOS/backend/internal/infrastructure/monitoring"
)

// HandlerMetrics wraps handlers with metrics tracking
type HandlerMetrics struct {
	metrics *monitoring.Metrics
}

// NewHandlerMetrics creates a metrics wrapper
func NewHandlerMetrics(metrics *monitoring.Metrics) *HandlerMetrics {
	return &HandlerMetrics{metrics: metrics}
}

// TrackDataOperation tracks bundle data manager operations
func (hm *HandlerMetrics) TrackDataOperation(operation string) func() {
	return hm.track("bundle_data", operation)
}

// TrackInstallerOperation tracks install and uninstall operations
func (hm *HandlerMetrics) TrackInstallerOperation(operation string) func() {
	return hm.track("installer", operation)
}

// TrackDaemonOperation tracks privileged daemon operations
func (hm *HandlerMetrics) TrackDaemonOperation(operation string) func() {
	return hm.track("installd", operation)
}

func (hm *HandlerMetrics) track(service, operation string) func() {
	if hm == nil || hm.metrics == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		duration := time.Since(start)
		hm.metrics.RecordServiceCall(service, operation, "success", duration)
	}
}
