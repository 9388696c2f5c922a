/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the bundle
manager service, tracking HTTP requests, install/uninstall outcomes, manifest
parses, store rewrites, and privileged installer operations.

# Features

- HTTP request metrics (latency, throughput)
- Install/uninstall metrics (duration, outcome by kind)
- Manifest parse metrics (by schema generation)
- Store rewrite metrics (whole-file persistence latency)
- Privileged installer operation metrics (failures by code)
- System metrics (uptime, installed bundle count)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.RecordInstall("new", "ok", elapsed)
	metrics.SetBundlesInstalled(12)

	// Time operations
	timer := monitoring.NewTimer(metrics, "state", "save")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
