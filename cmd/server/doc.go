// Package main is the entry point for the bundle manager service.
//
// This application owns the package metadata and installation core of
// the device: it parses application manifests, maintains the installed
// bundle records and per-user install states, and drives the privileged
// directory daemon during install, upgrade, and uninstall.
//
// The server provides:
//   - REST API for bundle install, query, and per-user state
//   - Install mark recovery for operations interrupted by a crash
//   - Preinstall seeding of system bundles at boot
//   - Prometheus metrics and request tracing
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables with the BMS_ prefix (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	./server -port 8300 -device phone
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
