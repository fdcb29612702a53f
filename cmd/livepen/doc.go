// Package main is the entry point for the livepen playground server.
//
// The server keeps one playground session per browser tab: three source
// buffers, a debounced render pipeline and a diagnostic console fed by the
// sandboxed preview.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./livepen -port 8000 -template starter.yaml
//
//	# Development mode (colored logs, debug level)
//	./livepen -dev -debounce 250ms
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
