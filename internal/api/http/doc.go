// Package http provides the REST handlers of the playground server.
//
// This package implements all HTTP endpoints using the Gin framework. The
// WebSocket surface lives in package ws.
//
// Endpoints:
//   - Page and health: / and /health
//   - Sessions: /api/sessions, /api/sessions/:id
//   - Buffers: /api/sessions/:id/buffers/:buffer
//   - Pipeline: /api/sessions/:id/reset, /refresh, /document, /snapshot
//   - Inspection: /api/sessions/:id/query?xpath=, /mutations
//   - Log: /api/sessions/:id/diagnostics
//   - Settings: /api/sessions/:id/settings
//   - Metrics: /metrics/json
//
// Documents and snapshots are served gzip-negotiated through gzhttp.
// Snapshots and query results pass through a bluemonday UGC policy so no
// script survives. Documents carry an ETag for conditional requests.
//
// Example Usage:
//
//	handlers, err := http.NewHandlers(sessions, logger)
//	router.GET("/health", handlers.Health)
//	router.PUT("/api/sessions/:id/buffers/:buffer", handlers.UpdateBuffer)
package http
