// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components log through named children of the service logger, so a line
// can be traced to its source: "session", "session.sandbox", "http", "ws".
// Console output of sandboxed scripts is written by the "sandbox" logger at
// debug level.
//
// Example Usage:
//
//	logger := logging.FromConfig(cfg.Logging)
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Session(id).Debug("Render skipped")
package logging
