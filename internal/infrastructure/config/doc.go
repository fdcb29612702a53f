// Package config provides 12-factor configuration management for livepen.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Preview: Debounce interval, diagnostic log size, headless rendering
//   - Sandbox: Script timeout, bridge inbox size, granted capabilities
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - PREVIEW_DEBOUNCE, PREVIEW_LOG_CAPACITY, PREVIEW_HEADLESS, PREVIEW_TEMPLATE
//   - SANDBOX_TIMEOUT, SANDBOX_INBOX, SANDBOX_MAX_CALL_STACK
//   - SANDBOX_ALLOW_MODALS, SANDBOX_ALLOW_POPUPS
package config
