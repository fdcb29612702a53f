// Package middleware provides the HTTP middleware stack for livepen.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing for editors on other origins
//   - RateLimit: Per-IP token bucket rate limiting with idle client expiry
//   - RequestID: Prefixed ULID per request, echoed in X-Request-ID
//   - Logger: One zap line per request
//
// Example Usage:
//
//	router.Use(middleware.RequestID(), middleware.Logger(logger))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
