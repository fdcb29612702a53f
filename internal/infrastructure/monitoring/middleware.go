package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// Get request size
		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		// Process request
		c.Next()

		// Route templates keep session IDs out of the label set.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, path, status, duration, reqSize, respSize)
	}
}

// Timer measures a render duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	surface string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, surface string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		surface: surface,
	}
}

// Stop stops the timer and records the render
func (t *Timer) Stop(err error) {
	t.metrics.RecordRender(t.surface, time.Since(t.start), err)
}
