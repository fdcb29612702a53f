package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// MetricsAggregator combines collector counters with live session state
type MetricsAggregator struct {
	metrics  *monitoring.Metrics
	sessions *session.Manager
}

// NewMetricsAggregator creates a metrics aggregator
func NewMetricsAggregator(metrics *monitoring.Metrics, sessions *session.Manager) *MetricsAggregator {
	return &MetricsAggregator{
		metrics:  metrics,
		sessions: sessions,
	}
}

// MetricsSnapshot represents a snapshot of all service metrics
type MetricsSnapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Backend   monitoring.MetricsSnapshot `json:"backend"`
	Sessions  types.Stats                `json:"sessions"`
	Summary   MetricsSummary             `json:"summary"`
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	TotalRequests     int64   `json:"total_requests"`
	AverageLatencyMs  float64 `json:"average_latency_ms"`
	ErrorRate         float64 `json:"error_rate"`
	ActiveConnections int     `json:"active_connections"`
	DropRate          float64 `json:"drop_rate"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// GetAggregatedMetrics returns the JSON metrics view
func (ma *MetricsAggregator) GetAggregatedMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, ma.Collect())
}

// Collect builds a metrics snapshot
func (ma *MetricsAggregator) Collect() MetricsSnapshot {
	backend := ma.metrics.Snapshot()
	return MetricsSnapshot{
		Timestamp: time.Now(),
		Backend:   backend,
		Sessions:  ma.sessions.Stats(),
		Summary:   ma.summarize(backend),
	}
}

func (ma *MetricsAggregator) summarize(snapshot monitoring.MetricsSnapshot) MetricsSummary {
	var avgLatency float64
	if snapshot.RequestCount > 0 {
		avgLatency = (snapshot.TotalDuration / float64(snapshot.RequestCount)) * 1000
	}

	var errorRate float64
	if snapshot.TotalRequests > 0 {
		errorRate = float64(snapshot.TotalErrors) / float64(snapshot.TotalRequests)
	}

	// Dropped bridge messages against everything that reached the log.
	var dropRate float64
	if total := snapshot.Diagnostics + snapshot.DroppedMessages; total > 0 {
		dropRate = float64(snapshot.DroppedMessages) / float64(total)
	}

	return MetricsSummary{
		TotalRequests:     snapshot.TotalRequests,
		AverageLatencyMs:  avgLatency,
		ErrorRate:         errorRate,
		ActiveConnections: int(snapshot.ActiveConnections),
		DropRate:          dropRate,
		UptimeSeconds:     ma.metrics.UptimeSeconds(),
	}
}
