package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so domain packages can be used without a collector.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	BufferEdits     *prometheus.CounterVec
	DiagnosticsSeen *prometheus.CounterVec

	// Render metrics
	Renders        *prometheus.CounterVec
	RenderDuration *prometheus.HistogramVec
	ScriptFailures *prometheus.CounterVec

	// Bridge metrics
	BridgeMessages *prometheus.CounterVec
	BridgeDropped  prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveSessions    int64   `json:"active_sessions"`
	ActiveConnections int64   `json:"active_connections"`
	Renders           int64   `json:"renders"`
	Diagnostics       int64   `json:"diagnostics"`
	DroppedMessages   int64   `json:"dropped_messages"`
	TotalDuration     float64 `json:"total_duration"` // sum of all request durations
	RequestCount      int64   `json:"request_count"`  // count for averaging
}

// NewMetrics creates a new metrics collector on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_sessions_active",
				Help: "Number of open playground sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "livepen_sessions_total",
				Help: "Total number of sessions created",
			},
		),
		BufferEdits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_buffer_edits_total",
				Help: "Total number of buffer edits",
			},
			[]string{"buffer"},
		),
		DiagnosticsSeen: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_diagnostics_total",
				Help: "Total number of diagnostic records appended",
			},
			[]string{"method"},
		),

		// Render metrics
		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_renders_total",
				Help: "Total number of documents loaded into a surface",
			},
			[]string{"surface", "status"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_render_duration_seconds",
				Help:    "Time to load a document into a surface",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"surface"},
		),
		ScriptFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_script_failures_total",
				Help: "Uncaught script failures by kind",
			},
			[]string{"kind"},
		),

		// Bridge metrics
		BridgeMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_bridge_messages_total",
				Help: "Cross-boundary messages received by outcome",
			},
			[]string{"outcome"},
		),
		BridgeDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "livepen_bridge_dropped_total",
				Help: "Bridge messages dropped because the inbox was full",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRender records one document load into a surface.
func (m *Metrics) RecordRender(surface string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.Renders.WithLabelValues(surface, status).Inc()
	m.RenderDuration.WithLabelValues(surface).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Renders++
	m.mu.Unlock()
}

// RecordScriptFailure records an uncaught script failure (syntax, runtime, timeout).
func (m *Metrics) RecordScriptFailure(kind string) {
	if m == nil {
		return
	}
	m.ScriptFailures.WithLabelValues(kind).Inc()
}

// RecordBridgeMessage records the outcome of decoding one posted message.
func (m *Metrics) RecordBridgeMessage(outcome string) {
	if m == nil {
		return
	}
	m.BridgeMessages.WithLabelValues(outcome).Inc()
}

// IncBridgeDropped counts a message dropped on a full inbox.
func (m *Metrics) IncBridgeDropped() {
	if m == nil {
		return
	}
	m.BridgeDropped.Inc()
	m.mu.Lock()
	m.snapshot.DroppedMessages++
	m.mu.Unlock()
}

// RecordBufferEdit records an edit to one buffer.
func (m *Metrics) RecordBufferEdit(buffer string) {
	if m == nil {
		return
	}
	m.BufferEdits.WithLabelValues(buffer).Inc()
}

// RecordDiagnostic records a diagnostic appended to a session log.
func (m *Metrics) RecordDiagnostic(method string) {
	if m == nil {
		return
	}
	m.DiagnosticsSeen.WithLabelValues(method).Inc()
	m.mu.Lock()
	m.snapshot.Diagnostics++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetSessionsActive sets the number of active sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsTotal increments the total sessions counter
func (m *Metrics) IncSessionsTotal() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current JSON view of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// UptimeSeconds returns the time since the collector was created.
func (m *Metrics) UptimeSeconds() float64 {
	if m == nil {
		return 0
	}
	up := time.Since(m.startTime).Seconds()
	m.Uptime.Set(up)
	return up
}
