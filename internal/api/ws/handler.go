package ws

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// Handler manages WebSocket connections
type Handler struct {
	sessions *session.Manager
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHandler creates a new WebSocket handler
func NewHandler(sessions *session.Manager, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions: sessions,
		logger:   logger.Named("ws"),
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // The preview page may be served from another origin
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// HandleConnection upgrades the request and attaches the connection to
// the session as its rendering surface until it disconnects.
func (h *Handler) HandleConnection(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := newClient(conn, s, h.logger, h.metrics)
	h.track(cl)
	defer h.untrack(cl)

	go cl.writePump()

	unsubscribe := s.Subscribe(cl.onEvent)
	if err := s.Attach(cl, cl.id.String()); err != nil {
		unsubscribe()
		cl.sendError(err.Error())
		cl.Close()
		return
	}
	cl.logger.Info("Browser surface attached")

	cl.readPump()

	unsubscribe()
	s.Detach(cl)
	cl.Close()
	cl.logger.Info("Browser surface detached")
}

// Close disconnects every client.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		cl.Close()
	}
}

// Connections returns the number of open connections.
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Handler) track(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

func (h *Handler) untrack(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	h.metrics.DecWSConnections()
}
