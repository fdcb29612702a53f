package http

import (
	"embed"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/session"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
	"github.com/GriffinCanCode/livepen/internal/shared/utils"
)

//go:embed assets/index.html
var assets embed.FS

// Service identity reported by the root and health endpoints
const (
	ServiceName    = "livepen"
	ServiceVersion = "0.1.0"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions  *session.Manager
	logger    *zap.Logger
	sanitizer *bluemonday.Policy
	compress  func(http.Handler) http.HandlerFunc
	index     []byte
}

// NewHandlers creates a new handler set
func NewHandlers(sessions *session.Manager, logger *zap.Logger) (*Handlers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := assets.ReadFile("assets/index.html")
	if err != nil {
		return nil, err
	}

	compress, err := gzhttp.NewWrapper(gzhttp.MinSize(gzhttp.DefaultMinSize))
	if err != nil {
		return nil, err
	}

	return &Handlers{
		sessions:  sessions,
		logger:    logger.Named("api"),
		sanitizer: bluemonday.UGCPolicy(),
		compress:  compress,
		index:     index,
	}, nil
}

// Index serves the playground page
func (h *Handlers) Index(c *gin.Context) {
	h.html(c, string(h.index))
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  ServiceName,
		"version":  ServiceVersion,
		"sessions": h.sessions.Stats(),
	})
}

// CreateSession opens a session. The body is optional.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req types.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s := h.sessions.Create(req)
	c.JSON(http.StatusCreated, s.Info())
}

// ListSessions lists all open sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessions.List(),
		"stats":    h.sessions.Stats(),
	})
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Info())
}

// DeleteSession closes a session
func (h *Handlers) DeleteSession(c *gin.Context) {
	if !validID(c) {
		return
	}
	if !h.sessions.Close(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UpdateBuffer replaces one buffer and schedules a render
func (h *Handlers) UpdateBuffer(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	buffer, err := session.ParseBuffer(c.Param("buffer"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req types.BufferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateBuffer(req.Text); err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}

	s.UpdateBuffer(buffer, req.Text)
	c.JSON(http.StatusAccepted, gin.H{
		"buffer": buffer.String(),
		"state":  s.State(),
	})
}

// Reset restores the template and renders immediately
func (h *Handlers) Reset(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.ResetAll()
	c.JSON(http.StatusOK, s.Info())
}

// Refresh reruns the last document on the mounted surface
func (h *Handlers) Refresh(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refreshed": s.Refresh(),
		"renders":   s.Renders(),
	})
}

// Document serves the last assembled document
func (h *Handlers) Document(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	doc := s.Document()
	etag := utils.ETag(doc)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("Content-Security-Policy", "sandbox "+s.Policy().SandboxAttr())
	h.html(c, doc)
}

// Snapshot serves the sanitized headless DOM
func (h *Handlers) Snapshot(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	snapshot, err := s.Snapshot()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrNoHeadless) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.html(c, h.sanitizer.Sanitize(snapshot))
}

// Mutations lists the DOM changes scripts made on the headless surface
func (h *Handlers) Mutations(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	mutations, err := s.Mutations()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mutations": mutations,
		"count":     len(mutations),
	})
}

// Diagnostics returns the diagnostic log, oldest first
func (h *Handlers) Diagnostics(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	records := s.Diagnostics()
	c.JSON(http.StatusOK, gin.H{
		"diagnostics": records,
		"count":       len(records),
	})
}

// ClearDiagnostics empties the diagnostic log
func (h *Handlers) ClearDiagnostics(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	s.ClearDiagnostics()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSettings returns the UI settings
func (h *Handlers) GetSettings(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Settings())
}

// UpdateSettings applies a partial settings update
func (h *Handlers) UpdateSettings(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var patch types.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := s.UpdateSettings(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handlers) session(c *gin.Context) (*session.Session, bool) {
	if !validID(c) {
		return nil, false
	}
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

// validID rejects path IDs that are not session IDs before any lookup
func validID(c *gin.Context) bool {
	if !id.ValidSession(c.Param("id")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return false
	}
	return true
}

// html writes body as a gzip-negotiated HTML response
func (h *Handlers) html(c *gin.Context, body string) {
	h.compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, body); err != nil {
			h.logger.Debug("Failed to write response", zap.Error(err))
		}
	})).ServeHTTP(c.Writer, c.Request)
}
