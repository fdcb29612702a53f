package session

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// Manager holds the live sessions by ID
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // Protected by mu
	options  Options
	metrics  *monitoring.Metrics
}

// NewManager creates a manager whose sessions are built from options
func NewManager(options Options) *Manager {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		options:  options,
		metrics:  options.Metrics,
	}
}

// WithMetrics adds metrics tracking to the manager and its sessions
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	m.options.Metrics = metrics
	return m
}

// Create opens a session and performs its first render. Buffers set in
// req replace the template for this session only.
func (m *Manager) Create(req types.CreateSessionRequest) *Session {
	options := m.options

	template := DefaultTemplate()
	if options.Template != nil {
		template = *options.Template
	}
	if req.Markup != nil {
		template.Markup = *req.Markup
	}
	if req.Style != nil {
		template.Style = *req.Style
	}
	if req.Script != nil {
		template.Script = *req.Script
	}
	options.Template = &template

	s := New(options)
	s.Start()

	m.mu.Lock()
	m.sessions[s.ID().String()] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.metrics.IncSessionsTotal()
	m.metrics.SetSessionsActive(active)
	m.options.Logger.Info("Session created", zap.String("session", s.ID().String()))
	return s
}

// Get retrieves a session by ID
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// List returns every session, oldest first
func (m *Manager) List() []types.SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]types.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	// Session IDs are ULIDs, so ID order is creation order.
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Close tears down a session and forgets it
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	active := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return false
	}

	if err := s.Close(); err != nil {
		m.options.Logger.Warn("Session surface failed to close", zap.String("session", id), zap.Error(err))
	}
	m.metrics.SetSessionsActive(active)
	m.options.Logger.Info("Session closed", zap.String("session", id))
	return true
}

// CloseAll tears down every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			m.options.Logger.Warn("Session surface failed to close", zap.String("session", id), zap.Error(err))
		}
	}
	m.metrics.SetSessionsActive(0)
}

// Stats returns manager statistics
func (m *Manager) Stats() types.Stats {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	stats := types.Stats{TotalSessions: len(sessions)}
	for _, s := range sessions {
		info := s.Info()
		if s.Mounted() {
			stats.MountedSurface++
		}
		if info.State == types.PreviewPendingRender {
			stats.PendingRenders++
		}
		stats.Diagnostics += info.Diagnostics
	}
	return stats
}
