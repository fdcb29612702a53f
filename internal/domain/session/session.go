package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/assembler"
	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/domain/sandbox"
	"github.com/GriffinCanCode/livepen/internal/domain/scheduler"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/clock"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
	"github.com/GriffinCanCode/livepen/internal/shared/types"
)

// HeadlessSurface is the surface name of the in-process renderer.
const HeadlessSurface = "headless"

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session is closed")
	// ErrNoHeadless is returned by Snapshot when the headless renderer is
	// not the mounted surface.
	ErrNoHeadless = errors.New("headless surface not mounted")
)

// Options configures a session. Zero values fall back to defaults.
type Options struct {
	Clock       clock.Clock
	Debounce    time.Duration
	LogCapacity int
	Template    *types.Buffers
	Sandbox     sandbox.Config
	Headless    bool // Mount the in-process renderer when no browser is attached
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
}

// EventType distinguishes diagnostic log events
type EventType string

const (
	EventDiagnostic EventType = "diagnostic"
	EventCleared    EventType = "cleared"
)

// Event is published to subscribers when the diagnostic log changes.
type Event struct {
	Type   EventType
	Record bridge.Record
}

// Session is one playground: buffers, diagnostic log and preview pipeline.
type Session struct {
	id      id.SessionID
	options Options
	clock   clock.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics

	scheduler  *scheduler.Debouncer
	controller *sandbox.Controller

	// Everything below is protected by mu.
	mu          sync.Mutex
	template    types.Buffers
	buffers     types.Buffers
	log         *Log
	state       types.PreviewState
	settings    types.Settings
	headless    *sandbox.Headless
	surface     string
	document    string
	renders     uint64
	subscribers map[int]func(Event)
	nextSub     int
	createdAt   time.Time
	updatedAt   time.Time
	closed      bool
}

// New creates a session holding the template buffers. Construction does
// not render; call Start for the first render.
func New(options Options) *Session {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Sandbox == (sandbox.Config{}) {
		options.Sandbox = sandbox.DefaultConfig()
	}

	template := DefaultTemplate()
	if options.Template != nil {
		template = *options.Template
	}

	sid := id.NewSessionID()
	now := options.Clock.Now()
	s := &Session{
		id:          sid,
		options:     options,
		clock:       options.Clock,
		logger:      options.Logger.Named("session").With(zap.String("session", sid.String())),
		metrics:     options.Metrics,
		template:    template,
		buffers:     template,
		log:         NewLog(options.LogCapacity),
		state:       types.PreviewIdle,
		settings:    types.DefaultSettings(),
		subscribers: make(map[int]func(Event)),
		createdAt:   now,
		updatedAt:   now,
	}

	s.controller = sandbox.NewController(options.Sandbox, s.deliver, s.logger, s.metrics)
	s.scheduler = scheduler.NewDebouncer(options.Clock, options.Debounce, s.scheduledRender)

	if options.Headless {
		s.mu.Lock()
		s.mountHeadlessLocked()
		s.mu.Unlock()
	}
	return s
}

// ID returns the session ID
func (s *Session) ID() id.SessionID {
	return s.id
}

// Start performs the first render, bypassing the debounce delay.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.renderLocked()
}

// UpdateBuffer replaces the text of one buffer and schedules a render.
// It always succeeds.
func (s *Session) UpdateBuffer(which Buffer, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch which {
	case Markup:
		s.buffers.Markup = text
	case Style:
		s.buffers.Style = text
	case Script:
		s.buffers.Script = text
	}
	s.updatedAt = s.clock.Now()
	s.metrics.RecordBufferEdit(which.String())

	if s.closed {
		return
	}
	s.scheduler.Notify()
	s.state = types.PreviewPendingRender
}

// ResetAll restores the template buffers, clears the diagnostic log and
// renders immediately. A pending debounced render is cancelled and
// suspended headless scripts run again.
func (s *Session) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Cancel()
	s.buffers = s.template
	s.updatedAt = s.clock.Now()
	s.clearLocked()

	if s.closed {
		return
	}
	if s.headless != nil {
		s.headless.Resume()
	}
	s.renderLocked()
}

// Refresh reruns the last assembled document without reassembling it.
// It reports whether a surface received the document.
func (s *Session) Refresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	previous := s.state
	s.state = types.PreviewRendering
	ok := s.controller.Refresh()
	s.state = previous
	if ok {
		s.renders++
	}
	return ok
}

// AppendDiagnostic adds a record to the log, evicting the oldest record
// when the log is full.
func (s *Session) AppendDiagnostic(record bridge.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(record)
}

// ClearDiagnostics empties the diagnostic log.
func (s *Session) ClearDiagnostics() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Post hands a message posted by the sandboxed document to the controller.
func (s *Session) Post(raw []byte) {
	s.controller.Post(raw)
}

// Attach mounts a surface in place of the current one. The current
// document is loaded into it immediately.
func (s *Session) Attach(surface sandbox.Surface, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.controller.Mount(surface, name); err != nil {
		return err
	}
	s.headless = nil
	s.surface = name
	return nil
}

// Detach unmounts surface if it is attached. With headless rendering
// enabled, a fresh headless surface takes its place.
func (s *Session) Detach(surface sandbox.Surface) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.controller.Unmount(surface) {
		return false
	}
	s.surface = ""
	if s.options.Headless && !s.closed {
		s.mountHeadlessLocked()
	}
	return true
}

// Subscribe registers fn for diagnostic log events and returns a function
// that removes it. fn runs with the session locked.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.nextSub
	s.nextSub++
	s.subscribers[key] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, key)
	}
}

// Document returns the most recently assembled document.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Buffers returns the current buffer contents.
func (s *Session) Buffers() types.Buffers {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers
}

// Diagnostics returns the diagnostic log, oldest first.
func (s *Session) Diagnostics() []bridge.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.Records()
}

// State returns the preview pipeline state.
func (s *Session) State() types.PreviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Renders returns the number of documents handed to the controller.
func (s *Session) Renders() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// Mounted reports whether any surface is attached.
func (s *Session) Mounted() bool {
	return s.controller.Mounted()
}

// Policy returns the capability policy applied to rendered documents.
func (s *Session) Policy() sandbox.Policy {
	return s.controller.Policy()
}

// Settings returns the UI settings.
func (s *Session) Settings() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies a partial settings update. Settings do not
// affect the preview pipeline.
func (s *Session) UpdateSettings(patch types.SettingsPatch) (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.settings.Apply(patch)
	if err != nil {
		return s.settings, err
	}
	s.settings = next
	return next, nil
}

// Snapshot returns the DOM of the headless surface as the last document's
// scripts left it.
func (s *Session) Snapshot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.headless == nil {
		return "", ErrNoHeadless
	}
	return s.headless.Snapshot()
}

// Mutations returns the DOM changes the last document's scripts made on
// the headless surface, in order.
func (s *Session) Mutations() ([]sandbox.Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.headless == nil {
		return nil, ErrNoHeadless
	}
	return s.headless.Mutations(), nil
}

// Info returns the API view of the session.
func (s *Session) Info() types.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return types.SessionInfo{
		ID:          s.id.String(),
		State:       s.state,
		Buffers:     s.buffers,
		Settings:    s.settings,
		Diagnostics: s.log.Len(),
		Surface:     s.surface,
		Renders:     s.renders,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// Close stops the scheduler, drops subscribers and tears down the
// controller with its surface.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.scheduler.Stop()
	s.state = types.PreviewIdle
	clear(s.subscribers)
	s.headless = nil
	s.mu.Unlock()

	// The pump may be waiting for mu in deliver, so the controller is
	// closed without holding it.
	err := s.controller.Close()
	s.logger.Debug("Session closed")
	return err
}

func (s *Session) scheduledRender() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A Notify that raced the expiry owns the next render.
	if s.closed || s.scheduler.Pending() {
		return
	}
	s.renderLocked()
}

func (s *Session) renderLocked() {
	s.state = types.PreviewRendering

	s.document = assembler.Assemble(s.buffers.Markup, s.buffers.Style, s.buffers.Script)
	s.renders++
	if !s.controller.Render(s.document) {
		s.logger.Debug("No surface mounted, render skipped")
	}

	if s.scheduler.Pending() {
		s.state = types.PreviewPendingRender
	} else {
		s.state = types.PreviewIdle
	}
}

func (s *Session) deliver(msg bridge.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.appendLocked(msg.Record(s.clock.Now()))
}

func (s *Session) appendLocked(record bridge.Record) {
	if s.log.Append(record) {
		s.logger.Debug("Diagnostic log full, oldest record evicted")
	}
	s.metrics.RecordDiagnostic(string(record.Method))
	s.publishLocked(Event{Type: EventDiagnostic, Record: record})
}

func (s *Session) clearLocked() {
	s.log.Clear()
	s.publishLocked(Event{Type: EventCleared})
}

func (s *Session) publishLocked(e Event) {
	for _, fn := range s.subscribers {
		fn(e)
	}
}

func (s *Session) mountHeadlessLocked() {
	h := sandbox.NewHeadless(s.controller, s.clock, s.options.Sandbox, s.logger, s.metrics)
	if err := s.controller.Mount(h, HeadlessSurface); err != nil {
		s.logger.Warn("Failed to mount headless surface", zap.Error(err))
		return
	}
	s.headless = h
	s.surface = HeadlessSurface
}
