package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/clock"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/resilience"
)

// SourceName is the script origin reported in stack traces and to onerror.
const SourceName = "about:srcdoc"

// ErrNoFrame is returned by Snapshot before the first document is loaded.
var ErrNoFrame = errors.New("no frame loaded")

// Headless is an in-process surface: each Load gets a new goja VM with a
// browser-like global scope over a goquery DOM. Everything a frame
// schedules is bound to its generation and discarded by the next Load.
type Headless struct {
	mu      sync.Mutex
	config  Config
	poster  Poster
	clock   clock.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics
	breaker *resilience.Breaker

	vm         *goja.Runtime
	dom        *DOM
	frame      Frame
	generation uint64
	timers     map[int64]*clock.Timer
	nextTimer  int64
	nodes      map[*html.Node]*goja.Object
	elements   map[*goja.Object]*html.Node
	timeouts   uint64
	closed     bool
}

// NewHeadless creates a headless surface posting bridge traffic to poster.
func NewHeadless(poster Poster, c clock.Clock, config Config, logger *zap.Logger, metrics *monitoring.Metrics) *Headless {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxCallStackSize <= 0 {
		config.MaxCallStackSize = DefaultConfig().MaxCallStackSize
	}
	if config.SuspendAfter <= 0 {
		config.SuspendAfter = DefaultConfig().SuspendAfter
	}
	if config.SuspendCooldown <= 0 {
		config.SuspendCooldown = DefaultConfig().SuspendCooldown
	}

	h := &Headless{
		config:  config,
		poster:  poster,
		clock:   c,
		logger:  logger.Named("sandbox").With(zap.String("surface", "headless")),
		metrics: metrics,
		timers:  make(map[int64]*clock.Timer),
	}
	h.breaker = resilience.New("headless-scripts", resilience.Settings{
		Cooldown: config.SuspendCooldown,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.SuspendAfter)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			h.logger.Info("Script breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		Clock: c,
	})
	return h
}

// Load replaces the current frame. The previous VM, its timers and its
// DOM are discarded before the new document is parsed.
func (h *Headless) Load(frame Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.resetLocked()

	dom, err := NewDOM(frame.Document)
	if err != nil {
		return err
	}
	h.dom = dom
	h.frame = frame
	h.vm = goja.New()
	h.vm.SetMaxCallStackSize(h.config.MaxCallStackSize)
	h.nodes = make(map[*html.Node]*goja.Object)
	h.elements = make(map[*goja.Object]*html.Node)
	h.setupGlobals()

	if !frame.Policy.AllowScripts {
		h.logger.Debug("Scripts disabled by policy", zap.String("frame", frame.ID))
		return nil
	}

	scripts := ExtractScripts(frame.Document)
	if len(scripts) > 0 {
		err := h.breaker.Execute(func() error {
			before := h.timeouts
			for _, script := range scripts {
				h.runScript(script)
			}
			if h.timeouts > before {
				return ErrTimeout
			}
			return nil
		})
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			h.suspendedLocked()
			return nil
		}
	}

	h.logger.Debug("Frame executed",
		zap.String("frame", frame.ID),
		zap.Int("mutations", len(h.dom.mutations)),
		zap.Int("timers", len(h.timers)))
	return nil
}

// Snapshot serializes the DOM of the current frame as scripts left it.
func (h *Headless) Snapshot() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dom == nil {
		return "", ErrNoFrame
	}
	return h.dom.HTML()
}

// Mutations returns the DOM modifications made by the current frame.
func (h *Headless) Mutations() []Mutation {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dom == nil {
		return nil
	}
	return h.dom.Mutations()
}

// PendingTimers returns the number of live timers owned by the current frame.
func (h *Headless) PendingTimers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.timers)
}

// Suspended reports whether script execution is paused after repeated
// timeouts.
func (h *Headless) Suspended() bool {
	return h.breaker.State() == resilience.StateOpen
}

// Resume closes the script breaker so the next frame runs its scripts
// even if earlier frames kept timing out.
func (h *Headless) Resume() {
	h.breaker.Reset()
}

// Close stops every timer and drops the VM.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.resetLocked()
	h.dom = nil
	return nil
}

func (h *Headless) resetLocked() {
	h.generation++
	for id, t := range h.timers {
		t.Stop()
		delete(h.timers, id)
	}
	h.vm = nil
	h.nodes = nil
	h.elements = nil
}

func (h *Headless) runScript(script Script) {
	// Padding keeps line numbers relative to the whole document.
	src := strings.Repeat("\n", script.Line-1) + script.Text

	ast, err := parser.ParseFile(nil, SourceName, src, 0)
	if err != nil {
		h.uncaught(err)
		return
	}
	program, err := goja.CompileAST(ast, false)
	if err != nil {
		h.uncaught(err)
		return
	}

	vm := h.vm
	h.exec(func() error {
		_, err := vm.RunProgram(program)
		return err
	})
}

// exec runs JavaScript under the execution timeout and routes anything
// uncaught to onerror.
func (h *Headless) exec(run func() error) {
	if err := h.guard(run); err != nil {
		h.uncaught(err)
	}
}

func (h *Headless) guard(run func() error) error {
	vm := h.vm
	fired := make(chan struct{})
	watchdog := time.AfterFunc(h.config.Timeout, func() {
		vm.Interrupt(ErrTimeout)
		close(fired)
	})

	err := run()

	if !watchdog.Stop() {
		<-fired
		h.timeouts++
	}
	vm.ClearInterrupt()
	return err
}

// suspendedLocked reports a skipped frame on the console.
func (h *Headless) suspendedLocked() {
	h.metrics.RecordScriptFailure("suspended")
	h.logger.Warn("Scripts skipped, breaker open", zap.String("frame", h.frame.ID))

	if h.poster == nil {
		return
	}
	wait := h.breaker.Remaining().Round(time.Second)
	raw, err := bridge.Encode(bridge.NewMessage(bridge.MethodWarn,
		fmt.Sprintf("Script execution suspended for %s after %d consecutive timeouts", wait, h.config.SuspendAfter)))
	if err != nil {
		return
	}
	h.poster.Post(raw)
}

func (h *Headless) uncaught(err error) {
	text, line, kind := h.describe(err)
	h.metrics.RecordScriptFailure(kind)

	if h.vm == nil {
		return
	}
	handler, ok := goja.AssertFunction(h.vm.GlobalObject().Get("onerror"))
	if !ok {
		h.logger.Warn("Uncaught script failure",
			zap.String("frame", h.frame.ID),
			zap.String("error", text),
			zap.Int("line", line))
		return
	}

	handled := false
	herr := h.guard(func() error {
		res, err := handler(h.vm.GlobalObject(),
			h.vm.ToValue(text), h.vm.ToValue(SourceName), h.vm.ToValue(line), h.vm.ToValue(0))
		if err == nil && res != nil {
			handled = res.ToBoolean()
		}
		return err
	})
	if herr != nil {
		h.logger.Warn("Error handler threw", zap.String("frame", h.frame.ID), zap.Error(herr))
		return
	}
	if !handled {
		h.logger.Warn("Uncaught script failure",
			zap.String("frame", h.frame.ID),
			zap.String("error", text),
			zap.Int("line", line))
	}
}

// describe turns a parse, compile or run failure into the message and
// document line a browser would pass to onerror.
func (h *Headless) describe(err error) (string, int, string) {
	var (
		list        parser.ErrorList
		single      *parser.Error
		compile     *goja.CompilerSyntaxError
		interrupted *goja.InterruptedError
		exc         *goja.Exception
	)

	switch {
	case errors.As(err, &list) && len(list) > 0:
		return "SyntaxError: " + list[0].Message, list[0].Position.Line, "syntax"
	case errors.As(err, &single):
		return "SyntaxError: " + single.Message, single.Position.Line, "syntax"
	case errors.As(err, &compile):
		line := 0
		if compile.File != nil {
			line = compile.File.Position(compile.Offset).Line
		}
		return "SyntaxError: " + compile.Message, line, "syntax"
	case errors.As(err, &interrupted):
		return "Uncaught Error: script terminated after " + h.config.Timeout.String(), 0, "timeout"
	case errors.As(err, &exc):
		return "Uncaught " + h.text(exc.Value()), exceptionLine(exc), "runtime"
	default:
		return "Uncaught " + err.Error(), 0, "internal"
	}
}

func exceptionLine(exc *goja.Exception) int {
	for _, frame := range exc.Stack() {
		if p := frame.Position(); p.Line > 0 {
			return p.Line
		}
	}
	return 0
}

// text converts a value with JavaScript String() semantics without
// letting a throwing toString escape.
func (h *Headless) text(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	var s string
	if ex := h.vm.Try(func() { s = v.String() }); ex != nil {
		return "[object Object]"
	}
	return s
}

// throw raises a JavaScript error of the named built-in type, falling
// back to Error with the name set for DOM-only types like SecurityError.
func (h *Headless) throw(name, message string) {
	ctor := h.vm.Get(name)
	named := ctor != nil && !goja.IsUndefined(ctor)
	if !named {
		ctor = h.vm.Get("Error")
	}
	obj, err := h.vm.New(ctor, h.vm.ToValue(message))
	if err != nil {
		panic(h.vm.NewTypeError(message))
	}
	if !named {
		_ = obj.Set("name", name)
	}
	panic(obj)
}
