package sandbox

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/bridge"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/monitoring"
)

// Controller owns the rendering surface of one session. It swaps the
// document on each render and routes messages posted across the sandbox
// boundary to the session through a bounded inbox.
type Controller struct {
	config  Config
	deliver func(bridge.Message)
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.Mutex
	surface Surface
	name    string
	last    string

	inbox   chan []byte
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

// NewController starts a controller. deliver is called from the pump
// goroutine for every valid diagnostic message, in arrival order.
func NewController(config Config, deliver func(bridge.Message), logger *zap.Logger, metrics *monitoring.Metrics) *Controller {
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultConfig().InboxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		config:  config,
		deliver: deliver,
		logger:  logger.Named("sandbox"),
		metrics: metrics,
		inbox:   make(chan []byte, config.InboxSize),
		done:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.pump()

	return c
}

// Policy returns the capability policy applied to every frame.
func (c *Controller) Policy() Policy {
	return c.config.Policy
}

// Mount attaches a surface. A previously mounted surface is closed and
// replaced. The last rendered document, if any, is loaded immediately.
func (c *Controller) Mount(s Surface, name string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surface != nil && c.surface != s {
		c.closeSurfaceLocked()
	}
	c.surface = s
	c.name = name

	c.logger.Debug("Surface mounted", zap.String("surface", name))

	if c.last != "" {
		return c.loadLocked(c.last)
	}
	return nil
}

// Unmount detaches s if it is the mounted surface. The surface is not
// closed; its owner is expected to do that.
func (c *Controller) Unmount(s Surface) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surface == nil || c.surface != s {
		return false
	}
	c.surface = nil
	c.logger.Debug("Surface unmounted", zap.String("surface", c.name))
	c.name = ""
	return true
}

// Mounted reports whether a surface is attached.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface != nil
}

// Render loads doc into the mounted surface with a fresh execution
// context. Without a surface it only remembers doc for the next Mount and
// returns false.
func (c *Controller) Render(doc string) bool {
	if c.closed.Load() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = doc
	if c.surface == nil {
		return false
	}
	if err := c.loadLocked(doc); err != nil {
		c.logger.Warn("Render failed", zap.String("surface", c.name), zap.Error(err))
	}
	return true
}

// Refresh reloads the last rendered document.
func (c *Controller) Refresh() bool {
	c.mu.Lock()
	doc := c.last
	c.mu.Unlock()

	if doc == "" {
		return false
	}
	return c.Render(doc)
}

// Last returns the most recently rendered document.
func (c *Controller) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) loadLocked(doc string) error {
	frame := Frame{
		ID:       uuid.NewString(),
		Document: doc,
		Policy:   c.config.Policy,
	}

	timer := monitoring.NewTimer(c.metrics, c.name)
	err := c.surface.Load(frame)
	timer.Stop(err)

	c.logger.Debug("Frame loaded",
		zap.String("surface", c.name),
		zap.String("frame", frame.ID),
		zap.Int("bytes", len(doc)))
	return err
}

// Post enqueues a raw message posted by the sandboxed document. It never
// blocks: when the inbox is full the message is dropped and counted.
func (c *Controller) Post(raw []byte) {
	if c.closed.Load() {
		return
	}

	select {
	case c.inbox <- raw:
	case <-c.done:
	default:
		c.dropped.Add(1)
		c.metrics.IncBridgeDropped()
		c.logger.Debug("Bridge inbox full, message dropped")
	}
}

// Dropped returns the number of messages dropped on a full inbox.
func (c *Controller) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Controller) pump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case raw := <-c.inbox:
			c.dispatch(raw)
		}
	}
}

func (c *Controller) dispatch(raw []byte) {
	msg, err := bridge.Decode(raw)
	switch {
	case err == nil:
		c.metrics.RecordBridgeMessage("delivered")
		if c.deliver != nil {
			c.deliver(msg)
		}
	case errors.Is(err, bridge.ErrNotDiagnostic):
		c.metrics.RecordBridgeMessage("ignored")
		c.logger.Debug("Ignoring foreign message", zap.Int("bytes", len(raw)))
	default:
		c.metrics.RecordBridgeMessage("malformed")
		c.logger.Debug("Malformed bridge message", zap.Error(err))
	}
}

// Close stops the pump and closes the mounted surface. Messages still in
// the inbox are discarded.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeSurfaceLocked()
}

func (c *Controller) closeSurfaceLocked() error {
	if c.surface == nil {
		return nil
	}
	err := c.surface.Close()
	c.surface = nil
	return err
}
