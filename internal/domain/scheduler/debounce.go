// Package scheduler coalesces buffer-change notifications into renders.
package scheduler

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/livepen/internal/infrastructure/clock"
)

// DefaultInterval is the quiet period before a render fires.
const DefaultInterval = 500 * time.Millisecond

// Debouncer is a trailing-edge debouncer. At most one timer is pending;
// every Notify cancels it and arms a new one, so a burst of notifications
// produces exactly one call to fire, interval after the last of them.
type Debouncer struct {
	mu       sync.Mutex
	clock    clock.Clock
	interval time.Duration
	fire     func()

	timer   *clock.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer. Construction does not schedule anything.
func NewDebouncer(c clock.Clock, interval time.Duration, fire func()) *Debouncer {
	if c == nil {
		c = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{
		clock:    c,
		interval: interval,
		fire:     fire,
	}
}

// Notify (re)starts the delay timer. Safe to call from any goroutine.
func (d *Debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.cancelLocked()

	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.interval, func() { d.expire(seq) })
}

// Cancel drops the pending timer without firing. It reports whether a
// timer was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelLocked()
}

// Pending reports whether a render is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Interval returns the configured quiet period.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}

// Stop cancels any pending timer and ignores later notifications.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer) cancelLocked() bool {
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	// A callback that already left the clock but has not taken the lock
	// yet is invalidated by the sequence bump.
	d.seq++
	return true
}

func (d *Debouncer) expire(seq uint64) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fire()
}
