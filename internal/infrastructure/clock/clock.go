// Package clock abstracts delayed work so the preview pipeline can be
// driven deterministically in tests.
//
// Production code uses Real(); tests use Fake() and move time forward
// explicitly with Advance. Only the operations the pipeline needs are
// exposed: reading the current time and scheduling a cancellable callback.
package clock

import "time"

// Clock is the time source used by the scheduler, sessions and sandbox timers.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels
	// the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc callback.
type Timer struct {
	stop func() bool
}

// Stop cancels the callback. It reports false if the callback already
// ran or the timer was stopped before.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := time.AfterFunc(d, f)
	return &Timer{stop: timer.Stop}
}
