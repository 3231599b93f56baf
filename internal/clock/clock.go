// Package clock abstracts the timers pano depends on so that deferred
// eviction, admission retry and render loops can be driven
// deterministically in tests.
//
// Production code uses Real(). Tests use Fake(), whose AfterFunc callbacks
// run synchronously inside Advance in deadline order.
package clock

import "time"

// Clock is the subset of the time package pano uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f after d elapses and returns a Timer that can
	// cancel the pending call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a cancellable pending callback.
type Timer struct {
	stop func() bool
}

// Stop prevents the Timer from firing. It reports whether the call
// stopped the timer; false means it already fired or was stopped.
// Stop on a nil Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}
