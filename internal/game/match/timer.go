package match

import (
	"sync"
	"time"
)

// Timer fires a callback after a duration unless stopped first. Sessions use
// it for the post-goal pause; the matchmaking queue uses it for entry
// timeouts. It is safe for concurrent use.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTimer creates and starts a timer that calls onFire after duration.
// onFire runs in a separate goroutine.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: onFire will be called unless Stop is called first.
func NewTimer(duration time.Duration, onFire func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(duration, func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			onFire()
		}
	})
	return t
}

// Stop prevents the callback from firing if it has not already begun. Safe
// to call multiple times.
//
// Postcondition: onFire either already started or will never run. A callback
// that observed stopped == false before Stop acquired the lock may still
// complete after Stop returns; callers re-check their own state under their
// own lock.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.timer.Stop()
}
