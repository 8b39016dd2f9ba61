package room

import (
	"sync"
	"time"
)

// Timer fires a callback after a duration unless stopped first. It backs
// the reveal quorum fallback and the empty-room deletion grace period.
// Safe for concurrent use; the callback runs in its own goroutine and must
// re-validate room state before acting, since a stale fire may race a
// transition that already superseded it.
type Timer struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTimer creates and starts a timer that calls onFire after duration.
//
// Precondition: duration > 0; onFire must not be nil.
// Postcondition: Returns a running Timer; onFire will be called unless Stop
// is called first.
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

// Stop prevents the callback from firing. Safe to call multiple times.
//
// Postcondition: onFire will not be called after Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.timer.Stop()
}
