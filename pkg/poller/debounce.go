package poller

import (
	"sync"
	"sync/atomic"
	"time"
)

// Debouncer runs the most recent submitted function after a quiet period.
// A function whose turn comes while an earlier one is still running is
// dropped.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	running atomic.Bool
}

// NewDebouncer returns a Debouncer with the given quiet period.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Submit replaces any pending function with fn and restarts the quiet period.
func (d *Debouncer) Submit(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	if fn == nil {
		return
	}
	if !d.running.CompareAndSwap(false, true) {
		return
	}
	defer d.running.Store(false)
	fn()
}

// Running reports whether a submitted function is executing.
func (d *Debouncer) Running() bool { return d.running.Load() }

// Cancel drops the pending function, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}
