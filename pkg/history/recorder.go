package history

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
)

// DefaultDebounce is how long the surface must stay quiet before a save.
const DefaultDebounce = 300 * time.Millisecond

// Recorder saves history after structural surface changes settle.
type Recorder struct {
	manager  *Manager
	debounce time.Duration
	logger   *log.Logger

	mu          sync.Mutex
	timer       *time.Timer
	pending     bool
	stopped     bool
	unsubscribe func()
}

// NewRecorder subscribes to surface changes and saves into m. A
// non-positive debounce uses DefaultDebounce.
func NewRecorder(m *Manager, surface *canvas.Surface, debounce time.Duration, logger *log.Logger) *Recorder {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	r := &Recorder{manager: m, debounce: debounce, logger: logger}
	r.unsubscribe = surface.OnChange(func(ev canvas.Event) {
		if ev.Structural() {
			r.Trigger()
		}
	})
	return r
}

// Trigger schedules a save, restarting the debounce window.
func (r *Recorder) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.pending = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.fire)
}

func (r *Recorder) fire() {
	r.mu.Lock()
	if !r.pending || r.stopped {
		r.mu.Unlock()
		return
	}
	r.pending = false
	r.mu.Unlock()
	if err := r.manager.Save(); err != nil {
		r.logger.Warn("history save failed", "err", err)
	}
}

// Flush saves immediately if a save is pending.
func (r *Recorder) Flush() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	r.fire()
}

// Cancel drops a pending save without performing it.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.pending = false
}

// Stop cancels any pending save and unsubscribes from the surface.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.pending = false
	r.stopped = true
	r.mu.Unlock()
	r.unsubscribe()
}
