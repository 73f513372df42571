package compositor

import (
	"sync/atomic"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

// ErrBusy is returned by Gate.Run when another call is in flight.
var ErrBusy = errors.New(errors.ErrCodeBusy, "a composite is already running")

// Gate is a busy flag. A call arriving while another runs is dropped, not
// queued. The zero value is ready to use.
type Gate struct {
	busy atomic.Bool
}

// Run calls fn unless a previous call is still running, in which case it
// returns ErrBusy without calling fn.
func (g *Gate) Run(fn func() error) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer g.busy.Store(false)
	return fn()
}

// Busy reports whether a call is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
