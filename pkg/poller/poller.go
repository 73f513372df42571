package poller

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/observability"
)

// DefaultInterval is the delay between status queries.
const DefaultInterval = 500 * time.Millisecond

// ErrJobFailed is returned when the polled job completes with an error.
var ErrJobFailed = errors.New(errors.ErrCodeJobFailed, "generation job failed")

// Source reports the backend job status. backend.Client implements it.
type Source interface {
	Status(ctx context.Context) (*Status, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Status, error)

func (f SourceFunc) Status(ctx context.Context) (*Status, error) { return f(ctx) }

// Poller queries a Source until a target step completes.
type Poller struct {
	src         Source
	interval    time.Duration
	maxAttempts int
	logger      *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between queries.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxAttempts bounds the number of queries per poll. Zero means no bound.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) { p.maxAttempts = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a Poller reading from src.
func New(src Source, opts ...Option) *Poller {
	p := &Poller{
		src:      src,
		interval: DefaultInterval,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Poll blocks until target completes, the context ends, a query fails or the
// attempt limit is reached. The first query happens one interval after the
// call. A job that completes with an error returns its status together with
// an error wrapping ErrJobFailed.
func (p *Poller) Poll(ctx context.Context, target Step) (*Status, error) {
	start := time.Now()
	st, attempts, err := p.poll(ctx, target)
	observability.Poll().OnPollComplete(ctx, string(target), attempts, time.Since(start), err)
	return st, err
}

func (p *Poller) poll(ctx context.Context, target Step) (*Status, int, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return nil, attempts, ctx.Err()
		case <-ticker.C:
		}

		attempts++
		st, err := p.src.Status(ctx)
		if err != nil {
			p.logger.Warn("status query failed, polling stopped", "step", target, "err", err)
			return nil, attempts, err
		}
		p.logger.Debug("status", "step", st.Step, "state", st.State, "progress", st.Progress)

		if st.Done(target) {
			if st.Failed() {
				msg := st.Progress
				if msg == "" {
					msg = string(target)
				}
				return st, attempts, errors.Wrap(errors.ErrCodeJobFailed, ErrJobFailed, "%s", msg)
			}
			return st, attempts, nil
		}
		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			return st, attempts, errors.New(errors.ErrCodeTimeout, "%s did not complete after %d checks", target, attempts)
		}
	}
}

// Handle is a running background poll.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel stops the poll. The callback is not invoked afterwards.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the poll goroutine exits.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start polls for target in the background and calls fn with the outcome.
// Starting a new poll cancels the previous one; a cancelled poll never
// calls fn.
func (p *Poller) Start(ctx context.Context, target Step, fn func(*Status, error)) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.cancel = cancel
	p.mu.Unlock()

	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		st, err := p.Poll(ctx, target)
		if ctx.Err() != nil {
			return
		}
		p.mu.Lock()
		current := p.gen == gen
		if current {
			p.cancel = nil
		}
		p.mu.Unlock()
		if current && fn != nil {
			fn(st, err)
		}
	}()
	return h
}

// Stop cancels the running background poll, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
