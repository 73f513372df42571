// Package observability lets an application watch compositing, job polling,
// cache traffic and backend calls without the libraries depending on a
// metrics or tracing stack.
//
// Libraries fetch the current hooks and call them:
//
//	observability.Composite().OnCompositeStart(ctx, "recreate")
//	observability.Poll().OnPollComplete(ctx, "title_generation", 4, d, err)
//
// The defaults do nothing. The application installs its own once at
// startup, before any work begins:
//
//	observability.Install(observability.Hooks{Cache: myCacheMetrics})
//
// [LogHooks] implements every interface by writing debug lines, which is
// what the CLI installs under --verbose.
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// CompositeHooks receives compositor events.
type CompositeHooks interface {
	OnCompositeStart(ctx context.Context, mode string)
	OnCompositeComplete(ctx context.Context, mode string, elements int, duration time.Duration, err error)
	// OnPlacement reports the strategy that placed a pictogram.
	OnPlacement(ctx context.Context, strategy string)
}

// PollHooks receives job poller events.
type PollHooks interface {
	// OnPollComplete fires once per Poll call, successful or not.
	OnPollComplete(ctx context.Context, step string, attempts int, duration time.Duration, err error)
}

// CacheHooks receives cache events. keyType is "asset", "render" or
// "composite".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// HTTPHooks receives outgoing request events from the asset loader and the
// backend client.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError covers transport failures only; HTTP error statuses arrive
	// through OnResponse.
	OnError(ctx context.Context, method, host, path string, err error)
}

// Hooks bundles one implementation per category. Nil fields leave the
// installed hooks for that category unchanged.
type Hooks struct {
	Composite CompositeHooks
	Poll      PollHooks
	Cache     CacheHooks
	HTTP      HTTPHooks
}

// Noop implements every hook interface and ignores all events.
type Noop struct{}

func (Noop) OnCompositeStart(context.Context, string)                               {}
func (Noop) OnCompositeComplete(context.Context, string, int, time.Duration, error) {}
func (Noop) OnPlacement(context.Context, string)                                    {}
func (Noop) OnPollComplete(context.Context, string, int, time.Duration, error)      {}
func (Noop) OnCacheHit(context.Context, string)                                     {}
func (Noop) OnCacheMiss(context.Context, string)                                    {}
func (Noop) OnCacheSet(context.Context, string, int)                                {}
func (Noop) OnRequest(context.Context, string, string, string)                      {}
func (Noop) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (Noop) OnError(context.Context, string, string, string, error)                 {}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Hooks {
	return Hooks{Composite: Noop{}, Poll: Noop{}, Cache: Noop{}, HTTP: Noop{}}
}

// Install replaces the hooks for every non-nil field of h.
func Install(h Hooks) {
	mu.Lock()
	defer mu.Unlock()
	if h.Composite != nil {
		current.Composite = h.Composite
	}
	if h.Poll != nil {
		current.Poll = h.Poll
	}
	if h.Cache != nil {
		current.Cache = h.Cache
	}
	if h.HTTP != nil {
		current.HTTP = h.HTTP
	}
}

// Reset restores the no-op hooks.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

func Composite() CompositeHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.Composite
}

func Poll() PollHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.Poll
}

func Cache() CacheHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.Cache
}

func HTTP() HTTPHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.HTTP
}

// LogHooks writes every event to a logger at debug level.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns a Hooks bundle with l behind every category.
func NewLogHooks(l *log.Logger) Hooks {
	h := LogHooks{Logger: l}
	return Hooks{Composite: h, Poll: h, Cache: h, HTTP: h}
}

func (h LogHooks) OnCompositeStart(_ context.Context, mode string) {
	h.Logger.Debug("composite start", "mode", mode)
}

func (h LogHooks) OnCompositeComplete(_ context.Context, mode string, elements int, d time.Duration, err error) {
	if err != nil {
		h.Logger.Debug("composite failed", "mode", mode, "duration", d, "err", err)
		return
	}
	h.Logger.Debug("composite done", "mode", mode, "elements", elements, "duration", d)
}

func (h LogHooks) OnPlacement(_ context.Context, strategy string) {
	h.Logger.Debug("pictogram placed", "strategy", strategy)
}

func (h LogHooks) OnPollComplete(_ context.Context, step string, attempts int, d time.Duration, err error) {
	h.Logger.Debug("poll done", "step", step, "attempts", attempts, "duration", d, "err", err)
}

func (h LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.Logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.Logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.Logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
