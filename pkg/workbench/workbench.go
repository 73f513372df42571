package workbench

import (
	"context"
	"image"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/history"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
)

// ErrNoRefiner is returned by Refine when no backend is configured.
var ErrNoRefiner = errors.New(errors.ErrCodeUnsupported, "refinement needs a backend")

// Request is one composite call. Background, when set, is applied before
// compositing.
type Request struct {
	compositor.Request
	Background string `json:"background,omitempty"`
}

// Workbench is one composition in progress. It is safe for concurrent use.
type Workbench struct {
	surface  *canvas.Surface
	comp     *compositor.Compositor
	history  *history.Manager
	recorder *history.Recorder
	coalesce *poller.Debouncer
	refiner  *refine.Runner
	logger   *log.Logger
	gate     compositor.Gate

	exportPadding    float64
	exportMultiplier float64
	capturePadding   float64

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	last      *Request
	onCompose func(*compositor.Result, error)
}

type settings struct {
	width, height    int
	background       string
	compositor       []compositor.Option
	history          []history.Option
	debounce         time.Duration
	coalesce         time.Duration
	exportPadding    float64
	exportMultiplier float64
	capturePadding   float64
	refiner          *refine.Runner
	logger           *log.Logger
	onCompose        func(*compositor.Result, error)
}

// Option configures a Workbench.
type Option func(*settings)

// WithCanvas sets the surface size and background.
func WithCanvas(width, height int, background string) Option {
	return func(s *settings) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
		if background != "" {
			s.background = background
		}
	}
}

// WithCompositorOptions passes options to the compositor.
func WithCompositorOptions(opts ...compositor.Option) Option {
	return func(s *settings) { s.compositor = append(s.compositor, opts...) }
}

// WithHistoryOptions passes options to the history manager.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(s *settings) { s.history = append(s.history, opts...) }
}

// WithDebounce sets how long edits must settle before history records them.
func WithDebounce(d time.Duration) Option {
	return func(s *settings) { s.debounce = d }
}

// WithCoalesce sets the quiet period Recompose waits for.
func WithCoalesce(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.coalesce = d
		}
	}
}

// WithExport sets the export padding and resolution multiplier.
func WithExport(padding, multiplier float64) Option {
	return func(s *settings) {
		if padding >= 0 {
			s.exportPadding = padding
		}
		if multiplier > 0 {
			s.exportMultiplier = multiplier
		}
	}
}

// WithCapturePadding sets the padding of CaptureBase.
func WithCapturePadding(p float64) Option {
	return func(s *settings) {
		if p >= 0 {
			s.capturePadding = p
		}
	}
}

// WithRefiner enables Refine.
func WithRefiner(r *refine.Runner) Option {
	return func(s *settings) { s.refiner = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnCompose registers a callback for composites started by Recompose.
func OnCompose(fn func(*compositor.Result, error)) Option {
	return func(s *settings) { s.onCompose = fn }
}

// FromConfig translates cfg into options. Backend wiring is left to the
// caller since it needs a live client.
func FromConfig(cfg config.Config) []Option {
	p := placer.New(cfg.Sampler)
	p.Padding = cfg.Placer.Padding
	p.GridSize = cfg.Placer.GridSize
	return []Option{
		WithCanvas(cfg.Canvas.Width, cfg.Canvas.Height, cfg.Canvas.Background),
		WithCompositorOptions(
			compositor.WithLayoutParams(cfg.Layout),
			compositor.WithSampler(cfg.Sampler),
			compositor.WithPlacer(p),
			compositor.WithLoadTimeout(cfg.Compositor.LoadTimeout.Duration),
		),
		WithHistoryOptions(
			history.WithMaxDepth(cfg.History.MaxDepth),
			history.WithQuickRedo(cfg.History.QuickRedo),
		),
		WithDebounce(cfg.History.Debounce.Duration),
		WithCoalesce(cfg.Poller.Coalesce.Duration),
		WithExport(cfg.Export.Padding, cfg.Export.Multiplier),
		WithCapturePadding(cfg.Export.CapturePadding),
	}
}

// New returns an empty workbench loading images through loader.
func New(loader compositor.Loader, opts ...Option) *Workbench {
	s := settings{
		width:            canvas.DefaultWidth,
		height:           canvas.DefaultHeight,
		background:       canvas.DefaultBackground,
		debounce:         history.DefaultDebounce,
		coalesce:         history.DefaultDebounce,
		exportPadding:    canvas.DefaultExportPadding,
		exportMultiplier: canvas.DefaultExportMultiplier,
		capturePadding:   canvas.DefaultCapturePadding,
		logger:           log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, o := range opts {
		o(&s)
	}

	surface := canvas.New(s.width, s.height, s.background)
	mgr := history.New(surface, s.history...)
	ctx, cancel := context.WithCancel(context.Background())
	return &Workbench{
		surface:          surface,
		comp:             compositor.New(loader, append([]compositor.Option{compositor.WithLogger(s.logger)}, s.compositor...)...),
		history:          mgr,
		recorder:         history.NewRecorder(mgr, surface, s.debounce, s.logger),
		coalesce:         poller.NewDebouncer(s.coalesce),
		refiner:          s.refiner,
		logger:           s.logger,
		exportPadding:    s.exportPadding,
		exportMultiplier: s.exportMultiplier,
		capturePadding:   s.capturePadding,
		ctx:              ctx,
		cancel:           cancel,
		onCompose:        s.onCompose,
	}
}

// Surface returns the underlying surface. Callers should mutate it only
// through the workbench so history stays consistent.
func (w *Workbench) Surface() *canvas.Surface { return w.surface }

// Busy reports whether a composite is running.
func (w *Workbench) Busy() bool { return w.gate.Busy() }

// Last returns a copy of the most recent successful request.
func (w *Workbench) Last() (Request, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return Request{}, false
	}
	return *w.last, true
}

// Compose runs one composite. It returns compositor.ErrBusy without doing
// anything if another composite is running.
//
// A fresh composite starts a new history with the result as its only
// entry. A position-preserving one is recorded as a single edit.
func (w *Workbench) Compose(ctx context.Context, req Request) (*compositor.Result, error) {
	var res *compositor.Result
	err := w.gate.Run(func() error {
		if req.Background != "" {
			if err := w.surface.SetBackground(req.Background); err != nil {
				return err
			}
		}
		r, err := w.comp.Composite(ctx, w.surface, req.Request)
		if err != nil {
			return err
		}
		res = r

		w.mu.Lock()
		saved := req
		saved.PictogramSources = append([]string(nil), req.PictogramSources...)
		w.last = &saved
		w.mu.Unlock()

		defer w.pruneImages()
		if r.Strategy == compositor.Recreate {
			w.recorder.Cancel()
			return w.history.SaveInitial()
		}
		w.recorder.Flush()
		return nil
	})
	if err != nil {
		return res, err
	}
	w.logger.Info("composited", "mode", res.Strategy, "elements", w.surface.Len(), "skipped", len(res.Skipped))
	return res, nil
}

// Recompose schedules a composite after the coalescing quiet period. Only
// the last request of a burst runs, and it is dropped if a composite is
// still running when its turn comes.
func (w *Workbench) Recompose(req Request) {
	w.coalesce.Submit(func() {
		res, err := w.Compose(w.ctx, req)
		if err != nil && !errors.Is(err, errors.ErrCodeBusy) {
			w.logger.Warn("recomposite failed", "err", err)
		}
		if w.onCompose != nil {
			w.onCompose(res, err)
		}
	})
}

// Flush records any pending edit immediately.
func (w *Workbench) Flush() { w.recorder.Flush() }

// Undo steps back one history entry. An edit still inside the debounce
// window is recorded first, so it is the step undone.
func (w *Workbench) Undo() (bool, error) {
	w.recorder.Flush()
	ok, err := w.history.Undo()
	if err != nil {
		return false, err
	}
	w.reload(w.ctx)
	return ok, nil
}

// QuickRedo restores the most recently overwritten state. A pending edit is
// recorded first so it can itself be quick-redone.
func (w *Workbench) QuickRedo() (bool, error) {
	w.recorder.Flush()
	ok, err := w.history.QuickRedo()
	if err != nil {
		return false, err
	}
	w.reload(w.ctx)
	return ok, nil
}

// Delete removes elements by ID. The state before the removal becomes a
// quick-redo candidate.
func (w *Workbench) Delete(ids ...string) (int, error) {
	for _, id := range ids {
		if w.surface.IndexOf(id) < 0 {
			return 0, errors.New(errors.ErrCodeNotFound, "element %s not found", id)
		}
	}
	w.recorder.Flush()
	return w.history.Delete(ids...)
}

// Reset clears the surface, the history and the quick-redo stack. Call it
// when the underlying data changes so no placement carries over.
func (w *Workbench) Reset() {
	w.coalesce.Cancel()
	w.recorder.Cancel()
	w.surface.Clear()
	w.history.Reset()
	w.pruneImages()
	w.mu.Lock()
	w.last = nil
	w.mu.Unlock()
	w.logger.Debug("workbench reset")
}

// Export flattens the visible elements at the export resolution.
func (w *Workbench) Export() (*image.RGBA, error) {
	img, _, err := w.surface.Export(w.exportPadding, w.exportMultiplier)
	return img, err
}

// ExportPNG writes Export as PNG.
func (w *Workbench) ExportPNG(out io.Writer) error {
	img, err := w.Export()
	if err != nil {
		return err
	}
	return canvas.WritePNG(out, img)
}

// CaptureBase renders the chart and title only, on a transparent
// background.
func (w *Workbench) CaptureBase() (*image.RGBA, error) {
	img, _, err := w.surface.CaptureBase(w.capturePadding)
	return img, err
}

// Refine sends the exported composition to the backend and waits for the
// refined variant.
func (w *Workbench) Refine(ctx context.Context, req refine.Request) (*refine.Result, error) {
	if w.refiner == nil {
		return nil, ErrNoRefiner
	}
	img, err := w.Export()
	if err != nil {
		return nil, err
	}
	req.Image = img
	if req.Background == "" {
		req.Background = w.surface.Background()
	}
	return w.refiner.Run(ctx, req)
}

// Refiner returns the refine runner, or nil.
func (w *Workbench) Refiner() *refine.Runner { return w.refiner }

// Close stops pending work. The workbench must not be used afterwards.
func (w *Workbench) Close() error {
	w.coalesce.Cancel()
	w.recorder.Stop()
	w.cancel()
	return nil
}

// reload fetches images that a restored snapshot references but the
// surface has not seen. They go through the compositor so titles are
// trimmed as when first composited.
func (w *Workbench) reload(ctx context.Context) int {
	missing := 0
	for _, ref := range w.surface.Missing() {
		img, err := w.comp.Load(ctx, ref.Kind, ref.Source)
		if err != nil {
			w.logger.Warn("could not reload image", "source", ref.Source, "kind", ref.Kind, "err", err)
			missing++
			continue
		}
		w.surface.Provide(ref.Source, img)
	}
	return missing
}

// pruneImages drops memoized images that neither the surface nor any
// restorable history entry references.
func (w *Workbench) pruneImages() {
	keep := make(map[string]bool)
	for _, data := range w.history.Retained() {
		sources, err := canvas.SnapshotSources(data)
		if err != nil {
			w.logger.Warn("could not read history entry", "err", err)
			return
		}
		for _, src := range sources {
			keep[src] = true
		}
	}
	if n := w.surface.PruneImages(func(src string) bool { return keep[src] }); n > 0 {
		w.logger.Debug("pruned images", "dropped", n, "kept", w.surface.Memoized())
	}
}
