package compositor

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/observability"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/sampler"
)

// DefaultLoadTimeout bounds each image load.
const DefaultLoadTimeout = 10 * time.Second

// PictogramOffset is the per-index shift applied to extra pictograms.
const PictogramOffset = 20

// Loader fetches and decodes an image source.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) { return f(ctx, src) }

// UpdateStrategy selects how existing elements are treated.
type UpdateStrategy int

const (
	// Recreate clears the surface and builds every element anew.
	Recreate UpdateStrategy = iota
	// MutateInPlace swaps images under existing elements, falling back to
	// Recreate per element when the swap fails.
	MutateInPlace
)

// StrategyFor maps the preservePositions flag to a strategy.
func StrategyFor(preservePositions bool) UpdateStrategy {
	if preservePositions {
		return MutateInPlace
	}
	return Recreate
}

// String returns the strategy name.
func (s UpdateStrategy) String() string {
	if s == MutateInPlace {
		return "mutate-in-place"
	}
	return "recreate"
}

// Request is one composite call.
type Request struct {
	ChartSource       string             `json:"chart"`
	TitleSource       string             `json:"title,omitempty"`
	PictogramSources  []string           `json:"pictograms,omitempty"`
	Layout            *layout.Descriptor `json:"layout,omitempty"`
	PreservePositions bool               `json:"preserve_positions"`
}

// Result reports what a composite did.
type Result struct {
	Strategy UpdateStrategy
	// Saved is the state captured before a position-preserving update.
	Saved SavedPositions
	// Placement is how the first pictogram was placed, when one was.
	Placement *placer.Result
	// Skipped lists sources that could not be loaded in fresh mode.
	Skipped []string
	// Swapped and Recreated count in-place swaps and their fallbacks.
	Swapped   int
	Recreated int
}

// Compositor builds compositions.
type Compositor struct {
	loader  Loader
	params  layout.Params
	sampler sampler.Params
	placer  *placer.Placer
	timeout time.Duration
	logger  *log.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithLayoutParams overrides the geometry constants.
func WithLayoutParams(p layout.Params) Option {
	return func(c *Compositor) { c.params = p }
}

// WithSampler overrides the sampling constants used for trimming titles and
// placing pictograms.
func WithSampler(p sampler.Params) Option {
	return func(c *Compositor) { c.sampler = p }
}

// WithPlacer replaces the pictogram placer. A placer that samples with
// sampler.Params is given the compositor's params; a custom RegionFinder is
// kept.
func WithPlacer(p *placer.Placer) Option {
	return func(c *Compositor) { c.placer = p }
}

// WithLoadTimeout bounds each image load. Zero disables the bound.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Compositor) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Compositor) { c.logger = l }
}

// New returns a Compositor loading images through loader.
func New(loader Loader, opts ...Option) *Compositor {
	sp := sampler.DefaultParams()
	c := &Compositor{
		loader:  loader,
		params:  layout.DefaultParams(),
		sampler: sp,
		placer:  placer.New(sp),
		timeout: DefaultLoadTimeout,
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, o := range opts {
		o(c)
	}
	if _, ok := c.placer.Finder.(sampler.Params); ok || c.placer.Finder == nil {
		p := *c.placer
		p.Finder = c.sampler
		c.placer = &p
	}
	return c
}

// Composite applies req to surface. See the package documentation for the
// two modes.
func (c *Compositor) Composite(ctx context.Context, surface *canvas.Surface, req Request) (*Result, error) {
	start := time.Now()
	strategy := StrategyFor(req.PreservePositions)
	observability.Composite().OnCompositeStart(ctx, strategy.String())

	var (
		res *Result
		err error
	)
	if strategy == MutateInPlace {
		res, err = c.update(ctx, surface, req)
	} else {
		res, err = c.fresh(ctx, surface, req)
	}

	observability.Composite().OnCompositeComplete(ctx, strategy.String(), surface.Len(), time.Since(start), err)
	if err != nil {
		return res, err
	}
	c.logger.Debug("composited", "strategy", strategy, "elements", surface.Len(),
		"skipped", len(res.Skipped), "recreated", res.Recreated, "duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// =============================================================================
// Fresh mode
// =============================================================================

func (c *Compositor) fresh(ctx context.Context, surface *canvas.Surface, req Request) (*Result, error) {
	res := &Result{Strategy: Recreate}
	surface.Clear()

	size := surface.Size()
	slots := req.Layout.Slots(size, c.params)

	chartRect := layout.ChartBounds(slots.Chart)
	if req.ChartSource != "" {
		if e, ok := c.tryAdd(ctx, surface, res, canvas.KindChart, req.ChartSource, slots.Chart); ok {
			chartRect = e.Bounds()
		}
	}

	if req.TitleSource != "" {
		c.addTitle(ctx, surface, res, req.TitleSource, slots, chartRect)
	}

	if len(req.PictogramSources) > 0 {
		c.addPictograms(ctx, surface, res, req.PictogramSources, slots, chartRect)
	}
	return res, nil
}

// tryAdd loads src and appends it fitted into slot. Load failures are logged
// and recorded as skipped.
func (c *Compositor) tryAdd(ctx context.Context, surface *canvas.Surface, res *Result, kind canvas.Kind, src string, slot layout.Slot) (*canvas.Element, bool) {
	img, err := c.load(ctx, kind, src)
	if err != nil {
		c.logger.Warn("skipping element", "kind", kind, "src", src, "err", err)
		res.Skipped = append(res.Skipped, src)
		return nil, false
	}
	e := canvas.NewElement(kind, src, img)
	e.SetScale(layout.FitScale(e.NaturalSize(), slot.Max))
	e.Position = slot.Center
	surface.Add(e)
	return e, true
}

// addTitle adds the title and corrects it against the chart's rendered
// bounds.
func (c *Compositor) addTitle(ctx context.Context, surface *canvas.Surface, res *Result, src string, slots layout.Slots, chartRect geom.Rect) {
	e, ok := c.tryAdd(ctx, surface, res, canvas.KindTitle, src, slots.Title)
	if !ok {
		return
	}
	idx := surface.IndexOf(e.ID)
	if !hasKind(surface, 0, canvas.KindChart) {
		return
	}
	fit := c.fitTitle(chartRect, e.NaturalSize(), slots.TitleRatio, surface.Size())
	surface.Modify(idx, func(el *canvas.Element) {
		el.SetScale(fit.Scale)
		el.Position = fit.Center
	})
}

func (c *Compositor) fitTitle(chart geom.Rect, natural geom.Size, ratio float64, canvasSize geom.Size) layout.TitleFit {
	if ratio > 0 {
		return c.params.FitTitleReference(chart, natural, ratio)
	}
	return c.params.FitTitleAuto(chart, natural, canvasSize)
}

// placeFirst decides where the first pictogram goes. The chart and title
// must already be on the surface: the sampler looks at both.
func (c *Compositor) placeFirst(ctx context.Context, surface *canvas.Surface, slots layout.Slots, chartRect geom.Rect) placer.Result {
	req := placer.Request{
		Chart:  chartRect,
		Canvas: surface.Size(),
		Size:   c.params.PictogramSize,
	}
	if slots.ImageFromReference {
		ref := slots.Image.Center
		req.Reference = &ref
	}
	if hasKind(surface, 0, canvas.KindChart) && !chartRect.Empty() {
		req.ChartImage = surface.Capture(canvas.CaptureOptions{
			Region:      chartRect,
			Transparent: true,
			Include: func(_ int, e *canvas.Element) bool {
				return e.Kind == canvas.KindChart || e.Kind == canvas.KindTitle
			},
		})
	}
	p := c.placer.Place(req)
	observability.Composite().OnPlacement(ctx, p.Strategy.String())
	c.logger.Debug("placed pictogram", "strategy", p.Strategy, "x", p.Center.X, "y", p.Center.Y)
	return p
}

func (c *Compositor) addPictograms(ctx context.Context, surface *canvas.Surface, res *Result, sources []string, slots layout.Slots, chartRect geom.Rect) {
	first := c.placeFirst(ctx, surface, slots, chartRect)
	res.Placement = &first
	for i, src := range sources {
		c.tryAdd(ctx, surface, res, canvas.KindPictogram, src, c.pictogramSlot(first, i))
	}
}

func (c *Compositor) pictogramSlot(first placer.Result, i int) layout.Slot {
	off := float64(i * PictogramOffset)
	return layout.Slot{
		Center: first.Center.Add(off, off),
		Max:    geom.Size{W: c.params.PictogramSize, H: c.params.PictogramSize},
	}
}

// =============================================================================
// Position-preserving mode
// =============================================================================

func (c *Compositor) update(ctx context.Context, surface *canvas.Surface, req Request) (*Result, error) {
	res := &Result{Strategy: MutateInPlace, Saved: CaptureSavedPositions(surface)}
	saved := res.Saved

	size := surface.Size()
	slots := req.Layout.Slots(size, c.params)
	if saved.Chart != nil {
		slots.Chart.Center = saved.Chart.Position
	}

	next := 0
	if req.ChartSource != "" {
		if err := c.updateRole(ctx, surface, res, next, canvas.KindChart, req.ChartSource, saved.Chart, slots.Chart); err != nil {
			return res, err
		}
	}
	if hasKind(surface, next, canvas.KindChart) {
		next++
	}
	chartRect := layout.ChartBounds(slots.Chart)
	if e, ok := surface.At(0); ok && e.Kind == canvas.KindChart {
		chartRect = e.Bounds()
	}

	if req.TitleSource != "" {
		if hasKind(surface, next, canvas.KindTitle) {
			if err := c.updateRole(ctx, surface, res, next, canvas.KindTitle, req.TitleSource, saved.Title, slots.Title); err != nil {
				return res, err
			}
		} else {
			c.insertTitle(ctx, surface, res, next, req.TitleSource, slots, chartRect, saved.Title)
		}
	}
	if hasKind(surface, next, canvas.KindTitle) {
		next++
	}

	var first *placer.Result
	for i, src := range req.PictogramSources {
		idx := next + i
		var savedT *canvas.Transform
		if i < len(saved.Pictograms) {
			t := saved.Pictograms[i]
			savedT = &t
		}
		if hasKind(surface, idx, canvas.KindPictogram) {
			slot := layout.Slot{Max: geom.Size{W: c.params.PictogramSize, H: c.params.PictogramSize}}
			if err := c.updateRole(ctx, surface, res, idx, canvas.KindPictogram, src, savedT, slot); err != nil {
				return res, err
			}
			continue
		}
		if savedT == nil && first == nil {
			p := c.placeFirst(ctx, surface, slots, chartRect)
			first = &p
			res.Placement = first
		}
		slot := layout.Slot{}
		if first != nil {
			slot = c.pictogramSlot(*first, i)
		}
		c.insertAt(ctx, surface, res, idx, canvas.KindPictogram, src, slot, savedT)
	}
	return res, nil
}

// updateRole swaps the image of the element at idx, falling back to
// remove-and-recreate with the saved transform when the swap fails.
func (c *Compositor) updateRole(ctx context.Context, surface *canvas.Surface, res *Result, idx int, kind canvas.Kind, src string, saved *canvas.Transform, slot layout.Slot) error {
	if !hasKind(surface, idx, kind) {
		c.insertAt(ctx, surface, res, idx, kind, src, slot, saved)
		return nil
	}

	img, err := c.load(ctx, kind, src)
	if err == nil {
		surface.SetImage(idx, src, img)
		res.Swapped++
		return nil
	}
	c.logger.Warn("in-place update failed, recreating", "kind", kind, "src", src, "err", err)

	old, _ := surface.RemoveAt(idx)
	img, err = c.load(ctx, kind, src)
	if err != nil {
		return fmt.Errorf("recreate %s: %w", kind, err)
	}
	e := canvas.NewElement(kind, src, img)
	switch {
	case saved != nil:
		e.Transform = *saved
	case old != nil:
		e.Transform = old.Transform
	default:
		e.SetScale(layout.FitScale(e.NaturalSize(), slot.Max))
		e.Position = slot.Center
	}
	surface.Insert(idx, e)
	res.Recreated++
	return nil
}

// insertAt adds a new element at idx, using the saved transform when there
// is one and the slot otherwise. Load failures skip the element.
func (c *Compositor) insertAt(ctx context.Context, surface *canvas.Surface, res *Result, idx int, kind canvas.Kind, src string, slot layout.Slot, saved *canvas.Transform) {
	img, err := c.load(ctx, kind, src)
	if err != nil {
		c.logger.Warn("skipping element", "kind", kind, "src", src, "err", err)
		res.Skipped = append(res.Skipped, src)
		return
	}
	e := canvas.NewElement(kind, src, img)
	if saved != nil {
		e.Transform = *saved
	} else {
		e.SetScale(layout.FitScale(e.NaturalSize(), slot.Max))
		e.Position = slot.Center
	}
	surface.Insert(idx, e)
}

// insertTitle adds a title at idx and corrects it against the chart unless a
// saved transform exists.
func (c *Compositor) insertTitle(ctx context.Context, surface *canvas.Surface, res *Result, idx int, src string, slots layout.Slots, chartRect geom.Rect, saved *canvas.Transform) {
	before := surface.Len()
	c.insertAt(ctx, surface, res, idx, canvas.KindTitle, src, slots.Title, saved)
	if surface.Len() == before || saved != nil || !hasKind(surface, 0, canvas.KindChart) {
		return
	}
	e, _ := surface.At(idx)
	fit := c.fitTitle(chartRect, e.NaturalSize(), slots.TitleRatio, surface.Size())
	surface.Modify(idx, func(el *canvas.Element) {
		el.SetScale(fit.Scale)
		el.Position = fit.Center
	})
}

// =============================================================================
// Helpers
// =============================================================================

// Load fetches src the way Composite does for an element of the given kind,
// so an image reloaded after a restore matches the one first composited.
func (c *Compositor) Load(ctx context.Context, kind canvas.Kind, src string) (image.Image, error) {
	return c.load(ctx, kind, src)
}

// load fetches src within the load timeout. Titles are trimmed to their
// visible content.
func (c *Compositor) load(ctx context.Context, kind canvas.Kind, src string) (image.Image, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	img, err := c.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("load %s: no image data", src)
	}
	if kind == canvas.KindTitle {
		img = c.sampler.Trim(img)
	}
	return img, nil
}

func hasKind(surface *canvas.Surface, idx int, kind canvas.Kind) bool {
	e, ok := surface.At(idx)
	return ok && e.Kind == kind
}
