package canvas

import (
	"image"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Export defaults.
const (
	DefaultExportPadding    = 16
	DefaultExportMultiplier = 2
	DefaultCapturePadding   = 20
)

// MaxExportPixels bounds the output of Export and CaptureBase. Larger crops
// come from elements moved or scaled far off the canvas.
const MaxExportPixels = 64 << 20

// ErrNothingToExport is returned when there are no visible elements or
// their bounds are degenerate.
var ErrNothingToExport = errors.New(errors.ErrCodeNothingToExport, "no visible elements to export")

// CaptureOptions selects what Capture draws.
type CaptureOptions struct {
	// Region is the canvas rectangle to rasterize.
	Region geom.Rect
	// Multiplier scales the output; 0 means 1.
	Multiplier float64
	// Include filters elements by index; nil draws every visible element.
	Include func(i int, e *Element) bool
	// Transparent skips the background fill.
	Transparent bool
}

// checkExportSize rejects a crop whose output at multiplier m would exceed
// MaxExportPixels.
func checkExportSize(crop geom.Rect, m float64) error {
	if m <= 0 {
		m = 1
	}
	w, h := math.Ceil(crop.Width()*m), math.Ceil(crop.Height()*m)
	if w*h > MaxExportPixels {
		return errors.New(errors.ErrCodeInvalidInput,
			"export area %.0fx%.0f exceeds %d pixels; move or shrink elements that lie far off the canvas", w, h, MaxExportPixels)
	}
	return nil
}

// Capture rasterizes part of the surface. The caller bounds the region.
func (s *Surface) Capture(opts CaptureOptions) *image.RGBA {
	m := opts.Multiplier
	if m <= 0 {
		m = 1
	}
	w := max(1, int(math.Ceil(opts.Region.Width()*m)))
	h := max(1, int(math.Ceil(opts.Region.Height()*m)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !opts.Transparent {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(s.backgroundColor()), image.Point{}, draw.Src)
	}
	for i, e := range s.elements {
		if !e.Visible || e.img == nil {
			continue
		}
		if opts.Include != nil && !opts.Include(i, e) {
			continue
		}
		drawElement(dst, e, opts.Region.Left, opts.Region.Top, m)
	}
	return dst
}

// drawElement composites e onto dst. (ox, oy) is the canvas point mapped to
// the dst origin and m the output multiplier.
func drawElement(dst draw.Image, e *Element, ox, oy, m float64) {
	src := e.img
	b := src.Bounds()
	a, d := e.ScaleX, e.ScaleY
	anchor := e.Anchor.Bounds(geom.Point{}, geom.Size{W: e.natural.W * a, H: e.natural.H * d})
	ax, ay := -anchor.Left, -anchor.Top

	sin, cos := math.Sincos(e.Rotation * math.Pi / 180)
	// Source pixel to local (anchor-relative) coordinates.
	lx0 := -a*float64(b.Min.X) - ax
	ly0 := -d*float64(b.Min.Y) - ay

	aff := f64.Aff3{
		m * cos * a, -m * sin * d, m * (e.Position.X - ox + cos*lx0 - sin*ly0),
		m * sin * a, m * cos * d, m * (e.Position.Y - oy + sin*lx0 + cos*ly0),
	}
	draw.CatmullRom.Transform(dst, aff, src, b, draw.Over, nil)
}

// ContentBounds returns the union of the bounds of every visible element.
func (s *Surface) ContentBounds() (geom.Rect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contentBounds(func(int, *Element) bool { return true })
}

func (s *Surface) contentBounds(include func(int, *Element) bool) (geom.Rect, bool) {
	var r geom.Rect
	found := false
	for i, e := range s.elements {
		if !e.Visible || !include(i, e) {
			continue
		}
		eb := e.Bounds()
		if !found {
			r, found = eb, true
			continue
		}
		r = geom.Rect{
			Left:   math.Min(r.Left, eb.Left),
			Top:    math.Min(r.Top, eb.Top),
			Right:  math.Max(r.Right, eb.Right),
			Bottom: math.Max(r.Bottom, eb.Bottom),
		}
	}
	if !found || !finite(r) || r.Empty() {
		return geom.Rect{}, false
	}
	return r, true
}

func finite(r geom.Rect) bool {
	for _, v := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// cropRect pads content and snaps it outwards to whole pixels.
func cropRect(content geom.Rect, pad float64) geom.Rect {
	left := math.Floor(content.Left - pad)
	top := math.Floor(content.Top - pad)
	w := math.Max(math.Ceil(content.Width()+2*pad), 1)
	h := math.Max(math.Ceil(content.Height()+2*pad), 1)
	return geom.Rect{Left: left, Top: top, Right: left + w, Bottom: top + h}
}

// Export renders the visible content cropped to its bounds plus padding, at
// the given multiplier. It returns ErrNothingToExport when there is nothing
// to draw.
func (s *Surface) Export(padding, multiplier float64) (*image.RGBA, geom.Rect, error) {
	content, ok := s.ContentBounds()
	if !ok {
		return nil, geom.Rect{}, ErrNothingToExport
	}
	crop := cropRect(content, padding)
	if err := checkExportSize(crop, multiplier); err != nil {
		return nil, geom.Rect{}, err
	}
	return s.Capture(CaptureOptions{Region: crop, Multiplier: multiplier}), crop, nil
}

// CaptureBase renders the chart and title only (pictograms hidden) cropped
// to their bounds plus padding, at 1×.
func (s *Surface) CaptureBase(padding float64) (*image.RGBA, geom.Rect, error) {
	base := func(i int, _ *Element) bool { return i < 2 }
	s.mu.RLock()
	content, ok := s.contentBounds(base)
	s.mu.RUnlock()
	if !ok {
		return nil, geom.Rect{}, ErrNothingToExport
	}
	crop := cropRect(content, padding)
	if err := checkExportSize(crop, 1); err != nil {
		return nil, geom.Rect{}, err
	}
	return s.Capture(CaptureOptions{Region: crop, Include: base}), crop, nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}
