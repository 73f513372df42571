// Package placer decides where a pictogram goes relative to the chart.
//
// Placement follows a strict preference order:
//
//  1. Reference: the position from a reference layout, if its box does not
//     overlap the chart.
//  2. Transparent: an empty area inside the chart image found by sampling
//     alpha, clamped so the pictogram plus padding stays inside the chart.
//  3. Outside: just right of the chart, vertically centered on it and
//     clamped to the canvas.
package placer

import (
	"image"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
	"github.com/yczddgj/chartgalaxy/pkg/sampler"
)

// Strategy identifies which placement step produced a result.
type Strategy int

const (
	StrategyReference Strategy = iota
	StrategyTransparent
	StrategyOutside
)

// String returns the strategy name used in logs.
func (s Strategy) String() string {
	switch s {
	case StrategyReference:
		return "reference"
	case StrategyTransparent:
		return "transparent"
	case StrategyOutside:
		return "outside"
	}
	return "unknown"
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Default placement constants.
const (
	DefaultPadding  = 30
	DefaultGridSize = 5
)

// RegionFinder locates an empty region inside an image. sampler.Params
// implements it.
type RegionFinder interface {
	FindTransparentRegion(img image.Image, region geom.Size, hints []geom.Point) (geom.Point, bool)
}

// Request describes one pictogram placement.
type Request struct {
	// Chart is the chart's rendered rectangle on the canvas.
	Chart geom.Rect
	// Canvas is the drawing surface size.
	Canvas geom.Size
	// Size is the pictogram side length in canvas pixels.
	Size float64
	// Reference is the reference-layout center, if any.
	Reference *geom.Point
	// ChartImage is the chart bitmap at natural resolution. When nil the
	// transparent step is skipped.
	ChartImage image.Image
}

// Result is a placement decision.
type Result struct {
	Center   geom.Point `json:"center"`
	Strategy Strategy   `json:"strategy"`
}

// Box returns the pictogram rectangle for a result.
func (r Result) Box(size float64) geom.Rect {
	return geom.FromCenter(r.Center, geom.Size{W: size, H: size})
}

// Placer runs the placement steps.
type Placer struct {
	Finder   RegionFinder
	Padding  float64
	GridSize int
}

// New returns a Placer sampling with sp and the default padding and grid.
func New(sp sampler.Params) *Placer {
	return &Placer{Finder: sp, Padding: DefaultPadding, GridSize: DefaultGridSize}
}

// Place returns the pictogram center for req.
func (p *Placer) Place(req Request) Result {
	size := geom.Size{W: req.Size, H: req.Size}

	if req.Reference != nil && !geom.FromCenter(*req.Reference, size).Overlaps(req.Chart) {
		return Result{Center: *req.Reference, Strategy: StrategyReference}
	}

	if c, ok := p.sample(req); ok {
		return Result{
			Center:   geom.ClampCenter(c, size, req.Chart, p.Padding),
			Strategy: StrategyTransparent,
		}
	}

	return Result{Center: p.outside(req), Strategy: StrategyOutside}
}

// sample searches the chart image and returns a canvas-space center.
func (p *Placer) sample(req Request) (geom.Point, bool) {
	if req.ChartImage == nil || p.Finder == nil || req.Chart.Empty() {
		return geom.Point{}, false
	}
	b := req.ChartImage.Bounds()
	if b.Empty() {
		return geom.Point{}, false
	}

	// Canvas pixels to image pixels.
	sx := float64(b.Dx()) / req.Chart.Width()
	sy := float64(b.Dy()) / req.Chart.Height()
	region := geom.Size{W: req.Size * sx, H: req.Size * sy}

	var ref *geom.Point
	if req.Reference != nil {
		ref = &geom.Point{
			X: (req.Reference.X - req.Chart.Left) / req.Chart.Width(),
			Y: (req.Reference.Y - req.Chart.Top) / req.Chart.Height(),
		}
	}

	norm := Candidates(ref, p.GridSize)
	hints := make([]geom.Point, len(norm))
	for i, n := range norm {
		hints[i] = geom.Point{
			X: float64(b.Min.X) + n.X*float64(b.Dx()),
			Y: float64(b.Min.Y) + n.Y*float64(b.Dy()),
		}
	}

	c, ok := p.Finder.FindTransparentRegion(req.ChartImage, region, hints)
	if !ok {
		return geom.Point{}, false
	}
	return geom.Point{
		X: req.Chart.Left + (c.X-float64(b.Min.X))/sx,
		Y: req.Chart.Top + (c.Y-float64(b.Min.Y))/sy,
	}, true
}

func (p *Placer) outside(req Request) geom.Point {
	c := geom.Point{
		X: req.Chart.Right + req.Size/2 + p.Padding,
		Y: req.Chart.Center().Y,
	}
	canvas := geom.Rect{Right: req.Canvas.W, Bottom: req.Canvas.H}
	return geom.ClampCenter(c, geom.Size{W: req.Size, H: req.Size}, canvas, 0)
}

// Candidates returns the sampling hints in normalized [0,1] coordinates:
// the reference position (if any), the four quadrant centers, then an n×n
// interior grid in row-major order.
func Candidates(ref *geom.Point, n int) []geom.Point {
	out := make([]geom.Point, 0, 5+n*n)
	if ref != nil {
		out = append(out, *ref)
	}
	out = append(out,
		geom.Point{X: 0.25, Y: 0.25},
		geom.Point{X: 0.75, Y: 0.25},
		geom.Point{X: 0.25, Y: 0.75},
		geom.Point{X: 0.75, Y: 0.75},
	)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			out = append(out, geom.Point{
				X: float64(col+1) / float64(n+1),
				Y: float64(row+1) / float64(n+1),
			})
		}
	}
	return out
}
