package layout

import (
	"math"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// titleConfig collects the optional TitleSlot inputs.
type titleConfig struct {
	bounds    *geom.Rect
	minHeight float64
}

// TitleOption adjusts a TitleSlot computation.
type TitleOption func(*titleConfig)

// WithChartBounds uses r instead of the bounds derived from the chart slot,
// typically the chart's actual rendered rectangle.
func WithChartBounds(r geom.Rect) TitleOption {
	return func(c *titleConfig) { c.bounds = &r }
}

// WithMinHeight raises the title height floor.
func WithMinHeight(h float64) TitleOption {
	return func(c *titleConfig) { c.minHeight = h }
}

// TitleSlot places the title box above the chart, horizontally centered on
// it. Width is max(TitleBaseWidth, chartWidth*widthRatio) and height is
// max(TitleBaseHeight, minHeight). The vertical center is padding above the
// chart top but never closer than TitleMinTop to the canvas top edge.
func (p Params) TitleSlot(chart Slot, canvas geom.Size, widthRatio, padding float64, opts ...TitleOption) Slot {
	var cfg titleConfig
	for _, o := range opts {
		o(&cfg)
	}

	bounds := ChartBounds(chart)
	if cfg.bounds != nil {
		bounds = *cfg.bounds
	}

	w := math.Max(p.TitleBaseWidth, bounds.Width()*widthRatio)
	h := math.Max(p.TitleBaseHeight, cfg.minHeight)
	y := math.Max(bounds.Top-padding-h/2, p.TitleMinTop+h/2)

	return Slot{
		Center: geom.Point{X: bounds.Center().X, Y: y},
		Max:    geom.Size{W: w, H: h},
	}
}

// TitlePadding returns the default title-to-chart gap for a canvas.
func (p Params) TitlePadding(canvas geom.Size) float64 {
	return canvas.H * p.TitlePaddingRatio
}

// WidthRatio picks the title width ratio from the title graphic's size:
// squarish graphics (aspect below the threshold) use the compact ratio,
// banner-like ones the wide ratio.
func (p Params) WidthRatio(title geom.Size) float64 {
	if title.Aspect() < p.TitleAspectThreshold {
		return p.TitleCompactRatio
	}
	return p.TitleWideRatio
}

// TitleFit is the corrected placement of a title after the chart is on the
// canvas.
type TitleFit struct {
	Center geom.Point `json:"center"`
	Scale  float64    `json:"scale"`
}

// Size returns the displayed title size for a natural size.
func (f TitleFit) Size(natural geom.Size) geom.Size {
	return geom.Size{W: natural.W * f.Scale, H: natural.H * f.Scale}
}

// FitTitle rescales a title so its width is chart.Width()*widthRatio and
// places it padding above the chart, centered on it, with its center no
// higher than minTop plus half its height. natural is the size of the title
// content (after trimming).
func FitTitle(chart geom.Rect, natural geom.Size, widthRatio, padding, minTop float64) TitleFit {
	scale := 1.0
	if want := chart.Width() * widthRatio; want > 0 {
		scale = want / math.Max(1, natural.W)
	}
	h := natural.H * scale
	y := math.Max(minTop+h/2, chart.Top-padding-h/2)
	return TitleFit{
		Center: geom.Point{X: chart.Center().X, Y: y},
		Scale:  scale,
	}
}

// FitTitleAuto applies FitTitle with the aspect-ratio width rule and the
// canvas-relative padding.
func (p Params) FitTitleAuto(chart geom.Rect, natural geom.Size, canvas geom.Size) TitleFit {
	return FitTitle(chart, natural, p.WidthRatio(natural), p.TitlePadding(canvas), p.TitleMinTop)
}

// FitTitleReference applies FitTitle with a ratio taken from a reference
// layout (title box width over chart box width).
func (p Params) FitTitleReference(chart geom.Rect, natural geom.Size, ratio float64) TitleFit {
	return FitTitle(chart, natural, ratio, p.ReferenceTitlePad, p.ReferenceTitleMinTop)
}
