package layout

import (
	"math"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Slot is the box an element is fitted into: a center position and the
// maximum size the element may occupy.
type Slot struct {
	Center geom.Point `json:"center"`
	Max    geom.Size  `json:"max"`
}

// Bounds returns the slot rectangle, center ± max/2.
func (s Slot) Bounds() geom.Rect {
	return geom.FromCenter(s.Center, s.Max)
}

// FitScale returns the uniform scale that fits an image of the given natural
// size inside box without upscaling. Degenerate sizes yield 1.
func FitScale(natural, box geom.Size) float64 {
	if natural.Empty() || box.Empty() {
		return 1
	}
	return math.Min(math.Min(box.W/natural.W, box.H/natural.H), 1)
}

// ChartBounds derives the chart rectangle from its intended center and
// maximum box.
func ChartBounds(chart Slot) geom.Rect {
	return chart.Bounds()
}

// DefaultChartSlot centers the chart on the canvas with the configured
// fraction of canvas width and height.
func (p Params) DefaultChartSlot(canvas geom.Size) Slot {
	return Slot{
		Center: geom.Point{X: canvas.W / 2, Y: canvas.H / 2},
		Max:    geom.Size{W: canvas.W * p.ChartWidthFraction, H: canvas.H * p.ChartHeightFraction},
	}
}

// DefaultTitleSlot is the fallback title box used by reference layouts that
// carry no title region.
func DefaultTitleSlot(canvas geom.Size) Slot {
	return Slot{
		Center: geom.Point{X: canvas.W / 2, Y: DefaultTitleSlotTop},
		Max:    geom.Size{W: DefaultTitleSlotWidth, H: DefaultTitleSlotHeight},
	}
}

// DefaultImageSlot is the fallback pictogram box in the lower-right corner.
func DefaultImageSlot(canvas geom.Size) Slot {
	return Slot{
		Center: geom.Point{X: canvas.W - DefaultPictogramSlotInset, Y: canvas.H - DefaultPictogramSlotInset},
		Max:    geom.Size{W: DefaultPictogramSlotSize, H: DefaultPictogramSlotSize},
	}
}
