package layout

import (
	"math"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Box is a rectangle normalized to [0,1] of a reference image.
type Box struct {
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// Valid reports whether the box is non-degenerate and inside the unit square.
func (b Box) Valid() bool {
	const eps = 1e-9
	return b.Width > 0 && b.Height > 0 &&
		b.X >= -eps && b.Y >= -eps &&
		b.X+b.Width <= 1+eps && b.Y+b.Height <= 1+eps
}

// Descriptor is a reference layout: the reference image size and one
// optional box per role.
type Descriptor struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
	Chart  *Box    `json:"chart,omitempty" bson:"chart,omitempty"`
	Title  *Box    `json:"title,omitempty" bson:"title,omitempty"`
	Image  *Box    `json:"image,omitempty" bson:"image,omitempty"`
}

// Usable reports whether d has a reference size. Descriptors without one are
// ignored and default slots are used.
func (d *Descriptor) Usable() bool {
	return d != nil && d.Width > 0 && d.Height > 0
}

// Validate checks the reference size and every present box.
func (d *Descriptor) Validate() error {
	if !d.Usable() {
		return errors.New(errors.ErrCodeInvalidLayout, "layout size must be positive")
	}
	for name, b := range map[string]*Box{"chart": d.Chart, "title": d.Title, "image": d.Image} {
		if b != nil && !b.Valid() {
			return errors.New(errors.ErrCodeInvalidLayout, "%s box outside unit square: %+v", name, *b)
		}
	}
	return nil
}

// ReferenceToCanvas maps a normalized box onto the canvas. The reference is
// scaled uniformly to fit the canvas minus pad on each side and centered.
func ReferenceToCanvas(b Box, canvas, ref geom.Size, pad float64) Slot {
	scale := math.Min((canvas.W-2*pad)/ref.W, (canvas.H-2*pad)/ref.H)
	sw, sh := ref.W*scale, ref.H*scale
	ox, oy := (canvas.W-sw)/2, (canvas.H-sh)/2

	x, y := ox+b.X*sw, oy+b.Y*sh
	w, h := b.Width*sw, b.Height*sh
	return Slot{
		Center: geom.Point{X: x + w/2, Y: y + h/2},
		Max:    geom.Size{W: w, H: h},
	}
}

// Slots is the set of initial element boxes for a fresh composition.
type Slots struct {
	Chart Slot
	Title Slot
	Image Slot
	// TitleRatio is the reference title width over chart width, or 0 when
	// the reference does not define both boxes.
	TitleRatio float64
	// ImageFromReference is set when Image came from the reference layout.
	ImageFromReference bool
}

// Slots maps the descriptor onto the canvas, filling missing roles with
// defaults.
func (d *Descriptor) Slots(canvas geom.Size, p Params) Slots {
	if !d.Usable() {
		return p.DefaultSlots(canvas)
	}
	ref := geom.Size{W: d.Width, H: d.Height}
	out := Slots{
		Chart: p.DefaultChartSlot(canvas),
		Title: DefaultTitleSlot(canvas),
		Image: DefaultImageSlot(canvas),
	}
	if d.Chart != nil {
		out.Chart = ReferenceToCanvas(*d.Chart, canvas, ref, p.ReferencePadding)
	}
	if d.Title != nil {
		out.Title = ReferenceToCanvas(*d.Title, canvas, ref, p.ReferencePadding)
		if d.Chart != nil && out.Chart.Max.W > 0 {
			out.TitleRatio = out.Title.Max.W / out.Chart.Max.W
		}
	}
	if d.Image != nil {
		out.Image = ReferenceToCanvas(*d.Image, canvas, ref, p.ReferencePadding)
		out.ImageFromReference = true
	}
	return out
}

// DefaultSlots returns the boxes used when no reference layout is available:
// a large centered chart with the title above it and the pictogram slot in
// the lower-right corner.
func (p Params) DefaultSlots(canvas geom.Size) Slots {
	chart := p.DefaultChartSlot(canvas)
	return Slots{
		Chart: chart,
		Title: p.TitleSlot(chart, canvas, p.TitleWideRatio, p.TitlePadding(canvas)),
		Image: DefaultImageSlot(canvas),
	}
}
