package canvas

import (
	"image"
	"math"

	"github.com/google/uuid"

	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Kind is the role of an element in a composition.
type Kind string

const (
	KindChart     Kind = "chart"
	KindTitle     Kind = "title"
	KindPictogram Kind = "pictogram"
)

// Transform is the placement of an element. Position is the anchor point in
// canvas pixels and Rotation is in degrees, clockwise.
type Transform struct {
	Position geom.Point  `json:"position"`
	ScaleX   float64     `json:"scaleX"`
	ScaleY   float64     `json:"scaleY"`
	Rotation float64     `json:"angle"`
	Anchor   geom.Anchor `json:"anchor"`
}

// Identity is an unscaled, unrotated, center-anchored transform at the origin.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1, Anchor: geom.Centered}
}

// Element is one positioned image on the surface.
type Element struct {
	ID      string
	Kind    Kind
	Source  string
	Visible bool
	Transform

	natural geom.Size
	img     image.Image
}

// NewElement returns a visible element showing img, center-anchored at the
// origin with unit scale.
func NewElement(kind Kind, source string, img image.Image) *Element {
	e := &Element{
		ID:        uuid.NewString(),
		Kind:      kind,
		Source:    source,
		Visible:   true,
		Transform: Identity(),
	}
	e.setImage(source, img)
	return e
}

// Image returns the decoded content, or nil while it is not loaded.
func (e *Element) Image() image.Image { return e.img }

// NaturalSize returns the unscaled content size.
func (e *Element) NaturalSize() geom.Size { return e.natural }

// DisplaySize returns the content size after scaling.
func (e *Element) DisplaySize() geom.Size {
	return geom.Size{W: e.natural.W * math.Abs(e.ScaleX), H: e.natural.H * math.Abs(e.ScaleY)}
}

// SetScale applies a uniform scale.
func (e *Element) SetScale(s float64) {
	e.ScaleX, e.ScaleY = s, s
}

// Bounds returns the axis-aligned bounding rectangle of the element on the
// canvas, including rotation.
func (e *Element) Bounds() geom.Rect {
	s := e.DisplaySize()
	if e.Rotation == 0 {
		return e.Anchor.Bounds(e.Position, s)
	}
	r := geom.Rect{
		Left: math.Inf(1), Top: math.Inf(1),
		Right: math.Inf(-1), Bottom: math.Inf(-1),
	}
	local := e.Anchor.Bounds(geom.Point{}, s)
	sin, cos := math.Sincos(e.Rotation * math.Pi / 180)
	for _, c := range []geom.Point{
		{X: local.Left, Y: local.Top}, {X: local.Right, Y: local.Top},
		{X: local.Left, Y: local.Bottom}, {X: local.Right, Y: local.Bottom},
	} {
		x := e.Position.X + c.X*cos - c.Y*sin
		y := e.Position.Y + c.X*sin + c.Y*cos
		r.Left, r.Right = math.Min(r.Left, x), math.Max(r.Right, x)
		r.Top, r.Bottom = math.Min(r.Top, y), math.Max(r.Bottom, y)
	}
	return r
}

func (e *Element) setImage(source string, img image.Image) {
	e.Source = source
	e.img = img
	if img != nil {
		b := img.Bounds()
		e.natural = geom.Size{W: float64(b.Dx()), H: float64(b.Dy())}
	}
}

// clone returns a shallow copy sharing the image.
func (e *Element) clone() *Element {
	c := *e
	return &c
}
