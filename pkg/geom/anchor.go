package geom

import (
	"encoding/json"
	"fmt"
)

// Origin is one axis of an element anchor.
type Origin string

// Origin values. Horizontal anchors use Left/Center/Right and vertical anchors
// use Top/Center/Bottom.
const (
	OriginLeft   Origin = "left"
	OriginCenter Origin = "center"
	OriginRight  Origin = "right"
	OriginTop    Origin = "top"
	OriginBottom Origin = "bottom"
)

// Anchor names the point of an element that its position refers to.
type Anchor struct {
	X Origin `json:"originX"`
	Y Origin `json:"originY"`
}

// Centered is the anchor used for every element placed by the compositor.
var Centered = Anchor{X: OriginCenter, Y: OriginCenter}

// Valid reports whether both axes hold a value legal for that axis.
func (a Anchor) Valid() bool {
	switch a.X {
	case OriginLeft, OriginCenter, OriginRight:
	default:
		return false
	}
	switch a.Y {
	case OriginTop, OriginCenter, OriginBottom:
	default:
		return false
	}
	return true
}

// factor returns the fraction of the extent that lies before the anchor
// point on one axis.
func factor(o Origin) float64 {
	switch o {
	case OriginLeft, OriginTop:
		return 0
	case OriginRight, OriginBottom:
		return 1
	default:
		return 0.5
	}
}

// Bounds returns the rectangle of an element of size s whose anchor point
// sits at p.
func (a Anchor) Bounds(p Point, s Size) Rect {
	left := p.X - s.W*factor(a.X)
	top := p.Y - s.H*factor(a.Y)
	return Rect{Left: left, Top: top, Right: left + s.W, Bottom: top + s.H}
}

// UnmarshalJSON defaults missing axes to center.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	type raw Anchor
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	if r.X == "" {
		r.X = OriginCenter
	}
	if r.Y == "" {
		r.Y = OriginCenter
	}
	out := Anchor(r)
	if !out.Valid() {
		return fmt.Errorf("invalid anchor %q/%q", r.X, r.Y)
	}
	*a = out
	return nil
}
