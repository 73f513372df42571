package workbench

import (
	"math"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

// Patch is a manual edit of one element. Nil fields are left alone. DX, DY
// and ScaleBy are relative to the current transform and are applied after
// the absolute fields.
type Patch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Rotation *float64 `json:"angle,omitempty"`
	Visible  *bool    `json:"visible,omitempty"`

	DX      float64 `json:"dx,omitempty"`
	DY      float64 `json:"dy,omitempty"`
	ScaleBy float64 `json:"scale_by,omitempty"`
}

// Edit limits. Positions and offsets are canvas pixels.
const (
	MaxPosition = 1e5
	MaxScale    = 100
)

// Validate rejects non-finite values, positions far outside any canvas and
// scales that would collapse, mirror or blow up the element.
func (p Patch) Validate() error {
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"x", p.X}, {"y", p.Y}, {"scale", p.Scale}, {"angle", p.Rotation},
		{"dx", &p.DX}, {"dy", &p.DY}, {"scale_by", &p.ScaleBy},
	} {
		if f.v != nil && (math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			return errors.New(errors.ErrCodeInvalidInput, "%s must be finite", f.name)
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"x", deref(p.X)}, {"y", deref(p.Y)}, {"dx", p.DX}, {"dy", p.DY},
	} {
		if math.Abs(f.v) > MaxPosition {
			return errors.New(errors.ErrCodeInvalidInput, "%s out of range: %g", f.name, f.v)
		}
	}
	if p.Scale != nil && (*p.Scale <= 0 || *p.Scale > MaxScale) {
		return errors.New(errors.ErrCodeInvalidInput, "scale must be in (0, %d], got %g", MaxScale, *p.Scale)
	}
	if p.ScaleBy < 0 || p.ScaleBy > MaxScale {
		return errors.New(errors.ErrCodeInvalidInput, "scale factor must be in (0, %d], got %g", MaxScale, p.ScaleBy)
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (p Patch) apply(e *canvas.Element) {
	if p.X != nil {
		e.Position.X = *p.X
	}
	if p.Y != nil {
		e.Position.Y = *p.Y
	}
	if p.Scale != nil {
		e.SetScale(*p.Scale)
	}
	if p.Rotation != nil {
		e.Rotation = *p.Rotation
	}
	if p.Visible != nil {
		e.Visible = *p.Visible
	}
	e.Position = e.Position.Add(p.DX, p.DY)
	if p.ScaleBy > 0 {
		e.ScaleX *= p.ScaleBy
		e.ScaleY *= p.ScaleBy
	}
}

// Modify applies p to the element with the given ID. History records the
// edit once the surface has been quiet for the debounce period.
func (w *Workbench) Modify(id string, p Patch) (*canvas.Element, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	i := w.surface.IndexOf(id)
	if i < 0 || !w.surface.Modify(i, p.apply) {
		return nil, errors.New(errors.ErrCodeNotFound, "element %s not found", id)
	}
	e, _ := w.surface.At(i)
	return e, nil
}

// Move translates an element by (dx, dy).
func (w *Workbench) Move(id string, dx, dy float64) (*canvas.Element, error) {
	return w.Modify(id, Patch{DX: dx, DY: dy})
}

// ElementState is the view of one element exposed to clients.
type ElementState struct {
	ID      string      `json:"id"`
	Kind    canvas.Kind `json:"kind"`
	Source  string      `json:"source"`
	Visible bool        `json:"visible"`
	Loaded  bool        `json:"loaded"`
	canvas.Transform
	Natural geom.Size `json:"natural"`
	Bounds  geom.Rect `json:"bounds"`
}

// State is a read-only view of the workbench.
type State struct {
	Size       geom.Size      `json:"size"`
	Background string         `json:"background"`
	Elements   []ElementState `json:"elements"`
	History    int            `json:"history"`
	Cursor     int            `json:"cursor"`
	QuickRedo  int            `json:"quick_redo"`
	Busy       bool           `json:"busy"`
}

// State returns the current view.
func (w *Workbench) State() State {
	elems := w.surface.Elements()
	st := State{
		Size:       w.surface.Size(),
		Background: w.surface.Background(),
		Elements:   make([]ElementState, 0, len(elems)),
		History:    w.history.Len(),
		Cursor:     w.history.Index(),
		QuickRedo:  w.history.QuickLen(),
		Busy:       w.gate.Busy(),
	}
	for _, e := range elems {
		st.Elements = append(st.Elements, ElementState{
			ID:        e.ID,
			Kind:      e.Kind,
			Source:    e.Source,
			Visible:   e.Visible,
			Loaded:    e.Image() != nil,
			Transform: e.Transform,
			Natural:   e.NaturalSize(),
			Bounds:    e.Bounds(),
		})
	}
	return st
}
