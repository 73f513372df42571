package geom

import (
	"encoding/json"
	"testing"
)

func TestRectOverlaps(t *testing.T) {
	chart := Rect{Left: 100, Top: 100, Right: 500, Bottom: 400}

	tests := []struct {
		name string
		r    Rect
		want bool
	}{
		{"inside", FromCenter(Point{300, 250}, Size{200, 200}), true},
		{"right of", FromCenter(Point{700, 250}, Size{200, 200}), false},
		{"touching edge", Rect{Left: 500, Top: 100, Right: 600, Bottom: 200}, false},
		{"corner overlap", Rect{Left: 450, Top: 350, Right: 550, Bottom: 450}, true},
		{"above", Rect{Left: 100, Top: 0, Right: 500, Bottom: 99}, false},
		{"covers", Rect{Left: 0, Top: 0, Right: 1000, Bottom: 1000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chart.Overlaps(tt.r); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			if got := tt.r.Overlaps(chart); got != tt.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRectUnionIntersect(t *testing.T) {
	a := Rect{Left: 0, Top: 0, Right: 10, Bottom: 10}
	b := Rect{Left: 5, Top: 5, Right: 20, Bottom: 15}

	if got := a.Union(b); got != (Rect{0, 0, 20, 15}) {
		t.Errorf("Union = %+v", got)
	}
	if got := a.Intersect(b); got != (Rect{5, 5, 10, 10}) {
		t.Errorf("Intersect = %+v", got)
	}
	if got := a.Intersect(Rect{Left: 50, Top: 50, Right: 60, Bottom: 60}); !got.Empty() {
		t.Errorf("disjoint Intersect = %+v, want empty", got)
	}
	if got := (Rect{}).Union(b); got != b {
		t.Errorf("empty Union = %+v, want %+v", got, b)
	}
}

func TestClampCenter(t *testing.T) {
	bounds := Rect{Left: 0, Top: 0, Right: 400, Bottom: 300}
	s := Size{W: 100, H: 100}

	got := ClampCenter(Point{X: 10, Y: 290}, s, bounds, 30)
	if got != (Point{X: 80, Y: 220}) {
		t.Errorf("ClampCenter = %+v, want {80 220}", got)
	}

	// Box wider than bounds collapses to the midpoint.
	got = ClampCenter(Point{X: 0, Y: 150}, Size{W: 500, H: 10}, bounds, 0)
	if got.X != 200 {
		t.Errorf("oversized ClampCenter.X = %v, want 200", got.X)
	}
}

func TestAnchorBounds(t *testing.T) {
	s := Size{W: 100, H: 50}
	tests := []struct {
		a    Anchor
		want Rect
	}{
		{Centered, Rect{Left: 150, Top: 175, Right: 250, Bottom: 225}},
		{Anchor{X: OriginLeft, Y: OriginTop}, Rect{Left: 200, Top: 200, Right: 300, Bottom: 250}},
		{Anchor{X: OriginRight, Y: OriginBottom}, Rect{Left: 100, Top: 150, Right: 200, Bottom: 200}},
	}
	for _, tt := range tests {
		if got := tt.a.Bounds(Point{200, 200}, s); got != tt.want {
			t.Errorf("%+v.Bounds = %+v, want %+v", tt.a, got, tt.want)
		}
	}
}

func TestAnchorUnmarshal(t *testing.T) {
	var a Anchor
	if err := json.Unmarshal([]byte(`{"originX":"left"}`), &a); err != nil {
		t.Fatal(err)
	}
	if a != (Anchor{X: OriginLeft, Y: OriginCenter}) {
		t.Errorf("got %+v", a)
	}
	if err := json.Unmarshal([]byte(`{"originX":"top"}`), &a); err == nil {
		t.Error("expected error for vertical origin on X axis")
	}
}
