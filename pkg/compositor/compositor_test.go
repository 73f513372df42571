package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/sampler"
)

// fakeLoader serves in-memory images. failures[src] makes the next n loads
// of src fail.
type fakeLoader struct {
	mu       sync.Mutex
	images   map[string]image.Image
	failures map[string]int
	calls    map[string]int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		images:   make(map[string]image.Image),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
}

func (f *fakeLoader) Load(_ context.Context, src string) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src]++
	if f.failures[src] > 0 {
		f.failures[src]--
		return nil, fmt.Errorf("decode %s: corrupt", src)
	}
	img, ok := f.images[src]
	if !ok {
		return nil, fmt.Errorf("decode %s: not found", src)
	}
	return img, nil
}

func (f *fakeLoader) put(src string, w, h int) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	f.images[src] = img
}

// putPadded stores a w×h opaque image inside a transparent border of pad
// pixels.
func (f *fakeLoader) putPadded(src string, w, h, pad int) {
	img := image.NewNRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	for y := pad; y < pad+h; y++ {
		for x := pad; x < pad+w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	f.images[src] = img
}

func kinds(s *canvas.Surface) []canvas.Kind {
	var out []canvas.Kind
	for _, e := range s.Elements() {
		out = append(out, e.Kind)
	}
	return out
}

// wellOrdered reports whether kinds match [chart?, title?, pictogram...].
func wellOrdered(ks []canvas.Kind) bool {
	rank := map[canvas.Kind]int{canvas.KindChart: 0, canvas.KindTitle: 1, canvas.KindPictogram: 2}
	last := -1
	for _, k := range ks {
		r := rank[k]
		if r < last || (r == last && r < 2) {
			return false
		}
		last = r
	}
	return true
}

func setup() (*fakeLoader, *Compositor, *canvas.Surface) {
	l := newFakeLoader()
	l.put("chart.png", 1000, 500)
	l.put("title.png", 400, 250)
	l.put("title2.png", 900, 300)
	l.put("p1.png", 300, 300)
	l.put("p2.png", 100, 200)
	l.put("p3.png", 50, 50)
	return l, New(l), canvas.New(canvas.DefaultWidth, canvas.DefaultHeight, canvas.DefaultBackground)
}

func TestCompositeFresh(t *testing.T) {
	_, c, s := setup()
	res, err := c.Composite(context.Background(), s, Request{
		ChartSource:      "chart.png",
		TitleSource:      "title.png",
		PictogramSources: []string{"p1.png", "p2.png"},
	})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if res.Strategy != Recreate {
		t.Errorf("Strategy = %v", res.Strategy)
	}

	got := kinds(s)
	want := []canvas.Kind{canvas.KindChart, canvas.KindTitle, canvas.KindPictogram, canvas.KindPictogram}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}

	els := s.Elements()
	chart, title := els[0], els[1]
	if b := chart.Bounds(); b != (geom.Rect{Left: 100, Top: 200, Right: 1100, Bottom: 700}) {
		t.Errorf("chart bounds = %+v", b)
	}

	// Squarish title: 0.55 of the chart width, centered above it.
	if w := title.DisplaySize().W; math.Abs(w-550) > 1e-6 {
		t.Errorf("title width = %v, want 550", w)
	}
	if title.Position.X != 600 {
		t.Errorf("title X = %v, want 600", title.Position.X)
	}
	if title.Bounds().Top < layout.DefaultTitleMinTop-1e-6 {
		t.Errorf("title top %v above minimum", title.Bounds().Top)
	}

	if res.Placement == nil {
		t.Fatal("Placement not reported")
	}
	p1, p2 := els[2], els[3]
	if p1.Position != res.Placement.Center {
		t.Errorf("first pictogram at %+v, want %+v", p1.Position, res.Placement.Center)
	}
	if p2.Position != p1.Position.Add(20, 20) {
		t.Errorf("second pictogram at %+v, want offset of %+v", p2.Position, p1.Position)
	}
	if d := p1.DisplaySize(); d.W != layout.DefaultPictogramSize {
		t.Errorf("pictogram size = %+v, want %v wide", d, layout.DefaultPictogramSize)
	}
}

func TestCompositeFreshSkipsDecodeFailures(t *testing.T) {
	l, c, s := setup()
	l.failures["title.png"] = 1

	res, err := c.Composite(context.Background(), s, Request{
		ChartSource:      "chart.png",
		TitleSource:      "title.png",
		PictogramSources: []string{"missing.png", "p2.png"},
	})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if got := kinds(s); fmt.Sprint(got) != "[chart pictogram]" {
		t.Errorf("kinds = %v", got)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("Skipped = %v, want title and missing pictogram", res.Skipped)
	}
}

func TestCompositeFreshClearsSurface(t *testing.T) {
	_, c, s := setup()
	ctx := context.Background()
	if _, err := c.Composite(ctx, s, Request{ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png", "p2.png"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Composite(ctx, s, Request{ChartSource: "chart.png"}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestCompositeReferenceLayout(t *testing.T) {
	_, c, s := setup()
	d := &layout.Descriptor{
		Width: 1000, Height: 750,
		Chart: &layout.Box{X: 0.05, Y: 0.3, Width: 0.6, Height: 0.6},
		Title: &layout.Box{X: 0.05, Y: 0.05, Width: 0.45, Height: 0.15},
		Image: &layout.Box{X: 0.75, Y: 0.4, Width: 0.2, Height: 0.2},
	}
	res, err := c.Composite(context.Background(), s, Request{
		ChartSource:      "chart.png",
		TitleSource:      "title2.png",
		PictogramSources: []string{"p1.png"},
		Layout:           d,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Placement == nil || res.Placement.Strategy != placer.StrategyReference {
		t.Fatalf("Placement = %+v, want reference", res.Placement)
	}

	els := s.Elements()
	chart, title := els[0], els[1]
	// Title width follows the reference ratio 0.45/0.6 of the rendered chart.
	want := chart.Bounds().Width() * 0.75
	if w := title.DisplaySize().W; math.Abs(w-want) > 1e-6 {
		t.Errorf("title width = %v, want %v", w, want)
	}
	if gap := chart.Bounds().Top - title.Bounds().Bottom; math.Abs(gap-layout.DefaultReferenceTitlePad) > 1e-6 &&
		title.Bounds().Top > layout.DefaultReferenceTitleMinTop+1e-6 {
		t.Errorf("title gap = %v, want %v", gap, layout.DefaultReferenceTitlePad)
	}
}

func TestCompositePreservePositions(t *testing.T) {
	l, c, s := setup()
	ctx := context.Background()
	if _, err := c.Composite(ctx, s, Request{
		ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png"},
	}); err != nil {
		t.Fatal(err)
	}

	// User edits.
	s.Modify(0, func(e *canvas.Element) {
		e.Position = geom.Point{X: 333.25, Y: 512.5}
		e.ScaleX, e.ScaleY = 0.8, 0.7
		e.Rotation = 12
	})
	s.Modify(1, func(e *canvas.Element) {
		e.Position = geom.Point{X: 50, Y: 60}
		e.Anchor = geom.Anchor{X: geom.OriginLeft, Y: geom.OriginTop}
	})
	before := s.Elements()

	res, err := c.Composite(ctx, s, Request{
		ChartSource:       "chart.png",
		TitleSource:       "title.png",
		PictogramSources:  []string{"p3.png"},
		PreservePositions: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != MutateInPlace || res.Swapped != 3 || res.Recreated != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.Saved.Chart == nil || *res.Saved.Chart != before[0].Transform {
		t.Errorf("saved chart = %+v", res.Saved.Chart)
	}

	after := s.Elements()
	for i := 0; i < 3; i++ {
		if after[i].Transform != before[i].Transform {
			t.Errorf("element %d transform changed: %+v -> %+v", i, before[i].Transform, after[i].Transform)
		}
		if after[i].ID != before[i].ID {
			t.Errorf("element %d recreated", i)
		}
	}
	if after[2].Source != "p3.png" {
		t.Errorf("pictogram source = %q", after[2].Source)
	}
	if l.calls["p3.png"] != 1 {
		t.Errorf("p3 loads = %d", l.calls["p3.png"])
	}
}

func TestCompositePreserveFallsBackToRecreate(t *testing.T) {
	l, c, s := setup()
	ctx := context.Background()
	if _, err := c.Composite(ctx, s, Request{
		ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png"},
	}); err != nil {
		t.Fatal(err)
	}
	s.Modify(1, func(e *canvas.Element) { e.Position = geom.Point{X: 77, Y: 88} })
	before := s.Elements()

	l.failures["title2.png"] = 1
	res, err := c.Composite(ctx, s, Request{
		ChartSource: "chart.png", TitleSource: "title2.png", PictogramSources: []string{"p1.png"},
		PreservePositions: true,
	})
	if err != nil {
		t.Fatalf("Composite: %v", err)
	}
	if res.Recreated != 1 || res.Swapped != 2 {
		t.Errorf("Swapped=%d Recreated=%d, want 2 and 1", res.Swapped, res.Recreated)
	}

	after := s.Elements()
	if fmt.Sprint(kinds(s)) != "[chart title pictogram]" {
		t.Fatalf("kinds = %v", kinds(s))
	}
	if after[1].ID == before[1].ID {
		t.Error("title was not recreated")
	}
	if after[1].Transform != before[1].Transform {
		t.Errorf("recreated title transform = %+v, want %+v", after[1].Transform, before[1].Transform)
	}
	if after[1].Source != "title2.png" {
		t.Errorf("title source = %q", after[1].Source)
	}
}

func TestCompositePreservePropagatesSecondFailure(t *testing.T) {
	l, c, s := setup()
	ctx := context.Background()
	if _, err := c.Composite(ctx, s, Request{ChartSource: "chart.png", TitleSource: "title.png"}); err != nil {
		t.Fatal(err)
	}

	l.failures["title2.png"] = 2
	_, err := c.Composite(ctx, s, Request{
		ChartSource: "chart.png", TitleSource: "title2.png", PreservePositions: true,
	})
	if err == nil {
		t.Fatal("expected error when recreate fails")
	}
}

func TestCompositePreserveOnEmptySurface(t *testing.T) {
	_, c, s := setup()
	res, err := c.Composite(context.Background(), s, Request{
		ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png", "p2.png"},
		PreservePositions: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Saved.Empty() {
		t.Errorf("Saved = %+v, want empty", res.Saved)
	}
	if fmt.Sprint(kinds(s)) != "[chart title pictogram pictogram]" {
		t.Errorf("kinds = %v", kinds(s))
	}
}

func TestCompositePreserveAddsMissingTitle(t *testing.T) {
	_, c, s := setup()
	ctx := context.Background()
	if _, err := c.Composite(ctx, s, Request{ChartSource: "chart.png", PictogramSources: []string{"p1.png"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Composite(ctx, s, Request{
		ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png"},
		PreservePositions: true,
	}); err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(kinds(s)) != "[chart title pictogram]" {
		t.Errorf("kinds = %v", kinds(s))
	}
}

func TestCompositeOrderingInvariant(t *testing.T) {
	l, c, s := setup()
	ctx := context.Background()
	l.failures["title2.png"] = 1

	requests := []Request{
		{ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p1.png"}},
		{ChartSource: "chart.png", TitleSource: "title2.png", PreservePositions: true},
		{ChartSource: "chart.png", PictogramSources: []string{"p1.png", "p2.png", "p3.png"}, PreservePositions: true},
		{TitleSource: "title.png", PictogramSources: []string{"p2.png"}},
		{ChartSource: "chart.png", TitleSource: "title2.png", PictogramSources: []string{"p3.png"}, PreservePositions: true},
		{ChartSource: "missing.png", TitleSource: "title.png", PictogramSources: []string{"p1.png"}},
		{ChartSource: "chart.png", TitleSource: "title.png", PictogramSources: []string{"p2.png"}, PreservePositions: true},
	}
	for i, req := range requests {
		if _, err := c.Composite(ctx, s, req); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if ks := kinds(s); !wellOrdered(ks) {
			t.Fatalf("request %d: order %v", i, ks)
		}
	}
}

func TestGate(t *testing.T) {
	var g Gate
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- g.Run(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	called := false
	if err := g.Run(func() error { called = true; return nil }); !errors.Is(err, ErrBusy) {
		t.Errorf("second Run err = %v, want ErrBusy", err)
	}
	if called {
		t.Error("dropped call ran")
	}
	if !g.Busy() {
		t.Error("Busy = false while running")
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Run: %v", err)
	}
	if err := g.Run(func() error { return nil }); err != nil {
		t.Errorf("Run after release: %v", err)
	}
}

func TestStrategyFor(t *testing.T) {
	if StrategyFor(true) != MutateInPlace || StrategyFor(false) != Recreate {
		t.Error("StrategyFor mapping wrong")
	}
	if MutateInPlace.String() != "mutate-in-place" {
		t.Errorf("String = %q", MutateInPlace.String())
	}
}

func TestLoadTrimsTitlesOnly(t *testing.T) {
	l := newFakeLoader()
	l.putPadded("title.png", 700, 120, 100)
	c := New(l)

	tests := []struct {
		kind canvas.Kind
		want image.Point
	}{
		{canvas.KindTitle, image.Pt(700, 120)},
		{canvas.KindChart, image.Pt(900, 320)},
		{canvas.KindPictogram, image.Pt(900, 320)},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			img, err := c.Load(context.Background(), tt.kind, "title.png")
			if err != nil {
				t.Fatal(err)
			}
			if got := img.Bounds().Size(); got != tt.want {
				t.Errorf("size = %v, want %v", got, tt.want)
			}
		})
	}
}

type stubFinder struct{}

func (stubFinder) FindTransparentRegion(image.Image, geom.Size, []geom.Point) (geom.Point, bool) {
	return geom.Point{}, false
}

func TestSamplerOptionOrder(t *testing.T) {
	sp := sampler.DefaultParams()
	sp.MaxAlpha = 3
	shared := placer.New(sampler.DefaultParams())

	tests := []struct {
		name string
		opts []Option
	}{
		{"sampler first", []Option{WithSampler(sp), WithPlacer(shared)}},
		{"placer first", []Option{WithPlacer(shared), WithSampler(sp)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(newFakeLoader(), tt.opts...)
			if got, _ := c.placer.Finder.(sampler.Params); got != sp {
				t.Errorf("placer finder = %+v, want %+v", c.placer.Finder, sp)
			}
		})
	}
	if shared.Finder != (sampler.DefaultParams()) {
		t.Error("New modified the caller's placer")
	}

	custom := &placer.Placer{Finder: stubFinder{}}
	c := New(newFakeLoader(), WithPlacer(custom), WithSampler(sp))
	if _, ok := c.placer.Finder.(stubFinder); !ok {
		t.Errorf("custom finder replaced by %T", c.placer.Finder)
	}
}
