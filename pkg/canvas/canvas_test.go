package canvas

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	cgerrors "github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var red = color.NRGBA{R: 255, A: 255}

func placed(kind Kind, src string, w, h int, at geom.Point) *Element {
	e := NewElement(kind, src, solid(w, h, red))
	e.Position = at
	return e
}

func TestSurfaceOrderAndEvents(t *testing.T) {
	s := New(1200, 900, "")
	if s.Background() != DefaultBackground {
		t.Errorf("Background = %q, want default", s.Background())
	}

	var got []EventKind
	unsubscribe := s.OnChange(func(ev Event) { got = append(got, ev.Kind) })

	chart := placed(KindChart, "chart.png", 10, 10, geom.Point{})
	picto := placed(KindPictogram, "p.png", 10, 10, geom.Point{})
	title := placed(KindTitle, "t.png", 10, 10, geom.Point{})

	s.Add(chart)
	s.Add(picto)
	if i := s.Insert(1, title); i != 1 {
		t.Errorf("Insert index = %d, want 1", i)
	}

	kinds := []Kind{}
	for _, e := range s.Elements() {
		kinds = append(kinds, e.Kind)
	}
	want := []Kind{KindChart, KindTitle, KindPictogram}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("order = %v, want %v", kinds, want)
		}
	}

	s.Modify(0, func(e *Element) { e.Position = geom.Point{X: 5, Y: 5} })
	if n := s.Remove(title.ID, "missing"); n != 1 {
		t.Errorf("Remove = %d, want 1", n)
	}
	s.Clear()

	wantEvents := []EventKind{EventAdded, EventAdded, EventAdded, EventModified, EventRemoved, EventCleared}
	if len(got) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", got, wantEvents)
	}
	for i := range got {
		if got[i] != wantEvents[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], wantEvents[i])
		}
	}

	unsubscribe()
	s.Add(chart)
	if len(got) != len(wantEvents) {
		t.Error("listener called after unsubscribe")
	}
}

func TestElementsAreCopies(t *testing.T) {
	s := New(100, 100, "#000000")
	s.Add(placed(KindChart, "c", 10, 10, geom.Point{X: 50, Y: 50}))
	s.Elements()[0].Position = geom.Point{}
	e, _ := s.At(0)
	if e.Position != (geom.Point{X: 50, Y: 50}) {
		t.Errorf("surface element mutated through copy: %+v", e.Position)
	}
}

func TestElementBounds(t *testing.T) {
	e := placed(KindChart, "c", 100, 50, geom.Point{X: 200, Y: 200})
	if got := e.Bounds(); got != (geom.Rect{Left: 150, Top: 175, Right: 250, Bottom: 225}) {
		t.Errorf("Bounds = %+v", got)
	}

	e.SetScale(2)
	if got := e.Bounds(); got != (geom.Rect{Left: 100, Top: 150, Right: 300, Bottom: 250}) {
		t.Errorf("scaled Bounds = %+v", got)
	}

	e.SetScale(1)
	e.Rotation = 90
	got := e.Bounds()
	want := geom.Rect{Left: 175, Top: 150, Right: 225, Bottom: 250}
	if math.Abs(got.Left-want.Left) > 1e-9 || math.Abs(got.Top-want.Top) > 1e-9 ||
		math.Abs(got.Right-want.Right) > 1e-9 || math.Abs(got.Bottom-want.Bottom) > 1e-9 {
		t.Errorf("rotated Bounds = %+v, want %+v", got, want)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := New(1200, 900, "#ffffff")
	s.Add(placed(KindChart, "chart.png", 40, 30, geom.Point{X: 600, Y: 450}))
	s.Add(placed(KindTitle, "title.png", 20, 10, geom.Point{X: 600, Y: 100}))

	data, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	s.Modify(0, func(e *Element) { e.Position = geom.Point{X: 1, Y: 2}; e.Rotation = 30 })
	s.SetImage(1, "title2.png", solid(5, 5, red))
	_ = s.SetBackground("#123456")

	var restored bool
	s.OnChange(func(ev Event) {
		if ev.Kind == EventRestored {
			restored = true
		}
		if ev.Structural() {
			t.Errorf("restore published structural event %v", ev.Kind)
		}
	})
	if err := s.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !restored {
		t.Error("EventRestored not published")
	}

	els := s.Elements()
	if len(els) != 2 {
		t.Fatalf("len = %d, want 2", len(els))
	}
	if els[0].Position != (geom.Point{X: 600, Y: 450}) || els[0].Rotation != 0 {
		t.Errorf("chart transform = %+v", els[0].Transform)
	}
	if els[1].Source != "title.png" || els[1].Image() == nil {
		t.Errorf("title not restored from memo: src=%q img=%v", els[1].Source, els[1].Image())
	}
	if els[1].NaturalSize() != (geom.Size{W: 20, H: 10}) {
		t.Errorf("title natural = %+v", els[1].NaturalSize())
	}
	if s.Background() != "#ffffff" {
		t.Errorf("Background = %q", s.Background())
	}
	if len(s.Missing()) != 0 {
		t.Errorf("Missing = %v", s.Missing())
	}
}

func TestRestoreMissingImages(t *testing.T) {
	src := New(100, 100, "")
	src.Add(placed(KindChart, "chart.png", 10, 10, geom.Point{X: 50, Y: 50}))
	data, _ := src.Snapshot()

	dst := New(100, 100, "")
	if err := dst.Restore(data); err != nil {
		t.Fatal(err)
	}
	if m := dst.Missing(); len(m) != 1 || m[0] != (Ref{Kind: KindChart, Source: "chart.png"}) {
		t.Fatalf("Missing = %v", m)
	}
	dst.Provide("chart.png", solid(10, 10, red))
	if m := dst.Missing(); len(m) != 0 {
		t.Errorf("Missing after Provide = %v", m)
	}

	if err := dst.Restore([]byte(`{"version":99}`)); err == nil {
		t.Error("expected version error")
	}
	if err := dst.Restore([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestExport(t *testing.T) {
	s := New(1200, 900, "#ffffff")

	if _, _, err := s.Export(DefaultExportPadding, DefaultExportMultiplier); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("empty Export err = %v, want ErrNothingToExport", err)
	}

	s.Add(placed(KindChart, "c", 100, 50, geom.Point{X: 200, Y: 200}))
	hidden := placed(KindPictogram, "p", 10, 10, geom.Point{X: 1000, Y: 800})
	hidden.Visible = false
	s.Add(hidden)

	img, crop, err := s.Export(DefaultExportPadding, DefaultExportMultiplier)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if crop != (geom.Rect{Left: 134, Top: 159, Right: 266, Bottom: 241}) {
		t.Errorf("crop = %+v", crop)
	}
	if b := img.Bounds(); b.Dx() != 264 || b.Dy() != 164 {
		t.Errorf("size = %v, want 264x164", b.Size())
	}
	if c := img.RGBAAt(132, 82); c.R < 250 || c.G > 5 {
		t.Errorf("center pixel = %+v, want red", c)
	}
	if c := img.RGBAAt(2, 2); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("corner pixel = %+v, want white", c)
	}

	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("exported PNG does not decode: %v", err)
	}
}

func TestExportAllHidden(t *testing.T) {
	s := New(100, 100, "")
	e := placed(KindChart, "c", 10, 10, geom.Point{X: 50, Y: 50})
	e.Visible = false
	s.Add(e)
	if _, _, err := s.Export(16, 2); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("err = %v, want ErrNothingToExport", err)
	}
}

func TestCaptureBaseHidesPictograms(t *testing.T) {
	s := New(1200, 900, "#ffffff")
	s.Add(placed(KindChart, "c", 100, 100, geom.Point{X: 300, Y: 300}))
	s.Add(placed(KindTitle, "t", 100, 20, geom.Point{X: 300, Y: 200}))
	s.Add(placed(KindPictogram, "p", 50, 50, geom.Point{X: 800, Y: 800}))

	img, crop, err := s.CaptureBase(DefaultCapturePadding)
	if err != nil {
		t.Fatal(err)
	}
	// Title top 190, chart bottom 350, both 100 wide at x=250..350.
	if crop != (geom.Rect{Left: 230, Top: 170, Right: 370, Bottom: 370}) {
		t.Errorf("crop = %+v", crop)
	}
	if b := img.Bounds(); b.Dx() != 140 || b.Dy() != 200 {
		t.Errorf("size = %v", b.Size())
	}
}

func TestCaptureTransparent(t *testing.T) {
	s := New(200, 200, "#ffffff")
	s.Add(placed(KindChart, "c", 50, 50, geom.Point{X: 100, Y: 100}))

	img := s.Capture(CaptureOptions{Region: geom.Rect{Right: 200, Bottom: 200}, Transparent: true})
	if a := img.RGBAAt(5, 5).A; a != 0 {
		t.Errorf("background alpha = %d, want 0", a)
	}
	if a := img.RGBAAt(100, 100).A; a < 250 {
		t.Errorf("element alpha = %d, want opaque", a)
	}
}

func TestExportFarOffCanvas(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		at   geom.Point
	}{
		{"pictogram far right", KindPictogram, geom.Point{X: 1e12, Y: 450}},
		{"title far above", KindTitle, geom.Point{X: 600, Y: -1e9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(1200, 900, "#ffffff")
			s.Add(placed(KindChart, "c", 100, 100, geom.Point{X: 600, Y: 450}))
			s.Add(placed(tt.kind, "far", 50, 50, tt.at))

			_, _, err := s.Export(DefaultExportPadding, DefaultExportMultiplier)
			if cgerrors.GetCode(err) != cgerrors.ErrCodeInvalidInput {
				t.Errorf("Export err = %v, want INVALID_INPUT", err)
			}
			if !cgerrors.Recoverable(err) {
				t.Errorf("Export err %v is not recoverable", err)
			}
		})
	}

	s := New(1200, 900, "#ffffff")
	s.Add(placed(KindChart, "c", 100, 100, geom.Point{X: 600, Y: 450}))
	s.Add(placed(KindTitle, "t", 100, 20, geom.Point{X: 600, Y: 1e10}))
	if _, _, err := s.CaptureBase(DefaultCapturePadding); cgerrors.GetCode(err) != cgerrors.ErrCodeInvalidInput {
		t.Errorf("CaptureBase err = %v, want INVALID_INPUT", err)
	}
}

func TestPruneImages(t *testing.T) {
	s := New(100, 100, "")
	s.Add(placed(KindChart, "chart.png", 10, 10, geom.Point{X: 50, Y: 50}))
	title := placed(KindTitle, "title_0.png", 10, 5, geom.Point{X: 50, Y: 10})
	s.Add(title)
	s.SetImage(1, "title_1.png", solid(12, 5, red))
	if got := s.Memoized(); got != 3 {
		t.Fatalf("Memoized = %d, want 3", got)
	}

	keepOld := func(src string) bool { return src == "title_0.png" }
	if n := s.PruneImages(keepOld); n != 0 {
		t.Errorf("pruned %d images still in use or kept", n)
	}
	if n := s.PruneImages(nil); n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if got := s.Memoized(); got != 2 {
		t.Errorf("Memoized = %d, want 2", got)
	}

	s.Clear()
	s.PruneImages(nil)
	if got := s.Memoized(); got != 0 {
		t.Errorf("Memoized after Clear and prune = %d", got)
	}
}

func TestSnapshotSources(t *testing.T) {
	s := New(100, 100, "")
	s.Add(placed(KindChart, "chart.png", 10, 10, geom.Point{X: 50, Y: 50}))
	s.Add(placed(KindPictogram, "p.svg", 5, 5, geom.Point{X: 10, Y: 10}))
	data, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	got, err := SnapshotSources(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "chart.png" || got[1] != "p.svg" {
		t.Errorf("SnapshotSources = %v", got)
	}
	if _, err := SnapshotSources([]byte("nope")); err == nil {
		t.Error("expected decode error")
	}
}
