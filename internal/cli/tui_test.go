package cli

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

const testDebounce = 10 * time.Millisecond

func solidImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img
}

func newTestEditor(t *testing.T, save func() error) EditorModel {
	t.Helper()
	return newTestEditorDebounce(t, save, testDebounce)
}

func newTestEditorDebounce(t *testing.T, save func() error, debounce time.Duration) EditorModel {
	t.Helper()
	loader := compositor.LoaderFunc(func(_ context.Context, src string) (image.Image, error) {
		switch {
		case strings.HasPrefix(src, "chart"):
			return solidImage(400, 300), nil
		case strings.HasPrefix(src, "title"):
			return solidImage(300, 50), nil
		}
		return solidImage(150, 150), nil
	})
	wb := workbench.New(loader, workbench.WithDebounce(debounce))
	t.Cleanup(func() { wb.Close() })

	_, err := wb.Compose(context.Background(), workbench.Request{Request: compositor.Request{
		ChartSource:      "chart.png",
		TitleSource:      "title.png",
		PictogramSources: []string{"icon.png"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return NewEditorModel(wb, filepath.Join(t.TempDir(), "out.png"), save)
}

func key(k string) tea.KeyMsg {
	switch k {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(m EditorModel, keys ...string) (EditorModel, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(EditorModel)
	}
	return m, cmd
}

func settle() { time.Sleep(5 * testDebounce) }

func TestEditorMoveAndUndo(t *testing.T) {
	m := newTestEditor(t, nil)
	before := m.state.Elements[0].Position

	m, _ = press(m, "right", "up")
	got := m.state.Elements[0].Position
	if got.X != before.X+moveStep || got.Y != before.Y-moveStep {
		t.Fatalf("position = %+v, want %+v moved by (%v, -%v)", got, before, moveStep, moveStep)
	}

	settle()
	m, _ = press(m, "u")
	if got := m.state.Elements[0].Position; got != before {
		t.Errorf("after undo position = %+v, want %+v", got, before)
	}
	if m.status != "undone" {
		t.Errorf("status = %q, want undone", m.status)
	}
}

func TestEditorSelectionWraps(t *testing.T) {
	m := newTestEditor(t, nil)
	n := len(m.state.Elements)
	if n != 3 {
		t.Fatalf("elements = %d, want 3", n)
	}
	m, _ = press(m, "shift+tab")
	if m.cursor != n-1 {
		t.Errorf("cursor = %d, want %d", m.cursor, n-1)
	}
	m, _ = press(m, "tab")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestEditorScaleRotateHide(t *testing.T) {
	m := newTestEditor(t, nil)
	m, _ = press(m, "tab", "tab") // pictogram
	e := m.state.Elements[m.cursor]

	m, _ = press(m, "+", "]", "h")
	got := m.state.Elements[m.cursor]
	if got.ScaleX <= e.ScaleX {
		t.Errorf("scale = %v, want larger than %v", got.ScaleX, e.ScaleX)
	}
	if got.Rotation != e.Rotation+rotateStep {
		t.Errorf("rotation = %v, want %v", got.Rotation, e.Rotation+rotateStep)
	}
	if got.Visible {
		t.Error("element still visible after h")
	}
}

func TestEditorDeleteQuickRedo(t *testing.T) {
	// Keep the recorder quiet so only delete and quick-redo touch the stack.
	m := newTestEditorDebounce(t, nil, time.Hour)
	m, _ = press(m, "tab", "tab", "x")
	if len(m.state.Elements) != 2 {
		t.Fatalf("elements after delete = %d, want 2", len(m.state.Elements))
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want clamped to 1", m.cursor)
	}

	m, _ = press(m, "r")
	if len(m.state.Elements) != 3 {
		t.Errorf("elements after quick-redo = %d, want 3", len(m.state.Elements))
	}
	if m.state.QuickRedo != 0 {
		t.Errorf("quick-redo stack = %d, want 0", m.state.QuickRedo)
	}

	m, _ = press(m, "r")
	if m.status != "nothing to restore" {
		t.Errorf("status = %q", m.status)
	}
}

func TestEditorExport(t *testing.T) {
	m := newTestEditor(t, nil)
	m, _ = press(m, "e")
	if m.failed {
		t.Fatalf("export failed: %s", m.status)
	}
	if fi, err := os.Stat(m.output); err != nil || fi.Size() == 0 {
		t.Errorf("export file missing: %v", err)
	}
}

func TestEditorQuitSaves(t *testing.T) {
	saved := 0
	m := newTestEditor(t, func() error { saved++; return nil })
	_, cmd := press(m, "q")
	if saved != 1 {
		t.Errorf("save called %d times, want 1", saved)
	}
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit did not return tea.Quit")
	}
}

func TestEditorSaveWithoutSession(t *testing.T) {
	m := newTestEditor(t, nil)
	m, _ = press(m, "s")
	if m.status != "no session to save" {
		t.Errorf("status = %q", m.status)
	}
}

func TestEditorView(t *testing.T) {
	m := newTestEditor(t, nil)
	view := m.View()
	for _, want := range []string{"Edit Composition", "chart", "title", "pictogram", "history 1/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short.png", 40); got != "short.png" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("data:image/png;base64,AAAA", 40); got != "data:…" {
		t.Errorf("truncate(data) = %q", got)
	}
	if got := truncate("/very/long/path/to/asset.png", 10); got != "…asset.png" {
		t.Errorf("truncate(long) = %q", got)
	}
}
