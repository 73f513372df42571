package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/config"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// run executes the root command with an empty config file so the user's
// own config does not leak into tests.
func run(t *testing.T, args ...string) error {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	return root.ExecuteContext(context.Background())
}

func TestRootCommandTree(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"compose", "place", "trim", "edit", "serve", "refine", "gallery", "backend", "sessions", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("verbose") == nil {
		t.Error("missing persistent flags")
	}
}

func TestComposeCommand(t *testing.T) {
	dir := t.TempDir()
	chart := filepath.Join(dir, "chart.png")
	title := filepath.Join(dir, "title.png")
	writePNG(t, chart, 400, 300, color.RGBA{R: 40, G: 90, B: 200, A: 255})
	writePNG(t, title, 300, 60, color.RGBA{A: 255})

	out := filepath.Join(dir, "out", "info")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "compose", chart, "-t", title, "-f", "png,json", "-o", out, "--no-cache"); err != nil {
		t.Fatalf("compose: %v", err)
	}

	data, err := os.ReadFile(out + ".png")
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	// Export is at 2x and covers at least the chart.
	if b := img.Bounds(); b.Dx() < 800 || b.Dy() < 600 {
		t.Errorf("export size = %v, want at least 800x600", b)
	}

	snap, err := os.ReadFile(out + ".json")
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(snap) {
		t.Error("json artifact is not valid JSON")
	}
}

func TestComposeCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no inputs", []string{"compose", "--no-cache"}, "required"},
		{"bad format", []string{"compose", "chart.png", "-f", "svg", "--no-cache"}, "invalid format"},
		{"reference without annotations key", []string{"compose", "chart.png", "--annotations", "a.xml", "--no-cache"}, "reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestTrimCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "icon.png")
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 20; y < 60; y++ {
		for x := 30; x < 50; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(dir, "trimmed.png")
	if err := run(t, "trim", src, "-o", out); err != nil {
		t.Fatalf("trim: %v", err)
	}
	rf, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	got, err := png.Decode(rf)
	if err != nil {
		t.Fatal(err)
	}
	if b := got.Bounds(); b.Dx() != 20 || b.Dy() != 40 {
		t.Errorf("trimmed size = %dx%d, want 20x40", b.Dx(), b.Dy())
	}
}

func TestRunPlace(t *testing.T) {
	solid := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for i := 3; i < len(solid.Pix); i += 4 {
		solid.Pix[i] = 255
	}
	empty := image.NewRGBA(image.Rect(0, 0, 400, 300))

	tests := []struct {
		name  string
		chart image.Image
		at    []float64
		want  placer.Strategy
	}{
		{"reference outside chart", solid, []float64{100, 100}, placer.StrategyReference},
		{"transparent chart", empty, nil, placer.StrategyTransparent},
		{"opaque chart", solid, nil, placer.StrategyOutside},
	}
	c := New(io.Discard, LogInfo)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := compositor.LoaderFunc(func(context.Context, string) (image.Image, error) {
				return tt.chart, nil
			})
			p, err := c.runPlace(context.Background(), config.Default(), loader, "chart.png", &placeOpts{at: tt.at, size: 150})
			if err != nil {
				t.Fatal(err)
			}
			if p.Strategy != tt.want {
				t.Errorf("strategy = %v, want %v", p.Strategy, tt.want)
			}
			if p.Chart.Empty() {
				t.Error("chart rect is empty")
			}
			if tt.want == placer.StrategyReference && (p.Center.X != 100 || p.Center.Y != 100) {
				t.Errorf("center = %+v, want the reference point", p.Center)
			}
			if tt.want == placer.StrategyTransparent && !p.Chart.Contains(p.Box) {
				t.Errorf("box %+v not inside chart %+v", p.Box, p.Chart)
			}
		})
	}
}
