package assets

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yczddgj/chartgalaxy/pkg/cache"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20" width="40" height="20">
<rect x="0" y="0" width="40" height="20" fill="#3366cc"/></svg>`

func TestCacheBust(t *testing.T) {
	now := time.UnixMilli(42)
	tests := []struct{ in, want string }{
		{"http://h/a.png", "http://h/a.png?t=42"},
		{"http://h/a.png?x=1", "http://h/a.png?x=1"},
		{"data:image/png;base64,AA==", "data:image/png;base64,AA=="},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CacheBust(tt.in, now); got != tt.want {
			t.Errorf("CacheBust(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeDataURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
		wantData string
		wantErr  bool
	}{
		{"base64", "data:image/png;base64,aGVsbG8=", "image/png", "hello", false},
		{"unpadded", "data:image/png;base64,aGVsbG8", "image/png", "hello", false},
		{"percent", "data:image/svg+xml;charset=utf-8,%3Csvg%3E", "image/svg+xml", "<svg>", false},
		{"default type", "data:,hi", "text/plain", "hi", false},
		{"no payload", "data:image/png;base64", "", "", true},
		{"not data", "http://x", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, data, err := DecodeDataURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if mt != tt.wantType || string(data) != tt.wantData {
				t.Errorf("got %q %q", mt, data)
			}
		})
	}

	round := EncodeDataURL("image/png", []byte("xyz"))
	if _, data, _ := DecodeDataURL(round); string(data) != "xyz" {
		t.Errorf("EncodeDataURL produced %q", round)
	}
}

func TestDecode(t *testing.T) {
	img, err := Decode(pngBytes(t, 7, 3), "")
	if err != nil || img.Bounds().Dx() != 7 {
		t.Fatalf("png: %v %v", img, err)
	}

	svg, err := Decode([]byte(testSVG), "")
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	if b := svg.Bounds(); b.Dx() != 40 || b.Dy() != 20 {
		t.Errorf("svg bounds = %v", b)
	}

	if _, err := Decode([]byte("garbage"), "image/png"); !errors.Is(err, errors.ErrCodeImageDecode) {
		t.Errorf("garbage err = %v", err)
	}
	if _, err := Decode(nil, ""); !errors.Is(err, errors.ErrCodeImageDecode) {
		t.Errorf("empty err = %v", err)
	}
}

func TestRasterizeSVGWidth(t *testing.T) {
	img, err := RasterizeSVG([]byte(testSVG), 200)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("bounds = %v, want 200x100", b)
	}
	_, _, _, a := img.At(100, 50).RGBA()
	if a == 0 {
		t.Error("center pixel is transparent")
	}
}

func TestLoaderSources(t *testing.T) {
	data := pngBytes(t, 5, 4)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chart.png"), data, 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(WithBaseDir(dir))
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
	}{
		{"data url", EncodeDataURL("image/png", data)},
		{"relative file", "chart.png"},
		{"absolute file", filepath.Join(dir, "chart.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := l.Load(ctx, tt.src)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 4 {
				t.Errorf("bounds = %v", img.Bounds())
			}
		})
	}

	if _, err := l.Load(ctx, "../secret.png"); !errors.Is(err, errors.ErrCodeInvalidSource) {
		t.Errorf("traversal err = %v", err)
	}
	if _, err := l.Load(ctx, "missing.png"); !errors.Is(err, errors.ErrCodeImageFetch) {
		t.Errorf("missing err = %v", err)
	}
}

func TestLoaderHTTPCache(t *testing.T) {
	data := pngBytes(t, 3, 3)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l := NewLoader(WithHTTPClient(server.Client()), WithCache(fc, nil, time.Hour))
	ctx := context.Background()

	for i := range 2 {
		src := CacheBust(server.URL+"/title_0.png", time.UnixMilli(int64(i)))
		if _, err := l.Load(ctx, src); err != nil {
			t.Fatalf("Load #%d: %v", i, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1 (second load cached)", hits.Load())
	}

	if _, err := l.Load(ctx, server.URL+"/missing.png"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("404 err = %v", err)
	}
}

type fakeRenderer struct{ pages []string }

func (f *fakeRenderer) Render(_ context.Context, page string) (image.Image, error) {
	f.pages = append(f.pages, page)
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}

func TestLoaderHTML(t *testing.T) {
	page := "<!DOCTYPE html><html><body><svg></svg></body></html>"
	src := EncodeDataURL("text/html", []byte(page))
	ctx := context.Background()

	if _, err := NewLoader().Load(ctx, src); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("without renderer err = %v", err)
	}

	r := &fakeRenderer{}
	if _, err := NewLoader(WithRenderer(r)).Load(ctx, src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.pages) != 1 || r.pages[0] != page {
		t.Errorf("rendered pages = %q", r.pages)
	}

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "chart.html"), []byte(page), 0o644)
	if _, err := NewLoader(WithRenderer(r), WithBaseDir(dir)).Load(ctx, "chart.html"); err != nil {
		t.Fatalf("Load file: %v", err)
	}
	if got := r.pages[len(r.pages)-1]; got[:7] != "file://" {
		t.Errorf("file page = %q", got)
	}
}

func TestPageURL(t *testing.T) {
	if got := pageURL("https://x/chart.html"); got != "https://x/chart.html" {
		t.Errorf("pageURL = %q", got)
	}
	if got := pageURL("<html></html>"); got[:22] != "data:text/html;base64," {
		t.Errorf("pageURL = %q", got)
	}
}
