package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yczddgj/chartgalaxy/pkg/errors"
)

func TestDefaultValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Sampler.MaxAlpha != 35 || cfg.Sampler.TrimAlpha != 8 || cfg.Sampler.PriorityWeight != 2 {
		t.Errorf("sampler defaults = %+v", cfg.Sampler)
	}
	if cfg.History.MaxDepth != 50 || cfg.History.QuickRedo != 3 || cfg.History.Debounce.Duration != 300*time.Millisecond {
		t.Errorf("history defaults = %+v", cfg.History)
	}
	if cfg.Export.Padding != 16 || cfg.Export.Multiplier != 2 {
		t.Errorf("export defaults = %+v", cfg.Export)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[sampler]
max_alpha = 20

[layout]
title_wide_ratio = 0.7

[history]
debounce = "150ms"

[backend]
url = "http://gen.internal:5000"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sampler.MaxAlpha != 20 || cfg.Sampler.TrimAlpha != 8 {
		t.Errorf("sampler = %+v", cfg.Sampler)
	}
	if cfg.Layout.TitleWideRatio != 0.7 || cfg.Layout.TitleCompactRatio != 0.55 {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.History.Debounce.Duration != 150*time.Millisecond {
		t.Errorf("debounce = %v", cfg.History.Debounce)
	}
	if cfg.Backend.URL != "http://gen.internal:5000" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "[sampler\nmax_alpha = 1"},
		{"unknown key", "[sampler]\nmax_alhpa = 1"},
		{"bad duration", "[history]\ndebounce = \"soon\""},
		{"out of range", "[canvas]\nwidth = 0"},
		{"bad url", "[backend]\nurl = \"gen:5000\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			os.WriteFile(path, []byte(tt.data), 0o644)
			if _, err := Load(path); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("Load err = %v, want INVALID_CONFIG", err)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "absent.toml")); err == nil {
		t.Error("missing explicit file should fail")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	data, err := Default().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var cfg Config
	if err := Decode(data, &cfg); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Poller.Interval.Duration != 500*time.Millisecond || cfg.Layout.TitleBaseWidth != 700 {
		t.Errorf("decoded = %+v", cfg)
	}
}

func TestCacheDir(t *testing.T) {
	cfg := Default()
	cfg.Cache.Dir = "/tmp/x"
	if d, _ := cfg.CacheDir(); d != "/tmp/x" {
		t.Errorf("CacheDir = %q", d)
	}

	t.Setenv("XDG_CACHE_HOME", "/xdg")
	if d, _ := Default().CacheDir(); d != "/xdg/chartgalaxy" {
		t.Errorf("CacheDir = %q", d)
	}
}
