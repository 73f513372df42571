// Package config loads chartgalaxy settings from a TOML file.
//
// Every tunable constant of the layout engine has a field here, so the
// empirically chosen thresholds (transparency limits, title width ratios)
// can be retuned per asset style without a rebuild. [Default] returns the
// stock values; [Load] overlays a file on top of them.
//
//	[sampler]
//	max_alpha = 35
//	trim_alpha = 8
//
//	[history]
//	debounce = "300ms"
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/history"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/poller"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
	"github.com/yczddgj/chartgalaxy/pkg/sampler"
)

// FileName is the config file looked up in the config directory.
const FileName = "config.toml"

// Duration is a time.Duration written as a string ("500ms", "2m").
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func dur(d time.Duration) Duration { return Duration{d} }

// Config is the full configuration.
type Config struct {
	Canvas     Canvas         `toml:"canvas"`
	Layout     layout.Params  `toml:"layout"`
	Sampler    sampler.Params `toml:"sampler"`
	Placer     Placer         `toml:"placer"`
	Compositor Compositor     `toml:"compositor"`
	History    History        `toml:"history"`
	Poller     Poller         `toml:"poller"`
	Export     Export         `toml:"export"`
	Backend    Backend        `toml:"backend"`
	Cache      Cache          `toml:"cache"`
	Sessions   Sessions       `toml:"sessions"`
	Gallery    Gallery        `toml:"gallery"`
	Headless   Headless       `toml:"headless"`
	Server     Server         `toml:"server"`
}

type Canvas struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Background string `toml:"background"`
}

type Placer struct {
	Padding  float64 `toml:"padding"`
	GridSize int     `toml:"grid_size"`
}

type Compositor struct {
	LoadTimeout Duration `toml:"load_timeout"`
}

type History struct {
	MaxDepth  int      `toml:"max_depth"`
	QuickRedo int      `toml:"quick_redo"`
	Debounce  Duration `toml:"debounce"`
}

type Poller struct {
	Interval          Duration `toml:"interval"`
	RefineInterval    Duration `toml:"refine_interval"`
	RefineMaxAttempts int      `toml:"refine_max_attempts"`
	// Coalesce is the quiet period before an asset change recomposites.
	Coalesce Duration `toml:"coalesce"`
}

type Export struct {
	Padding        float64 `toml:"padding"`
	Multiplier     float64 `toml:"multiplier"`
	CapturePadding float64 `toml:"capture_padding"`
}

type Backend struct {
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
	Retries int      `toml:"retries"`
}

type Cache struct {
	Disabled bool     `toml:"disabled"`
	Dir      string   `toml:"dir"`
	TTL      Duration `toml:"ttl"`
	RedisURL string   `toml:"redis_url"`
}

type Sessions struct {
	Dir      string   `toml:"dir"`
	TTL      Duration `toml:"ttl"`
	RedisURL string   `toml:"redis_url"`
}

type Gallery struct {
	MongoURI string `toml:"mongo_uri"`
	Database string `toml:"database"`
}

type Headless struct {
	Enabled  bool     `toml:"enabled"`
	ExecPath string   `toml:"exec_path"`
	Selector string   `toml:"selector"`
	Timeout  Duration `toml:"timeout"`
}

type Server struct {
	Addr string `toml:"addr"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Canvas: Canvas{
			Width:      canvas.DefaultWidth,
			Height:     canvas.DefaultHeight,
			Background: canvas.DefaultBackground,
		},
		Layout:     layout.DefaultParams(),
		Sampler:    sampler.DefaultParams(),
		Placer:     Placer{Padding: placer.DefaultPadding, GridSize: placer.DefaultGridSize},
		Compositor: Compositor{LoadTimeout: dur(compositor.DefaultLoadTimeout)},
		History: History{
			MaxDepth:  history.DefaultMaxDepth,
			QuickRedo: history.DefaultQuickRedo,
			Debounce:  dur(history.DefaultDebounce),
		},
		Poller: Poller{
			Interval:          dur(poller.DefaultInterval),
			RefineInterval:    dur(refine.PollInterval),
			RefineMaxAttempts: refine.PollMaxAttempts,
			Coalesce:          dur(history.DefaultDebounce),
		},
		Export: Export{
			Padding:        canvas.DefaultExportPadding,
			Multiplier:     canvas.DefaultExportMultiplier,
			CapturePadding: canvas.DefaultCapturePadding,
		},
		Backend:  Backend{URL: "http://localhost:5000", Timeout: dur(30 * time.Second)},
		Cache:    Cache{TTL: dur(24 * time.Hour)},
		Sessions: Sessions{TTL: dur(7 * 24 * time.Hour)},
		Gallery:  Gallery{Database: "chartgalaxy"},
		Headless: Headless{Selector: "svg", Timeout: dur(30 * time.Second)},
		Server:   Server{Addr: ":8080"},
	}
}

// Dir returns ~/.config/chartgalaxy.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "chartgalaxy"), nil
}

// CacheDir returns the cache directory: the configured one, else
// $XDG_CACHE_HOME/chartgalaxy, else ~/.cache/chartgalaxy.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "chartgalaxy"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "chartgalaxy"), nil
}

// Load reads path over the defaults. An empty path reads the file in Dir
// if it exists; a missing default file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode overlays TOML data onto cfg, rejecting unknown keys.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	switch {
	case c.Canvas.Width <= 0 || c.Canvas.Height <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "canvas size must be positive")
	case c.Sampler.MaxAlpha < 0 || c.Sampler.MaxAlpha > 255:
		return errors.New(errors.ErrCodeInvalidConfig, "sampler.max_alpha must be in [0, 255]")
	case c.Sampler.StepDivisor <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "sampler.step_divisor must be positive")
	case c.Placer.Padding < 0 || c.Placer.GridSize < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "placer values cannot be negative")
	case c.History.MaxDepth <= 0 || c.History.QuickRedo < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "history depths must be positive")
	case c.Poller.Interval.Duration <= 0 || c.Poller.RefineInterval.Duration <= 0:
		return errors.New(errors.ErrCodeInvalidConfig, "poll intervals must be positive")
	case c.Export.Multiplier <= 0 || c.Export.Padding < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "export multiplier must be positive")
	}
	if c.Backend.URL != "" {
		if err := errors.ValidateURL(c.Backend.URL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "backend.url")
		}
	}
	return nil
}

// Encode writes cfg as TOML.
func (c Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
